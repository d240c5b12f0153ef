package main

import (
	"context"

	"media-relay/cmd"
)

func main() {
	cmd.Execute(context.Background())
}
