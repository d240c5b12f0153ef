package drive

import (
	"context"
	"fmt"

	"media-relay/domain/transfer"

	"golang.org/x/oauth2"
)

// Connector builds Drive clients from request credentials
type Connector struct {
	opts []ClientOption
}

// NewConnector creates a connector; opts are applied to every client it builds
func NewConnector(opts ...ClientOption) *Connector {
	return &Connector{opts: opts}
}

// Connect implements transfer.SourceConnector. The credential is exercised
// once here so a rejected credential fails the batch before any listing.
func (c *Connector) Connect(ctx context.Context, cred transfer.Credential) (transfer.Source, error) {
	ts, err := TokenSourceFor(cred)
	if err != nil {
		return nil, err
	}
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("credential rejected: %w", err)
	}
	return NewClient(ctx, ts, c.opts...)
}

// TokenSourceFor accepts an oauth2.TokenSource, an *oauth2.Token, or a raw
// access token string.
func TokenSourceFor(cred transfer.Credential) (oauth2.TokenSource, error) {
	switch v := cred.(type) {
	case oauth2.TokenSource:
		if v == nil {
			break
		}
		return v, nil
	case *oauth2.Token:
		if v == nil || v.AccessToken == "" {
			break
		}
		return oauth2.StaticTokenSource(v), nil
	case string:
		if v == "" {
			break
		}
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: v, TokenType: "Bearer"}), nil
	}
	return nil, fmt.Errorf("%w: %T", transfer.ErrUnsupportedCredential, cred)
}

var _ transfer.SourceConnector = (*Connector)(nil)
