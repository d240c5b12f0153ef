package transfer

import (
	"regexp"
	"strings"
)

// MinFolderIDLength is the shortest token accepted as a folder identifier
// when extracting one from a URL.
const MinFolderIDLength = 25

var folderIDPattern = regexp.MustCompile(`[A-Za-z0-9_-]{25,}`)

// NormalizeFolderRef extracts a folder identifier from either a bare
// identifier or a folder URL.
//
// Inputs without a slash are returned unchanged. Otherwise the longest run
// of identifier characters (first one on ties) is returned, or the input
// itself when no run is long enough.
func NormalizeFolderRef(ref string) string {
	if !strings.Contains(ref, "/") {
		return ref
	}
	var best string
	for _, tok := range folderIDPattern.FindAllString(ref, -1) {
		if len(tok) > len(best) {
			best = tok
		}
	}
	if best == "" {
		return ref
	}
	return best
}
