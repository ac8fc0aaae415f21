package messages

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var mentionPattern = regexp.MustCompile(`@([\p{L}\p{N}_.-]+)`)

// ExtractMentions returns the deduplicated, normalized usernames mentioned in
// a message body. Normalization matches the username canonical form so a
// mention resolves regardless of how the author typed it.
func ExtractMentions(body string) []string {
	matches := mentionPattern.FindAllStringSubmatch(norm.NFC.String(body), -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
