package services

import (
	"chat-relay/domain"
	"regexp"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// ResolveMentions extracts @token patterns from the content and
// matches them case-sensitively against the display names of the
// eligible users. Matching is exact-name only; ambiguous or unknown
// tokens resolve to nothing. Returns the matched user ids, deduped,
// in order of first appearance.
func ResolveMentions(content string, eligible []domain.User) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	byName := make(map[string]string, len(eligible))
	for _, user := range eligible {
		byName[user.Name] = user.ID
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, match := range matches {
		id, ok := byName[match[1]]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
