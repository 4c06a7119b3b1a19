// Package moderation censors configured words in message content
// before persistence. Matching runs over a normalized view of the
// text (case-folded, punctuation stripped, common leet substitutions
// undone) so spaced or obfuscated spellings are still caught, while
// replacement happens on the original runes to preserve layout.
package moderation

import (
	"bufio"
	"os"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"

	"chat-relay/errors"
)

type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// NewModerator builds the Aho-Corasick automaton over the normalized
// wordlist.
func NewModerator(words []string, replacement rune) (*Moderator, error) {
	if len(words) == 0 {
		return nil, errors.ErrEmptyWords
	}
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = normalize([]rune(word)).runes
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: machine, replacement: replacement}, nil
}

// LoadWordlist reads one word per line, skipping blanks and comments.
func LoadWordlist(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, scanner.Err()
}

// Censor replaces every match with the replacement rune, spanning the
// original characters of the match including any noise between them.
func (m *Moderator) Censor(original string) string {
	origRunes := []rune(original)
	view := normalize(origRunes)
	if len(view.runes) == 0 {
		return original
	}

	spans := m.matcher.MultiPatternSearch(view.runes, false)
	if len(spans) == 0 {
		return original
	}

	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(view.origIdx) {
			continue
		}
		for i := view.origIdx[start]; i <= view.origIdx[end-1]; i++ {
			origRunes[i] = m.replacement
		}
	}
	return string(origRunes)
}

// normalized is a searchable lowercase view plus, per normalized rune,
// the index of the original rune it came from.
type normalized struct {
	runes   []rune
	origIdx []int
}

func normalize(input []rune) normalized {
	out := normalized{
		runes:   make([]rune, 0, len(input)),
		origIdx: make([]int, 0, len(input)),
	}
	for i, r := range input {
		r = unleet(r)
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		out.runes = append(out.runes, unicode.ToLower(r))
		out.origIdx = append(out.origIdx, i)
	}
	return out
}

// unleet maps the usual digit/symbol substitutions back to letters.
func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}
