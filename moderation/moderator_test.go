package moderation

import (
	"chat-relay/errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestModerator(t *testing.T, words ...string) *Moderator {
	t.Helper()
	m, err := NewModerator(words, '*')
	require.NoError(t, err)
	return m
}

func TestModerator_CensorsPlainWord(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t, "badword")

	req.Equal("this is a *******", m.Censor("this is a badword"))
}

func TestModerator_MatchIsCaseInsensitive(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t, "badword")

	req.Equal("*******!", m.Censor("BadWord!"))
}

func TestModerator_CatchesLeetSpellings(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t, "badword")

	req.Equal("so *******", m.Censor("so b4dw0rd"))
}

func TestModerator_SpacedOutLettersAreCoveredEntirely(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t, "badword")

	// The replacement spans the noise between the letters too
	req.Equal("*************", m.Censor("b a d w o r d"))
}

func TestModerator_CleanTextPassesThrough(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t, "badword")

	content := "a perfectly fine sentence"
	req.Equal(content, m.Censor(content))
}

func TestModerator_EmptyWordlistIsRejected(t *testing.T) {
	req := require.New(t)

	_, err := NewModerator(nil, '*')
	req.ErrorIs(err, errors.ErrEmptyWords)
}

func TestLoadWordlist(t *testing.T) {
	req := require.New(t)

	path := filepath.Join(t.TempDir(), "words.txt")
	content := "# comment line\nbadword\n\n  other  \n"
	req.NoError(os.WriteFile(path, []byte(content), 0o600))

	words, err := LoadWordlist(path)
	req.NoError(err)
	req.Equal([]string{"badword", "other"}, words)
}
