package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessage_Reactions(t *testing.T) {
	req := require.New(t)
	var msg Message

	// Reacting twice with the same emoji is idempotent
	msg.AddReaction("🔥", "u1")
	msg.AddReaction("🔥", "u1")
	msg.AddReaction("🔥", "u2")
	req.Equal([]string{"u1", "u2"}, msg.Reactions["🔥"])

	// Removing an absent reactor changes nothing
	msg.RemoveReaction("🔥", "u3")
	req.Equal([]string{"u1", "u2"}, msg.Reactions["🔥"])

	msg.RemoveReaction("🔥", "u1")
	req.Equal([]string{"u2"}, msg.Reactions["🔥"])

	// The emoji entry disappears with its last reactor
	msg.RemoveReaction("🔥", "u2")
	req.NotContains(msg.Reactions, "🔥")
}
