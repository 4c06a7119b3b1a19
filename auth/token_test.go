package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", time.Hour)

	credential, err := tokens.Generate("u1", "alice@example.com")
	req.NoError(err)

	userID, err := tokens.Verify(credential)
	req.NoError(err)
	req.Equal("u1", userID)
}

func TestTokens_WrongSecretIsRejected(t *testing.T) {
	req := require.New(t)

	credential, err := NewTokens("secret-a", time.Hour).Generate("u1", "")
	req.NoError(err)

	_, err = NewTokens("secret-b", time.Hour).Verify(credential)
	req.Error(err)
}

func TestTokens_ExpiredIsRejected(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", -time.Minute)

	credential, err := tokens.Generate("u1", "")
	req.NoError(err)

	_, err = tokens.Verify(credential)
	req.Error(err)
}

func TestTokens_GarbageIsRejected(t *testing.T) {
	req := require.New(t)

	_, err := NewTokens("test-secret", time.Hour).Verify("not-a-token")
	req.Error(err)
}
