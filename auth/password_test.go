package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPassword_RoundTrip(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("s3cret-passphrase")
	req.NoError(err)
	req.NotContains(hash, "s3cret-passphrase")

	ok, err := ComparePassword("s3cret-passphrase", hash)
	req.NoError(err)
	req.True(ok)
}

func TestPassword_MismatchFails(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("right")
	req.NoError(err)

	ok, err := ComparePassword("wrong", hash)
	req.NoError(err)
	req.False(ok)
}

func TestPassword_HashesAreSalted(t *testing.T) {
	req := require.New(t)

	first, err := HashPassword("same")
	req.NoError(err)
	second, err := HashPassword("same")
	req.NoError(err)

	req.NotEqual(first, second)
}
