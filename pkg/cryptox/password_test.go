package cryptox_test

import (
	"strings"
	"testing"

	"github.com/gymslim/portal/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := cryptox.HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.NoError(t, cryptox.VerifyPassword("correct horse battery staple", hash))
	require.Error(t, cryptox.VerifyPassword("wrong password", hash))
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	a, err := cryptox.HashPassword("secret")
	require.NoError(t, err)
	b, err := cryptox.HashPassword("secret")
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	require.NoError(t, cryptox.VerifyPassword("secret", a))
	require.NoError(t, cryptox.VerifyPassword("secret", b))
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	for _, bad := range []string{
		"",
		"plaintext",
		"$bcrypt$whatever",
		"$argon2id$v=18$m=1,t=1,p=1$YQ$YQ",
		"$argon2id$v=19$m=bogus$YQ$YQ",
	} {
		require.Error(t, cryptox.VerifyPassword("x", bad), "hash %q", bad)
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := cryptox.GeneratePassword()
	require.NoError(t, err)
	require.Len(t, a, 12)

	b, err := cryptox.GeneratePassword()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
