package cryptox_test

import (
	"testing"

	"github.com/gymslim/portal/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tok, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.Len(t, tok, 43) // 32 bytes base64url, no padding

	other, err := cryptox.GenerateToken(cryptox.TokenSize256)
	require.NoError(t, err)
	require.NotEqual(t, tok, other)

	_, err = cryptox.GenerateToken(0)
	require.Error(t, err)
	_, err = cryptox.GenerateToken(-1)
	require.Error(t, err)
}

func TestFingerprintToken(t *testing.T) {
	fp := cryptox.FingerprintToken("some-token")
	require.Len(t, fp, 43)
	require.Equal(t, fp, cryptox.FingerprintToken("some-token"))
	require.NotEqual(t, fp, cryptox.FingerprintToken("other-token"))
	require.NotEqual(t, "some-token", fp)
}
