package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	sealed, err := sealToken(testSecretKey, "act.example.token")
	require.NoError(t, err)
	require.NotEqual(t, "act.example.token", sealed)

	plain, err := openToken(testSecretKey, sealed)
	require.NoError(t, err)
	assert.Equal(t, "act.example.token", plain)
}

func TestOpenTokenWrongSecret(t *testing.T) {
	sealed, err := sealToken(testSecretKey, "act.example.token")
	require.NoError(t, err)

	_, err = openToken("ffffffffffffffffffffffffffffffff", sealed)
	assert.Error(t, err)
}

func TestOpenTokenRejectsGarbage(t *testing.T) {
	_, err := openToken(testSecretKey, "not base64!")
	assert.Error(t, err)

	_, err = openToken(testSecretKey, "c2hvcnQ=")
	assert.Error(t, err)
}
