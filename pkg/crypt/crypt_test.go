package crypt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/pkg/crypt"
)

func TestSealJSONRoundTrip(t *testing.T) {
	box, err := crypt.New("s3cret")
	require.NoError(t, err)

	sealed, err := box.SealJSON(map[string]string{"token": "eyJhbGciOi"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "v1."))
	assert.NotContains(t, sealed, "eyJhbGciOi")

	var out map[string]string
	require.NoError(t, box.OpenJSON(sealed, &out))
	assert.Equal(t, "eyJhbGciOi", out["token"])
}

func TestSealIsSalted(t *testing.T) {
	box, _ := crypt.New("s3cret")
	a, err := box.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := box.Seal([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpenFailures(t *testing.T) {
	one, _ := crypt.New("one")
	two, _ := crypt.New("two")
	sealed, err := one.Seal([]byte("token"))
	require.NoError(t, err)

	tampered := []byte(sealed)
	tampered[len(tampered)-2] ^= 1

	for name, in := range map[string]string{
		"wrong passphrase": sealed,
		"no version":       strings.TrimPrefix(sealed, "v1."),
		"not base64":       "v1.not base64 !!",
		"too short":        "v1.AAAA",
		"tampered":         string(tampered),
	} {
		t.Run(name, func(t *testing.T) {
			box := one
			if name == "wrong passphrase" {
				box = two
			}
			_, err := box.Open(in)
			assert.ErrorIs(t, err, crypt.ErrOpen)
		})
	}
}

func TestEmptyPassphrase(t *testing.T) {
	_, err := crypt.New("")
	assert.Error(t, err)
}
