package githubenv

import (
	"crypto/rand"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/nacl/box"

	"github.com/anirudhbiyani/ade-bootstrap/pkg/provision"
)

func TestSealSecretRoundTrip(t *testing.T) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sealed, err := sealSecret("hunter2", base64.StdEncoding.EncodeToString(pub[:]))
	require.NoError(t, err)

	// The ciphertext is valid base64 and opens back to the plaintext with
	// the recipient's private key.
	raw, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)

	opened, ok := box.OpenAnonymous(nil, raw, pub, priv)
	require.True(t, ok)
	assert.Equal(t, "hunter2", string(opened))
}

func TestSealSecretRandomized(t *testing.T) {
	pub, _, err := box.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key := base64.StdEncoding.EncodeToString(pub[:])

	first, err := sealSecret("same value", key)
	require.NoError(t, err)
	second, err := sealSecret("same value", key)
	require.NoError(t, err)

	// Anonymous boxes use an ephemeral sender key per seal.
	assert.NotEqual(t, first, second)
}

func TestSealSecretBadKey(t *testing.T) {
	_, err := sealSecret("v", "not base64!!!")
	require.Error(t, err)
	assert.True(t, provision.IsCategory(err, provision.ErrCategoryValidation))

	_, err = sealSecret("v", base64.StdEncoding.EncodeToString([]byte("short")))
	require.Error(t, err)
	assert.True(t, provision.IsCategory(err, provision.ErrCategoryValidation))
}
