package githubenv

import (
	"crypto/rand"
	"encoding/base64"

	"golang.org/x/crypto/nacl/box"

	"github.com/anirudhbiyani/ade-bootstrap/pkg/provision"
)

// sealSecret encrypts plaintext against a repository environment's
// base64-encoded public key using an anonymous sealed box, the only format
// the secrets API accepts. The ciphertext comes back base64-encoded for the
// wire.
func sealSecret(plaintext, publicKeyB64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return "", provision.ErrValidation("environment public key is not valid base64").WithCause(err)
	}
	if len(raw) != 32 {
		return "", provision.ErrValidation("environment public key has wrong length").
			WithDetail("length", len(raw))
	}

	var key [32]byte
	copy(key[:], raw)

	sealed, err := box.SealAnonymous(nil, []byte(plaintext), &key, rand.Reader)
	if err != nil {
		return "", provision.ErrInternal("failed to seal secret").WithCause(err)
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}
