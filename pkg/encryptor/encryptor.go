package encryptor

import (
	"github.com/gtank/cryptopasta"
	"github.com/pkg/errors"
)

// Encryptor seals small records (the token pair) with AES-GCM before they
// hit disk. The secret string is truncated/padded to 32 bytes.
type Encryptor struct {
	secret *[32]byte
}

func New(secretString string) *Encryptor {
	secret := &[32]byte{}
	copy(secret[:], secretString)
	return &Encryptor{secret: secret}
}

func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	encrypted, err := cryptopasta.Encrypt(plaintext, e.secret)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encrypt record")
	}
	return encrypted, nil
}

func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	decrypted, err := cryptopasta.Decrypt(ciphertext, e.secret)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt record")
	}
	return decrypted, nil
}
