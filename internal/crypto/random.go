package crypto

import (
	"crypto/rand"
	"io"
)

// randReader is the random source used for keys and nonces.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

func random() io.Reader {
	if randReader != nil {
		return randReader
	}
	return rand.Reader
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(random(), b); err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateAESKey returns a fresh 256-bit symmetric key.
func GenerateAESKey() ([]byte, error) {
	return RandomBytes(AESKeySize)
}
