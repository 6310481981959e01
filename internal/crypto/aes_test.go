package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func mustKey(t testing.TB) []byte {
	t.Helper()
	key, err := GenerateAESKey()
	if err != nil {
		t.Fatal(err)
	}
	return key
}

func TestEncryptAES_DecryptAES_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"simple", []byte("hello world")},
		{"json", []byte(`{"title": "db", "fields": []}`)},
		{"binary", []byte{0x00, 0xff, 0x7f, 0x80}},
		{"record key", make([]byte, AESKeySize)},
		{"large", make([]byte, 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := mustKey(t)

			ciphertext, err := EncryptAES(key, tt.plaintext)
			if err != nil {
				t.Fatalf("EncryptAES() error = %v", err)
			}

			expectedLen := AESNonceSize + len(tt.plaintext) + AESTagSize
			if len(ciphertext) != expectedLen {
				t.Errorf("ciphertext length = %d, want %d", len(ciphertext), expectedLen)
			}

			decrypted, err := DecryptAES(key, ciphertext)
			if err != nil {
				t.Fatalf("DecryptAES() error = %v", err)
			}
			if !bytes.Equal(decrypted, tt.plaintext) {
				t.Errorf("decrypted = %v, want %v", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncryptAES_FreshNonce(t *testing.T) {
	key := mustKey(t)
	a, err := EncryptAES(key, []byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncryptAES(key, []byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a[:AESNonceSize], b[:AESNonceSize]) {
		t.Error("two encryptions reused a nonce")
	}
}

func TestEncryptAESWithNonce_PrefixesNonce(t *testing.T) {
	key := mustKey(t)
	nonce := bytes.Repeat([]byte{7}, AESNonceSize)

	ciphertext, err := EncryptAESWithNonce(key, []byte("payload"), nonce)
	if err != nil {
		t.Fatalf("EncryptAESWithNonce() error = %v", err)
	}
	if !bytes.Equal(ciphertext[:AESNonceSize], nonce) {
		t.Error("ciphertext doesn't start with nonce")
	}
}

func TestEncryptAES_InvalidKeySize(t *testing.T) {
	for _, size := range []int{0, 16, 64} {
		t.Run(fmt.Sprintf("%d bytes", size), func(t *testing.T) {
			_, err := EncryptAES(make([]byte, size), []byte("test"))
			if !errors.Is(err, ErrInvalidKeySize) {
				t.Errorf("expected ErrInvalidKeySize, got %v", err)
			}
		})
	}
}

func TestEncryptAESWithNonce_InvalidNonceSize(t *testing.T) {
	key := mustKey(t)
	for _, size := range []int{0, 8, 16} {
		t.Run(fmt.Sprintf("%d bytes", size), func(t *testing.T) {
			_, err := EncryptAESWithNonce(key, []byte("test"), make([]byte, size))
			if !errors.Is(err, ErrInvalidNonceSize) {
				t.Errorf("expected ErrInvalidNonceSize, got %v", err)
			}
		})
	}
}

func TestDecryptAES_CiphertextTooShort(t *testing.T) {
	key := mustKey(t)
	for _, length := range []int{0, AESNonceSize, AESNonceSize + AESTagSize - 1} {
		_, err := DecryptAES(key, make([]byte, length))
		if !errors.Is(err, ErrCiphertextTooShort) {
			t.Errorf("length %d: expected ErrCiphertextTooShort, got %v", length, err)
		}
	}
}

func TestDecryptAES_TamperedCiphertext(t *testing.T) {
	key := mustKey(t)
	ciphertext, err := EncryptAES(key, []byte("sensitive data"))
	if err != nil {
		t.Fatal(err)
	}

	ciphertext[len(ciphertext)/2] ^= 0xff

	_, err = DecryptAES(key, ciphertext)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDecryptAES_WrongKey(t *testing.T) {
	appKey := mustKey(t)
	folderKey := mustKey(t)

	wrapped, err := EncryptAES(folderKey, mustKey(t))
	if err != nil {
		t.Fatal(err)
	}

	_, err = DecryptAES(appKey, wrapped)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func BenchmarkEncryptAES(b *testing.B) {
	key := mustKey(b)
	plaintext := make([]byte, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = EncryptAES(key, plaintext)
	}
}

func BenchmarkDecryptAES(b *testing.B) {
	key := mustKey(b)
	ciphertext, _ := EncryptAES(key, make([]byte, 1000))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = DecryptAES(key, ciphertext)
	}
}

// Example_encryptDecrypt demonstrates wrapping a record key with a folder key.
func Example_encryptDecrypt() {
	folderKey, _ := GenerateAESKey()

	wrapped, err := EncryptAES(folderKey, []byte("Hello, World!"))
	if err != nil {
		panic(err)
	}

	plaintext, err := DecryptAES(folderKey, wrapped)
	if err != nil {
		panic(err)
	}
	fmt.Println(string(plaintext))
	// Output: Hello, World!
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestEncryptAES_RandomFailure(t *testing.T) {
	restore := SetRandReaderForTesting(failingReader{})
	defer restore()

	if _, err := GenerateAESKey(); err == nil {
		t.Error("GenerateAESKey() should fail without entropy")
	}
	if _, err := EncryptAES(make([]byte, AESKeySize), []byte("x")); err == nil {
		t.Error("EncryptAES() should fail without entropy")
	}
}

func TestSetRandReaderForTesting_Deterministic(t *testing.T) {
	restore := SetRandReaderForTesting(bytes.NewReader(bytes.Repeat([]byte{7}, 2*AESNonceSize)))
	defer restore()

	key := make([]byte, AESKeySize)
	a, err := EncryptAES(key, []byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := EncryptAES(key, []byte("same"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("same nonce source should give the same ciphertext")
	}
}
