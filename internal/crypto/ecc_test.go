package crypto

import (
	"bytes"
	"crypto/ecdh"
	"crypto/x509"
	"errors"
	"testing"
)

func TestPublicEncrypt_PrivateDecrypt_RoundTrip(t *testing.T) {
	recipient, err := ecdh.P256().GenerateKey(random())
	if err != nil {
		t.Fatal(err)
	}

	for _, plaintext := range [][]byte{{}, []byte("transmission key"), make([]byte, AESKeySize)} {
		wrapped, err := PublicEncrypt(plaintext, recipient.PublicKey())
		if err != nil {
			t.Fatalf("PublicEncrypt() error = %v", err)
		}
		if len(wrapped) != ECPublicKeySize+AESNonceSize+len(plaintext)+AESTagSize {
			t.Errorf("wrapped length = %d", len(wrapped))
		}
		if wrapped[0] != 0x04 {
			t.Errorf("ephemeral key is not uncompressed, prefix %#x", wrapped[0])
		}

		unwrapped, err := PrivateDecrypt(wrapped, recipient)
		if err != nil {
			t.Fatalf("PrivateDecrypt() error = %v", err)
		}
		if !bytes.Equal(unwrapped, plaintext) {
			t.Errorf("unwrapped = %v, want %v", unwrapped, plaintext)
		}
	}
}

func TestPrivateDecrypt_WrongRecipient(t *testing.T) {
	alice, _ := ecdh.P256().GenerateKey(random())
	bob, _ := ecdh.P256().GenerateKey(random())

	wrapped, err := PublicEncrypt([]byte("secret"), alice.PublicKey())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := PrivateDecrypt(wrapped, bob); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestPrivateDecryptECDSA_DeviceKey(t *testing.T) {
	device, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	pubBytes, err := PublicKeyBytes(device)
	if err != nil {
		t.Fatal(err)
	}
	pub, err := ParsePublicKey(pubBytes)
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}

	wrapped, err := PublicEncrypt([]byte("owner key"), pub)
	if err != nil {
		t.Fatal(err)
	}
	got, err := PrivateDecryptECDSA(wrapped, device)
	if err != nil {
		t.Fatalf("PrivateDecryptECDSA() error = %v", err)
	}
	if string(got) != "owner key" {
		t.Errorf("got %q", got)
	}
}

func TestParsePrivateKey_Encodings(t *testing.T) {
	device, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	pkcs8, err := MarshalPrivateKey(device)
	if err != nil {
		t.Fatal(err)
	}
	sec1, err := x509.MarshalECPrivateKey(device)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := device.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	for name, der := range map[string][]byte{"pkcs8": pkcs8, "sec1": sec1, "raw": raw} {
		t.Run(name, func(t *testing.T) {
			parsed, err := ParsePrivateKey(der)
			if err != nil {
				t.Fatalf("ParsePrivateKey() error = %v", err)
			}
			if !parsed.Equal(device) {
				t.Error("parsed key differs from original")
			}
		})
	}
}

func TestParsePrivateKey_Invalid(t *testing.T) {
	if _, err := ParsePrivateKey([]byte("not a key")); !errors.Is(err, ErrInvalidPrivateKey) {
		t.Errorf("expected ErrInvalidPrivateKey, got %v", err)
	}
}

func TestParsePublicKey_Invalid(t *testing.T) {
	tests := map[string][]byte{
		"short":        make([]byte, 33),
		"not on curve": append([]byte{0x04}, bytes.Repeat([]byte{0x01}, 64)...),
	}
	for name, b := range tests {
		if _, err := ParsePublicKey(b); !errors.Is(err, ErrInvalidPublicKey) {
			t.Errorf("%s: expected ErrInvalidPublicKey, got %v", name, err)
		}
	}
}

func TestSignVerify(t *testing.T) {
	device, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	data := []byte("encrypted key || encrypted payload")

	sig, err := Sign(data, device)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	if err := Verify(data, sig, &device.PublicKey); err != nil {
		t.Errorf("Verify() error = %v", err)
	}

	data[0] ^= 1
	if err := Verify(data, sig, &device.PublicKey); !errors.Is(err, ErrSignatureVerificationFailed) {
		t.Errorf("expected ErrSignatureVerificationFailed, got %v", err)
	}
}

func TestParseVerifyingKey(t *testing.T) {
	device, _ := GenerateKeyPair()
	pubBytes, _ := PublicKeyBytes(device)

	pub, err := ParseVerifyingKey(pubBytes)
	if err != nil {
		t.Fatalf("ParseVerifyingKey() error = %v", err)
	}
	if !pub.Equal(&device.PublicKey) {
		t.Error("verifying key differs from device public key")
	}
}

func TestClientID_Deterministic(t *testing.T) {
	clientKey := []byte("0123456789abcdef0123456789abcdef")

	first := ClientID(clientKey)
	second := ClientID(clientKey)
	if first != second {
		t.Errorf("ClientID not deterministic: %s != %s", first, second)
	}

	decoded, err := FromBase64(first)
	if err != nil {
		t.Fatalf("ClientID is not standard base64: %v", err)
	}
	if !bytes.Equal(decoded, HMACSHA512(clientKey, []byte(ClientIDTag))) {
		t.Error("ClientID does not match HMAC-SHA512 of the tag")
	}
	if len(decoded) != 64 {
		t.Errorf("HMAC length = %d, want 64", len(decoded))
	}

	if ClientID([]byte("another key")) == first {
		t.Error("different keys produced the same client id")
	}
}
