package encryption

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/Desarso/chatrelay/models"
)

func testCipher() *Cipher {
	return NewCipher(NewKeyRegistry(true, "client-key-hash", ModeStrict))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := testCipher()

	inputs := []string{"hello", "", "a longer message with spaces and ünïcödé ✓", "x"}
	for _, plaintext := range inputs {
		payload, err := c.Encrypt([]byte(plaintext), "client-key-hash")
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plaintext, err)
		}

		recovered, err := c.Decrypt(payload)
		if err != nil {
			t.Fatalf("Decrypt after Encrypt(%q): %v", plaintext, err)
		}
		if string(recovered) != plaintext {
			t.Errorf("round trip of %q produced %q", plaintext, recovered)
		}
	}
}

func TestEncryptProducesFreshNonces(t *testing.T) {
	c := testCipher()

	first, err := c.Encrypt([]byte("same message"), "client-key-hash")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Encrypt([]byte("same message"), "client-key-hash")
	if err != nil {
		t.Fatal(err)
	}
	if first.Data == second.Data {
		t.Error("two encryptions of the same plaintext produced identical payloads")
	}
}

func TestDecryptTamperDetection(t *testing.T) {
	c := testCipher()

	payload, err := c.Encrypt([]byte("authentic message"), "client-key-hash")
	if err != nil {
		t.Fatal(err)
	}

	raw, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		t.Fatal(err)
	}

	// Flip one bit in each region: nonce, ciphertext body, tag.
	for _, pos := range []int{0, NonceSize + 1, len(raw) - 1} {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[pos] ^= 0x01

		_, err := c.Decrypt(models.EncryptedPayload{
			Data:    base64.StdEncoding.EncodeToString(tampered),
			KeyHash: "client-key-hash",
		})
		if !errors.Is(err, ErrAuthenticationFailed) {
			t.Errorf("bit flip at %d: expected ErrAuthenticationFailed, got %v", pos, err)
		}
	}
}

func TestDecryptShortPayload(t *testing.T) {
	c := testCipher()

	short := base64.StdEncoding.EncodeToString(make([]byte, NonceSize-1))
	_, err := c.Decrypt(models.EncryptedPayload{Data: short, KeyHash: "client-key-hash"})
	if !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload for %d-byte payload, got %v", NonceSize-1, err)
	}
}

func TestDecryptBadBase64(t *testing.T) {
	c := testCipher()

	_, err := c.Decrypt(models.EncryptedPayload{Data: "not!!valid!!base64", KeyHash: "client-key-hash"})
	if !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("expected ErrMalformedPayload, got %v", err)
	}
}

func TestDecryptWrongKeyHash(t *testing.T) {
	c := testCipher()

	payload, err := c.Encrypt([]byte("secret"), "client-key-hash")
	if err != nil {
		t.Fatal(err)
	}
	payload.KeyHash = "some-other-hash"

	_, err = c.Decrypt(payload)
	if !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestCipherDisabled(t *testing.T) {
	c := NewCipher(NewKeyRegistry(false, "", ""))

	if _, err := c.Encrypt([]byte("hi"), "any"); !errors.Is(err, ErrNotEnabled) {
		t.Errorf("Encrypt on disabled cipher: expected ErrNotEnabled, got %v", err)
	}
	if _, err := c.Decrypt(models.EncryptedPayload{Data: "aGk=", KeyHash: "any"}); !errors.Is(err, ErrNotEnabled) {
		t.Errorf("Decrypt on disabled cipher: expected ErrNotEnabled, got %v", err)
	}
}
