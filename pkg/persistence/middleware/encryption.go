package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/ferry/pkg/domain"
	"github.com/aretw0/ferry/pkg/ports"
)

const encryptedSlot = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next ports.EntryStore
	keys *keyring
}

// NewEncryptionMiddleware creates a middleware that encrypts whole history entries
// using AES-GCM, so pages and remembered state are opaque at rest.
// Ciphertexts are bound to their storage key.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	keys, err := newKeyring(config)
	if err != nil {
		panic(err)
	}
	return func(next ports.EntryStore) ports.EntryStore {
		return &encryptionMiddleware{
			next: next,
			keys: keys,
		}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, key string, entry *domain.Entry) error {
	plainText, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	ciphertext, err := m.keys.seal(plainText, []byte(key))
	if err != nil {
		return fmt.Errorf("failed to encrypt entry: %w", err)
	}

	// The envelope only exposes the key and timestamp.
	blob, _ := json.Marshal(base64.StdEncoding.EncodeToString(ciphertext))
	envelope := &domain.Entry{
		Key:        entry.Key,
		Remembered: map[string]json.RawMessage{encryptedSlot: blob},
		UpdatedAt:  entry.UpdatedAt,
	}
	return m.next.Save(ctx, key, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, key string) (*domain.Entry, error) {
	envelope, err := m.next.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	raw, ok := envelope.Remembered[encryptedSlot]
	if !ok || envelope.Page != nil {
		// Fail secure: a plain entry under an encrypting store is not trusted.
		return nil, errors.New("entry is missing encrypted data envelope")
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := m.keys.open(ciphertext, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt entry: %w", err)
	}

	var entry domain.Entry
	if err := json.Unmarshal(plainText, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted entry: %w", err)
	}
	return &entry, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *encryptionMiddleware) List(ctx context.Context, prefix string) ([]string, error) {
	return m.next.List(ctx, prefix)
}

// keyring holds one AEAD per configured key, the active one first.
type keyring struct {
	aeads []cipher.AEAD
}

func newKeyring(config EncryptionConfig) (*keyring, error) {
	k := &keyring{}
	for i, key := range append([][]byte{config.ActiveKey}, config.FallbackKeys...) {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key %d: %w", i, err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key %d: %w", i, err)
		}
		k.aeads = append(k.aeads, aead)
	}
	return k, nil
}

// seal encrypts with the active key. The nonce prefixes the ciphertext.
func (k *keyring) seal(plaintext, aad []byte) ([]byte, error) {
	aead := k.aeads[0]
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, aad), nil
}

// open tries the active key, then the fallbacks in order.
func (k *keyring) open(ciphertext, aad []byte) ([]byte, error) {
	for _, aead := range k.aeads {
		n := aead.NonceSize()
		if len(ciphertext) < n+aead.Overhead() {
			return nil, errors.New("ciphertext too short")
		}
		if plain, err := aead.Open(nil, ciphertext[:n], ciphertext[n:], aad); err == nil {
			return plain, nil
		}
	}
	return nil, errors.New("decryption failed with all available keys")
}
