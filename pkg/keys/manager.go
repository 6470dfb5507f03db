// Package keys owns the process-wide field encryption key: loading or
// generating it at startup and using it to encrypt and decrypt single field
// values.
//
// Tokens are stored as "enc:v1:<base64(nonce+ciphertext)>". The master key on
// disk is never used directly; an AES-256 field key is derived from it with
// HKDF so the same master secret can be reused for other purposes later.
package keys

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

const (
	// KeySize is the length in bytes of the master key.
	KeySize = 32

	tokenPrefix = "enc:v1:"
	hkdfSalt    = "go-securedocs"
	hkdfInfo    = "field-encryption"
)

// Manager encrypts and decrypts field values under one symmetric key.
// It is immutable after construction and safe for concurrent use.
type Manager struct {
	gcm cipher.AEAD
}

// NewManager derives the field key from a master key and returns a Manager.
func NewManager(master []byte) (*Manager, error) {
	if len(master) != KeySize {
		return nil, fmt.Errorf("%w: master key must be %d bytes, got %d", domain.ErrKeyIO, KeySize, len(master))
	}

	fieldKey := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, []byte(hkdfSalt), []byte(hkdfInfo)), fieldKey); err != nil {
		return nil, fmt.Errorf("%w: derive field key: %v", domain.ErrKeyIO, err)
	}

	block, err := aes.NewCipher(fieldKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyIO, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyIO, err)
	}
	return &Manager{gcm: gcm}, nil
}

// GenerateKey returns a fresh random master key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: generate key: %v", domain.ErrKeyIO, err)
	}
	return key, nil
}

// Encrypt serializes value to its canonical JSON form and seals it. Repeated
// calls with the same value yield different tokens.
func (m *Manager) Encrypt(value interface{}) (string, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: canonical form: %v", domain.ErrEncryption, err)
	}

	nonce := make([]byte, m.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: nonce: %v", domain.ErrEncryption, err)
	}

	sealed := m.gcm.Seal(nonce, nonce, plaintext, nil)
	return tokenPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a token produced by Encrypt and decodes the canonical form
// back into a value. Numbers come back as json.Number holding the exact
// literal that was sealed.
func (m *Manager) Decrypt(token string) (interface{}, error) {
	if !strings.HasPrefix(token, tokenPrefix) {
		return nil, fmt.Errorf("%w: missing token prefix", domain.ErrDecryption)
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(token, tokenPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", domain.ErrDecryption, err)
	}

	nonceSize := m.gcm.NonceSize()
	if len(sealed) < nonceSize+m.gcm.Overhead() {
		return nil, fmt.Errorf("%w: token too short", domain.ErrDecryption)
	}

	plaintext, err := m.gcm.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecryption, err)
	}

	value, err := decodeCanonical(plaintext)
	if err != nil {
		return nil, fmt.Errorf("%w: canonical form: %v", domain.ErrDecryption, err)
	}
	return value, nil
}

func decodeCanonical(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data")
	}
	return value, nil
}

// IsToken reports whether s looks like a value produced by Encrypt.
func IsToken(s string) bool {
	return strings.HasPrefix(s, tokenPrefix)
}
