package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/denisbrodbeck/machineid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealedPrefix = "ENC[v1]:"

var (
	ErrInvalidKey    = errors.New("invalid credentials key: must be 32 bytes, base64 encoded")
	ErrInvalidSealed = errors.New("invalid sealed value")
	ErrOpenFailed    = errors.New("unable to open sealed value")
)

// Sealer encrypts secrets at rest with XChaCha20-Poly1305.
// Sealed values look like ENC[v1]:base64(nonce||ciphertext).
type Sealer struct {
	key []byte
}

// machineID is replaceable in tests.
var machineID = func() (string, error) {
	return machineid.ProtectedID("eabridge")
}

func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Sealer{key: k}, nil
}

// NewSealerFromConfig uses CREDENTIALS_KEY when set, otherwise a key derived from
// this machine's id. Values sealed with a derived key cannot be moved to another host.
func NewSealerFromConfig(cfg Config) (*Sealer, error) {
	if cfg.CredentialsKey != "" {
		key, err := base64.StdEncoding.DecodeString(cfg.CredentialsKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return NewSealer(key)
	}

	key, err := DeriveMachineKey("credentials")
	if err != nil {
		return nil, err
	}
	return NewSealer(key)
}

// DeriveMachineKey expands this machine's protected id into a 32 byte key for purpose.
func DeriveMachineKey(purpose string) ([]byte, error) {
	id, err := machineID()
	if err != nil {
		return nil, fmt.Errorf("read machine id: %w", err)
	}
	r := hkdf.New(sha256.New, []byte(id), []byte("eabridge"), []byte(purpose))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

func (s *Sealer) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Sealer) Open(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return "", ErrInvalidSealed
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSealed, err)
	}

	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return "", ErrInvalidSealed
	}

	nonce, ciphertext := data[:aead.NonceSize()], data[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrOpenFailed
	}
	return string(plaintext), nil
}
