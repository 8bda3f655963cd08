package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const kdfIterations = 100_000

var kdfSalt = []byte("y2m-token-store")

// Sealer encrypts and decrypts stored account tokens with AES-256-GCM. The
// key is derived from the configured passphrase via PBKDF2-SHA256. An empty
// passphrase yields a passthrough sealer: tokens are stored in the clear.
type Sealer struct {
	aead cipher.AEAD
}

func New(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return &Sealer{}, nil
	}
	key := pbkdf2.Key([]byte(passphrase), kdfSalt, kdfIterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Encrypt seals plaintext into a URL-safe token. Passthrough when no key is
// configured.
func (s *Sealer) Encrypt(plain string) (string, error) {
	if s.aead == nil {
		return plain, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a sealed token. Inputs that were never sealed (legacy rows,
// passthrough mode) are returned unchanged.
func (s *Sealer) Decrypt(sealed string) string {
	if s.aead == nil {
		return sealed
	}
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < s.aead.NonceSize() {
		return sealed
	}
	nonce, body := raw[:s.aead.NonceSize()], raw[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return sealed
	}
	return string(plain)
}

// HashToken returns the hex SHA-256 of a plaintext bearer token, the lookup
// key used to match provider requests without decrypting stored rows.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
