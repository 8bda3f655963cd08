package oauth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

const defaultCodeTTL = 10 * time.Minute

// AuthCode is one ephemeral authorization code issued to the skill.
type AuthCode struct {
	Code        string
	ClientID    string
	RedirectURI string
	Scope       string
	State       string
	UserTokenID string
	IssuedAt    time.Time
}

// CodeStore holds in-process authorization codes. Codes are single-use and
// expire after the configured TTL; expired entries are swept lazily on
// issue and exchange.
type CodeStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	codes map[string]AuthCode
}

func NewCodeStore(ttl time.Duration) *CodeStore {
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	return &CodeStore{ttl: ttl, now: time.Now, codes: make(map[string]AuthCode)}
}

// Issue mints a fresh cryptographically random URL-safe code.
func (s *CodeStore) Issue(clientID, redirectURI, scope, state, userTokenID string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate authorization code: %w", err)
	}
	code := base64.RawURLEncoding.EncodeToString(raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.codes[code] = AuthCode{
		Code:        code,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scope:       scope,
		State:       state,
		UserTokenID: userTokenID,
		IssuedAt:    s.now(),
	}
	return code, nil
}

// Consume removes and returns the code atomically. A second exchange of the
// same code, or an expired code, reports false.
func (s *CodeStore) Consume(code string) (AuthCode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	entry, ok := s.codes[code]
	if !ok {
		return AuthCode{}, false
	}
	delete(s.codes, code)
	return entry, true
}

func (s *CodeStore) sweepLocked() {
	cutoff := s.now().Add(-s.ttl)
	for code, entry := range s.codes {
		if entry.IssuedAt.Before(cutoff) {
			delete(s.codes, code)
		}
	}
}
