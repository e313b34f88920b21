package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

const (
	codeExpiry  = 5 * time.Minute
	maxAttempts = 5
)

var (
	ErrCodeStillValid = errors.New("a verification code was already sent, try again later")
	ErrCodeInvalid    = errors.New("invalid or expired verification code")
)

type codeEntry struct {
	hash      string
	expiresAt time.Time
	attempts  int
}

// CodeStore holds pending phone verification codes in memory. Only salted
// hashes are kept. Entries are removed on success, after maxAttempts
// failures, or by Sweep once expired.
type CodeStore struct {
	mu      sync.Mutex
	entries map[string]*codeEntry
	salt    string
	now     func() time.Time
}

func NewCodeStore(salt string) *CodeStore {
	return &CodeStore{entries: make(map[string]*codeEntry), salt: salt, now: time.Now}
}

// Issue generates a code for phone. It fails while an unexpired code exists.
func (s *CodeStore) Issue(phone string) (string, error) {
	code, err := generateOTPCode()
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if e, ok := s.entries[phone]; ok && now.Before(e.expiresAt) {
		return "", ErrCodeStillValid
	}
	s.entries[phone] = &codeEntry{hash: hashOTPHex(phone, code, s.salt), expiresAt: now.Add(codeExpiry)}
	return code, nil
}

// Verify consumes the code for phone if it matches.
func (s *CodeStore) Verify(phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[phone]
	if !ok {
		return ErrCodeInvalid
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, phone)
		return ErrCodeInvalid
	}

	expected, err := hex.DecodeString(e.hash)
	if err != nil || !constantTimeCompare(hashOTPBytes(phone, code, s.salt), expected) {
		e.attempts++
		if e.attempts >= maxAttempts {
			delete(s.entries, phone)
		}
		return ErrCodeInvalid
	}

	delete(s.entries, phone)
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (s *CodeStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for phone, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, phone)
			n++
		}
	}
	return n
}

func generateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// hashOTPHex returns SHA-256(phone:code:salt) as hex
func hashOTPHex(phone, code, salt string) string {
	return hex.EncodeToString(hashOTPBytes(phone, code, salt))
}

func hashOTPBytes(phone, code, salt string) []byte {
	data := fmt.Sprintf("%s:%s:%s", phone, code, salt)
	hash := sha256.Sum256([]byte(data))
	return hash[:]
}

func constantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
