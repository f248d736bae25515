// Package controller holds the API keys accepted by the ingest server.
package controller

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// TokenPrefix starts every generated token.
const TokenPrefix = "lm-"

// ErrInvalidHash is returned for key hashes that are not bcrypt hashes.
var ErrInvalidHash = errors.New("invalid api key hash")

// APIKey is an accepted ingest key. Only its bcrypt hash is kept.
type APIKey struct {
	ID        string `json:"id"`
	Hash      string `json:"hash"`
	CreatedAt int64  `json:"created_at"`
}

// KeyStore verifies bearer tokens against bcrypt hashes. Tokens that passed
// verification are remembered by digest so repeated requests skip bcrypt.
type KeyStore struct {
	mu       sync.RWMutex
	keys     []APIKey
	verified map[string]string
}

// NewKeyStore creates a store accepting the given hashes.
func NewKeyStore(hashes []string) (*KeyStore, error) {
	s := &KeyStore{verified: make(map[string]string)}
	for _, h := range hashes {
		if _, err := s.Add(h); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add accepts another hash and returns its key entry.
func (s *KeyStore) Add(hash string) (APIKey, error) {
	hash = strings.TrimSpace(hash)
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return APIKey{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	k := APIKey{ID: uuid.New().String(), Hash: hash, CreatedAt: time.Now().Unix()}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, k)
	return k, nil
}

// Remove drops a key by ID along with any verification it backed.
func (s *KeyStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, k := range s.keys {
		if k.ID == id {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			for digest, keyID := range s.verified {
				if keyID == id {
					delete(s.verified, digest)
				}
			}
			return true
		}
	}
	return false
}

// Keys returns a copy of the accepted keys.
func (s *KeyStore) Keys() []APIKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]APIKey(nil), s.keys...)
}

// Enabled reports whether any key is configured. A store without keys
// accepts no tokens; callers decide whether that means open access.
func (s *KeyStore) Enabled() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys) > 0
}

// Verify reports whether token matches one of the keys.
func (s *KeyStore) Verify(token string) bool {
	if s == nil || token == "" {
		return false
	}
	sum := sha256.Sum256([]byte(token))
	digest := hex.EncodeToString(sum[:])

	s.mu.RLock()
	_, ok := s.verified[digest]
	keys := append([]APIKey(nil), s.keys...)
	s.mu.RUnlock()
	if ok {
		return true
	}

	for _, k := range keys {
		if bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(token)) == nil {
			s.mu.Lock()
			s.verified[digest] = k.ID
			s.mu.Unlock()
			return true
		}
	}
	return false
}

// GenerateToken returns a new random token.
func GenerateToken() (string, error) {
	b := make([]byte, 24)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return TokenPrefix + hex.EncodeToString(b), nil
}

// HashToken returns the bcrypt hash to configure for token.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
