// Package auth 提供报告接口的令牌认证功能
//
// Callers exchange an API key (checked against a bcrypt hash) for a
// short-lived HS256 JWT and present it as a Bearer token.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

// MinSecretLength is the shortest accepted JWT secret in bytes.
const MinSecretLength = 32

// DefaultTTL is the lifetime of issued tokens.
const DefaultTTL = 24 * time.Hour

const subject = "gpu-detect"

var (
	ErrWeakSecret      = fmt.Errorf("auth: JWT secret must be at least %d bytes", MinSecretLength)
	ErrNoAPIKey        = errors.New("auth: no API key configured")
	ErrInvalidAPIKey   = errors.New("auth: invalid API key")
	ErrTooManyAttempts = errors.New("auth: too many attempts")
	ErrRevoked         = errors.New("auth: token revoked")
)

// Authenticator issues and validates tokens.
type Authenticator struct {
	key        []byte
	apiKeyHash []byte
	ttl        time.Duration
	revoked    *revokedJWTStore
	limiters   *loginLimiterStore
}

// New returns an Authenticator signing with secret. apiKeyHash may be empty,
// in which case tokens can be validated but not issued.
func New(secret, apiKeyHash string) (*Authenticator, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &Authenticator{
		key:        []byte(secret),
		apiKeyHash: []byte(apiKeyHash),
		ttl:        DefaultTTL,
		revoked:    newRevokedJWTStore(30 * time.Minute),
		limiters:   newLoginLimiterStore(1, 5, 10*time.Minute),
	}, nil
}

// HashAPIKey 生成 API Key 的 bcrypt 哈希，用于 API_KEY_HASH
func HashAPIKey(apiKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	return string(hash), err
}

// IssueToken checks apiKey and returns a signed token. clientKey scopes the
// attempt limiter, normally the caller's address.
func (a *Authenticator) IssueToken(apiKey, clientKey string) (string, time.Time, error) {
	if len(a.apiKeyHash) == 0 {
		return "", time.Time{}, ErrNoAPIKey
	}
	if clientKey == "" {
		clientKey = "_"
	}
	if !a.limiters.get(clientKey).Allow() {
		return "", time.Time{}, ErrTooManyAttempts
	}
	if err := bcrypt.CompareHashAndPassword(a.apiKeyHash, []byte(apiKey)); err != nil {
		return "", time.Time{}, ErrInvalidAPIKey
	}

	now := time.Now()
	exp := now.Add(a.ttl)
	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Validate 验证JWT令牌并返回声明
func (a *Authenticator) Validate(tokenString string) (*jwt.RegisteredClaims, error) {
	claims, err := a.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if a.revoked.isRevoked(hashToken(tokenString)) {
		return nil, ErrRevoked
	}
	return claims, nil
}

// Revoke marks a token as revoked until it expires.
func (a *Authenticator) Revoke(tokenString string) {
	claims, err := a.parse(tokenString)
	if err != nil {
		return
	}
	exp := time.Now().Add(a.ttl)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	a.revoked.revoke(hashToken(tokenString), exp)
}

func (a *Authenticator) parse(tokenString string) (*jwt.RegisteredClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

type revokedJWTStore struct {
	mu         sync.Mutex
	items      map[string]time.Time // tokenHash -> expiresAt
	lastGC     time.Time
	gcInterval time.Duration
}

func newRevokedJWTStore(gcInterval time.Duration) *revokedJWTStore {
	if gcInterval <= 0 {
		gcInterval = 30 * time.Minute
	}
	return &revokedJWTStore{
		items:      make(map[string]time.Time),
		lastGC:     time.Now(),
		gcInterval: gcInterval,
	}
}

func (s *revokedJWTStore) revoke(tokenHash string, expiresAt time.Time) {
	if tokenHash == "" {
		return
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastGC) >= s.gcInterval {
		for k, exp := range s.items {
			if !exp.After(now) {
				delete(s.items, k)
			}
		}
		s.lastGC = now
	}
	s.items[tokenHash] = expiresAt
}

func (s *revokedJWTStore) isRevoked(tokenHash string) bool {
	if tokenHash == "" {
		return false
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.items[tokenHash]
	if !ok {
		return false
	}
	if !exp.After(now) {
		delete(s.items, tokenHash)
		return false
	}
	return true
}

func hashToken(tokenString string) string {
	if strings.TrimSpace(tokenString) == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:])
}

type loginLimiterStore struct {
	mu         sync.Mutex
	limiters   map[string]*rate.Limiter
	lastSeen   map[string]time.Time
	r          rate.Limit
	burst      int
	maxIdle    time.Duration
	lastGC     time.Time
	gcInterval time.Duration
}

func newLoginLimiterStore(r rate.Limit, burst int, maxIdle time.Duration) *loginLimiterStore {
	if maxIdle <= 0 {
		maxIdle = 10 * time.Minute
	}
	return &loginLimiterStore{
		limiters:   make(map[string]*rate.Limiter),
		lastSeen:   make(map[string]time.Time),
		r:          r,
		burst:      burst,
		maxIdle:    maxIdle,
		gcInterval: 5 * time.Minute,
		lastGC:     time.Now(),
	}
}

func (s *loginLimiterStore) get(key string) *rate.Limiter {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastGC) >= s.gcInterval {
		for k, seen := range s.lastSeen {
			if now.Sub(seen) > s.maxIdle {
				delete(s.lastSeen, k)
				delete(s.limiters, k)
			}
		}
		s.lastGC = now
	}

	lim, ok := s.limiters[key]
	if !ok {
		lim = rate.NewLimiter(s.r, s.burst)
		s.limiters[key] = lim
	}
	s.lastSeen[key] = now
	return lim
}
