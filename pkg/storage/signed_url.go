package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenMalformed = errors.New("invalid token format")
	ErrTokenSignature = errors.New("invalid token signature")
	ErrTokenExpired   = errors.New("token expired")
)

// SignedURLSigner creates and validates signed certificate download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a token binding the owner id (an enrollment) to a stored file name.
func (s *SignedURLSigner) Generate(ownerID, name string) (string, time.Time, error) {
	if ownerID == "" || name == "" {
		return "", time.Time{}, fmt.Errorf("owner id and file name required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedName := base64.RawURLEncoding.EncodeToString([]byte(name))
	token := strings.Join([]string{ownerID, ts, encodedName, s.sign(ownerID, ts, encodedName)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded owner id and file name.
func (s *SignedURLSigner) Parse(token string) (ownerID, name string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	ownerID, ts, encodedName, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(ownerID, ts, encodedName)), []byte(signature)) {
		return "", "", time.Time{}, ErrTokenSignature
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	rawName, err := base64.RawURLEncoding.DecodeString(encodedName)
	if err != nil {
		return "", "", time.Time{}, ErrTokenMalformed
	}
	expiresAt = time.Unix(expUnix, 0)
	if !s.now().Before(expiresAt) {
		return "", "", time.Time{}, ErrTokenExpired
	}
	return ownerID, string(rawName), expiresAt, nil
}

func (s *SignedURLSigner) sign(ownerID, ts, encodedName string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(ownerID + "|" + ts + "|" + encodedName))
	return hex.EncodeToString(mac.Sum(nil))
}
