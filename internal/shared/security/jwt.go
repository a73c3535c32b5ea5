package security

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JoinSecretEnv names the variable holding the HMAC key for join tokens.
const JoinSecretEnv = "CHRONICLE_JOIN_SECRET"

var (
	ErrJoinSecretMissing = errors.New(JoinSecretEnv + " is not set")
	ErrSessionMismatch   = errors.New("join token issued for another session")
)

// JoinClaims admits one peer into one hosted session.
type JoinClaims struct {
	PeerID    string `json:"pid"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func joinSecret() ([]byte, error) {
	secret := os.Getenv(JoinSecretEnv)
	if secret == "" {
		return nil, ErrJoinSecretMissing
	}
	return []byte(secret), nil
}

// AwardJoin issues a join token valid for ttl (12h when ttl <= 0).
func AwardJoin(peerID, sessionID string, ttl time.Duration) (string, error) {
	key, err := joinSecret()
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	now := time.Now()
	claims := &JoinClaims{
		PeerID:    peerID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   peerID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// ParseJoin verifies the token signature and expiry and that it was issued
// for sessionID.
func ParseJoin(tokenStr, sessionID string) (*JoinClaims, error) {
	key, err := joinSecret()
	if err != nil {
		return nil, err
	}
	claims := &JoinClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	if token == nil || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.SessionID != sessionID {
		return nil, ErrSessionMismatch
	}
	return claims, nil
}
