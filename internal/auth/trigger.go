package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL = 12 * time.Hour

	tokenIssuer   = "loopband-admin"
	tokenAudience = "loopband-api"
)

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingSubject       = errors.New("subject must be provided")
	errMissingTriggerSecret = errors.New("trigger secret must be provided")
)

// TriggerAuthorizerConfig configures audit trigger authorization.
type TriggerAuthorizerConfig struct {
	SigningSecret []byte
	TriggerSecret string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TriggerAuthorizer authorizes audit triggers two ways: HS256 admin bearer
// tokens for interactive use, and a shared secret for the scheduler.
type TriggerAuthorizer struct {
	signingSecret []byte
	triggerSecret []byte
	tokenTTL      time.Duration
	clock         func() time.Time
}

// NewTriggerAuthorizer constructs an authorizer with sane defaults.
func NewTriggerAuthorizer(cfg TriggerAuthorizerConfig) (*TriggerAuthorizer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	if cfg.TriggerSecret == "" {
		return nil, errMissingTriggerSecret
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TriggerAuthorizer{
		signingSecret: cfg.SigningSecret,
		triggerSecret: []byte(cfg.TriggerSecret),
		tokenTTL:      ttl,
		clock:         clock,
	}, nil
}

// IssueAdminToken produces a signed JWT and its expiry (seconds) for an
// administrator subject.
func (a *TriggerAuthorizer) IssueAdminToken(_ context.Context, subject string) (string, int64, error) {
	if subject == "" {
		return "", 0, errMissingSubject
	}

	now := a.clock().UTC()
	expiresAt := now.Add(a.tokenTTL).UTC()

	registered := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    tokenIssuer,
		Audience:  []string{tokenAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, registered)
	signed, err := token.SignedString(a.signingSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// ValidateAdminToken ensures the bearer token is well formed and returns the
// administrator subject.
func (a *TriggerAuthorizer) ValidateAdminToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return a.signingSecret, nil
		},
		jwt.WithAudience(tokenAudience),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(a.clock),
	)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errMissingSubject
	}
	return claims.Subject, nil
}

// MatchesTriggerSecret compares a presented scheduler secret in constant time.
func (a *TriggerAuthorizer) MatchesTriggerSecret(presented string) bool {
	return subtle.ConstantTimeCompare(a.triggerSecret, []byte(presented)) == 1
}
