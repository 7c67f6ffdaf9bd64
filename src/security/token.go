package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	audienceTerminal = "terminal"
	audienceAPI      = "api"
)

// SessionClaims bind an execution-target session to one execution request.
type SessionClaims struct {
	RequestID string `json:"rid"`
	Platform  string `json:"plt"`
	jwt.RegisteredClaims
}

// OperatorClaims authorize calls to the control API.
type OperatorClaims struct {
	Operator string `json:"op"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration, issuer string) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl, issuer: issuer, now: time.Now}
}

// NewSessionIssuer uses SESSION_TOKEN_SECRET, or a machine-derived secret when unset.
func NewSessionIssuer(cfg Config) (*TokenIssuer, error) {
	secret, err := secretOrDerived(cfg.SessionTokenSecret, "session-token")
	if err != nil {
		return nil, err
	}
	return NewTokenIssuer(secret, cfg.SessionTokenTTL, cfg.Issuer), nil
}

// NewAPIIssuer uses API_TOKEN_SECRET, or a machine-derived secret when unset.
func NewAPIIssuer(cfg Config) (*TokenIssuer, error) {
	secret, err := secretOrDerived(cfg.APITokenSecret, "api-token")
	if err != nil {
		return nil, err
	}
	return NewTokenIssuer(secret, cfg.APITokenTTL, cfg.Issuer), nil
}

func secretOrDerived(secret, purpose string) ([]byte, error) {
	if secret != "" {
		return []byte(secret), nil
	}
	return DeriveMachineKey(purpose)
}

func (i *TokenIssuer) registered(audience, subject string) jwt.RegisteredClaims {
	now := i.now()
	return jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
}

// IssueSession signs a short-lived token for the terminal session of requestID.
func (i *TokenIssuer) IssueSession(requestID, platform string) (string, error) {
	claims := SessionClaims{
		RequestID:        requestID,
		Platform:         platform,
		RegisteredClaims: i.registered(audienceTerminal, requestID),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

func (i *TokenIssuer) VerifySession(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := i.parse(token, claims, audienceTerminal); err != nil {
		return nil, err
	}
	return claims, nil
}

// IssueOperator signs a control API token for operator.
func (i *TokenIssuer) IssueOperator(operator string) (string, error) {
	claims := OperatorClaims{
		Operator:         operator,
		RegisteredClaims: i.registered(audienceAPI, operator),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

func (i *TokenIssuer) VerifyOperator(token string) (*OperatorClaims, error) {
	claims := &OperatorClaims{}
	if err := i.parse(token, claims, audienceAPI); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *TokenIssuer) parse(token string, claims jwt.Claims, audience string) error {
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}
