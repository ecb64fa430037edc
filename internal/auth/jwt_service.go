package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default validity periods for the token families issued by the service.
const (
	DefaultSessionTokenTTL     = 1 * time.Hour
	DefaultAPITokenTTL         = 5 * time.Minute
	DefaultUnsubscribeTokenTTL = 7 * 24 * time.Hour
)

// Token purposes embedded in claims so one family cannot stand in for another.
const (
	purposeSession     = "session"
	purposeAPI         = "api"
	purposeUnsubscribe = "unsubscribe"
)

// JWTConfig bundles the configuration required to build a JWTService.
type JWTConfig struct {
	Secret              string
	Issuer              string
	SessionTokenTTL     time.Duration
	APITokenTTL         time.Duration
	UnsubscribeTokenTTL time.Duration
	Clock               func() time.Time
}

// Claims represents the custom claims embedded in issued JWTs.
type Claims struct {
	UserID  string `json:"uid,omitempty"`
	TalkID  string `json:"talk,omitempty"`
	Email   string `json:"email,omitempty"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// JWTService issues and validates the signed tokens used for login sessions,
// short-lived API access, and comment unsubscribe links.
type JWTService struct {
	secret         []byte
	issuer         string
	sessionTTL     time.Duration
	apiTTL         time.Duration
	unsubscribeTTL time.Duration
	now            func() time.Time
}

// NewJWTService constructs a JWTService instance when provided with the required configuration.
func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: secret must be provided")
	}

	svc := &JWTService{
		secret:         []byte(cfg.Secret),
		issuer:         cfg.Issuer,
		sessionTTL:     cfg.SessionTokenTTL,
		apiTTL:         cfg.APITokenTTL,
		unsubscribeTTL: cfg.UnsubscribeTokenTTL,
		now:            time.Now,
	}

	if svc.sessionTTL <= 0 {
		svc.sessionTTL = DefaultSessionTokenTTL
	}
	if svc.apiTTL <= 0 {
		svc.apiTTL = DefaultAPITokenTTL
	}
	if svc.unsubscribeTTL <= 0 {
		svc.unsubscribeTTL = DefaultUnsubscribeTokenTTL
	}
	if cfg.Clock != nil {
		svc.now = cfg.Clock
	}

	return svc, nil
}

// APITokenTTL reports the configured lifetime for API tokens.
func (s *JWTService) APITokenTTL() time.Duration {
	return s.apiTTL
}

// GenerateSessionToken issues the bearer token returned on login.
func (s *JWTService) GenerateSessionToken(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("jwt: user id is required")
	}
	return s.sign(Claims{UserID: userID, Purpose: purposeSession}, userID, s.sessionTTL)
}

// GenerateAPIToken issues a short-lived token for programmatic API access.
func (s *JWTService) GenerateAPIToken(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("jwt: user id is required")
	}
	return s.sign(Claims{UserID: userID, Purpose: purposeAPI}, userID, s.apiTTL)
}

// GenerateUnsubscribeToken issues a long-lived token that lets a commenter
// stop notifications for one talk without authenticating.
func (s *JWTService) GenerateUnsubscribeToken(talkID, email string) (string, error) {
	if talkID == "" {
		return "", errors.New("jwt: talk id is required")
	}
	if email == "" {
		return "", errors.New("jwt: email is required")
	}
	return s.sign(Claims{TalkID: talkID, Email: email, Purpose: purposeUnsubscribe}, "", s.unsubscribeTTL)
}

// ValidateSessionToken parses a login token and returns its claims.
func (s *JWTService) ValidateSessionToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, purposeSession)
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errors.New("jwt: missing user id claim")
	}
	return claims, nil
}

// ValidateAPIToken parses an API access token and returns its claims.
func (s *JWTService) ValidateAPIToken(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString, purposeAPI)
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errors.New("jwt: missing user id claim")
	}
	return claims, nil
}

// ValidateUnsubscribeToken parses an unsubscribe token, returning the talk id
// and email it was issued for.
func (s *JWTService) ValidateUnsubscribeToken(tokenString string) (talkID, email string, err error) {
	claims, err := s.parse(tokenString, purposeUnsubscribe)
	if err != nil {
		return "", "", err
	}
	if claims.TalkID == "" || claims.Email == "" {
		return "", "", errors.New("jwt: missing talk or email claim")
	}
	return claims.TalkID, claims.Email, nil
}

func (s *JWTService) sign(claims Claims, subject string, ttl time.Duration) (string, error) {
	now := s.now()

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, nil
}

func (s *JWTService) parse(tokenString, purpose string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, errors.New("jwt: invalid issuer")
	}

	if claims.Purpose != purpose {
		return nil, fmt.Errorf("jwt: token purpose %q not valid here", claims.Purpose)
	}

	return &claims, nil
}
