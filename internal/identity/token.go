package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Issuer is the iss claim of tokens minted by IssueToken.
const Issuer = "create-post-pipeline"

// Claims are the JWT claims understood by TokenAccessor. The subject is
// the user id.
type Claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

type tokenKey struct{}

// WithToken attaches a bearer token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token attached with WithToken.
func TokenFromContext(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// TokenAccessor resolves the current user from an HS256 bearer token. The
// token comes from the context (WithToken) or, failing that, the fixed
// token given at construction.
type TokenAccessor struct {
	key   []byte
	token string
	now   func() time.Time
}

// NewTokenAccessor creates a TokenAccessor verifying with key.
func NewTokenAccessor(key []byte, token string) *TokenAccessor {
	return &TokenAccessor{key: key, token: token, now: time.Now}
}

// CurrentUser returns nil, nil when no token is present and a *TokenError
// when a token is present but rejected.
func (a *TokenAccessor) CurrentUser(ctx context.Context) (*User, error) {
	raw := TokenFromContext(ctx)
	if raw == "" {
		raw = a.token
	}
	if raw == "" {
		log.Debug().Msg("No bearer token present")
		return nil, nil
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return a.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		tokErr := classifyTokenError(err)
		log.Warn().Err(err).Str("type", tokErr.Type.String()).Msg("Bearer token rejected")
		return nil, tokErr
	}

	if err := ValidateUserID(claims.Subject); err != nil {
		return nil, &TokenError{Type: ErrTypeClaims, Message: "token subject is not a valid user id", Err: err}
	}
	return &User{ID: claims.Subject, DisplayName: claims.Name}, nil
}

func classifyTokenError(err error) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return &TokenError{Type: ErrTypeExpired, Message: "token expired or not yet valid", Err: err}
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return &TokenError{Type: ErrTypeSignature, Message: "token signature invalid", Err: err}
	case errors.Is(err, jwt.ErrTokenMalformed):
		return &TokenError{Type: ErrTypeMalformed, Message: "token malformed", Err: err}
	default:
		return &TokenError{Type: ErrTypeClaims, Message: "token claims invalid", Err: err}
	}
}

// IssueToken mints an HS256 token for user valid for ttl.
func IssueToken(key []byte, user User, ttl time.Duration) (string, error) {
	if err := ValidateUserID(user.ID); err != nil {
		return "", err
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name: user.DisplayName,
	})
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
