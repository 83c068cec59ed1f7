package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims carries the identity provider's subject and email. The subject is
// the only identity the server trusts.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks a bearer token and returns its claims
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// Option tightens verification beyond signature and expiry
type Option func(*options)

type options struct {
	issuer   string
	audience string
	methods  []string
}

func WithIssuer(iss string) Option {
	return func(o *options) { o.issuer = iss }
}

func WithAudience(aud string) Option {
	return func(o *options) { o.audience = aud }
}

func (o *options) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{jwt.WithValidMethods(o.methods), jwt.WithExpirationRequired()}
	if o.issuer != "" {
		opts = append(opts, jwt.WithIssuer(o.issuer))
	}
	if o.audience != "" {
		opts = append(opts, jwt.WithAudience(o.audience))
	}
	return opts
}

// GenerateToken signs an HS256 token for subject. Used by tests and local
// development where no identity provider is running.
func GenerateToken(subject, email, secret string, expireHours int) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies an HS256 token signed with secret
func ParseToken(tokenString, secret string) (*Claims, error) {
	return NewHMACVerifier(secret).Verify(context.Background(), tokenString)
}

// HMACVerifier verifies tokens signed with a shared secret
type HMACVerifier struct {
	secret []byte
	opts   options
}

func NewHMACVerifier(secret string, opts ...Option) *HMACVerifier {
	v := &HMACVerifier{
		secret: []byte(secret),
		opts:   options{methods: []string{jwt.SigningMethodHS256.Alg()}},
	}
	for _, opt := range opts {
		opt(&v.opts)
	}
	return v
}

func (v *HMACVerifier) Verify(_ context.Context, tokenString string) (*Claims, error) {
	return parse(tokenString, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.opts)
}

func parse(tokenString string, keyFunc jwt.Keyfunc, opts options) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, keyFunc, opts.parserOptions()...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
