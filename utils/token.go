package utils

import (
	"errors"
	"fmt"
	"time"

	"mediaforge/models"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

var (
	ErrInvalidToken     = errors.New("invalid token format")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidIssuer    = errors.New("invalid issuer")
	ErrMethodMismatch   = errors.New("token not valid for this method")
)

// minSecretLen matches the HS256 key size.
const minSecretLen = 32

// VerifyConfig holds verification configuration
type VerifyConfig struct {
	SecretKey      []byte
	ExpectedIssuer string        // optional
	ExpectedMethod string        // optional
	ClockSkew      time.Duration // optional
	Now            func() time.Time
}

// SignRelayToken signs claims with HS256.
func SignRelayToken(claims *models.RelayClaims, secret []byte) (string, error) {
	if claims == nil {
		return "", errors.New("claims cannot be nil")
	}
	if len(secret) < minSecretLen {
		return "", fmt.Errorf("signing secret must be at least %d bytes", minSecretLen)
	}

	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: secret}, (&jose.SignerOptions{}).WithType("JWT"))
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}

	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("failed to create JWT: %w", err)
	}
	return token, nil
}

// VerifyRelayToken checks the signature, lifetime, issuer and method of a
// relay token and returns its claims.
func VerifyRelayToken(tokenString string, config VerifyConfig) (*models.RelayClaims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	if config.SecretKey == nil {
		return nil, errors.New("no verification key provided")
	}

	tok, err := jwt.ParseSigned(tokenString, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims := &models.RelayClaims{}
	if err := tok.Claims(config.SecretKey, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	nowFn := config.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	now := nowFn().Unix()
	clockSkew := int64(config.ClockSkew.Seconds())

	if claims.ExpiresAt > 0 && claims.ExpiresAt < (now-clockSkew) {
		return nil, ErrTokenExpired
	}
	if claims.IssuedAt > 0 && claims.IssuedAt > (now+clockSkew) {
		return nil, ErrTokenNotYetValid
	}
	if config.ExpectedIssuer != "" && claims.Issuer != config.ExpectedIssuer {
		return nil, fmt.Errorf("%w: expected '%s', got '%s'",
			ErrInvalidIssuer, config.ExpectedIssuer, claims.Issuer)
	}
	if config.ExpectedMethod != "" && claims.Method != config.ExpectedMethod {
		return nil, ErrMethodMismatch
	}
	return claims, nil
}
