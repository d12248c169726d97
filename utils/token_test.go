package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaforge/models"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newClaims(method string, ttl time.Duration) *models.RelayClaims {
	now := time.Now()
	return &models.RelayClaims{
		Issuer:    "mediaforge",
		Subject:   "outputs/abc_converted.png",
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
		Method:    method,
	}
}

func TestRelayTokenRoundTrip(t *testing.T) {
	token, err := SignRelayToken(newClaims("GET", time.Minute), testSecret)
	require.NoError(t, err)

	claims, err := VerifyRelayToken(token, VerifyConfig{
		SecretKey:      testSecret,
		ExpectedIssuer: "mediaforge",
		ExpectedMethod: "GET",
	})
	require.NoError(t, err)
	assert.Equal(t, "outputs/abc_converted.png", claims.Subject)
}

func TestRelayTokenRejections(t *testing.T) {
	valid, err := SignRelayToken(newClaims("PUT", time.Minute), testSecret)
	require.NoError(t, err)
	expired, err := SignRelayToken(newClaims("GET", -time.Hour), testSecret)
	require.NoError(t, err)

	parts := strings.Split(valid, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name   string
		token  string
		config VerifyConfig
		want   error
	}{
		{"empty", "", VerifyConfig{SecretKey: testSecret}, ErrInvalidToken},
		{"wrong key", valid, VerifyConfig{SecretKey: []byte("ffffffffffffffffffffffffffffffff")}, ErrInvalidSignature},
		{"tampered", tampered, VerifyConfig{SecretKey: testSecret}, nil},
		{"expired", expired, VerifyConfig{SecretKey: testSecret}, ErrTokenExpired},
		{"method", valid, VerifyConfig{SecretKey: testSecret, ExpectedMethod: "GET"}, ErrMethodMismatch},
		{"issuer", valid, VerifyConfig{SecretKey: testSecret, ExpectedIssuer: "other"}, ErrInvalidIssuer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := VerifyRelayToken(tt.token, tt.config)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestSignRejectsShortSecret(t *testing.T) {
	_, err := SignRelayToken(newClaims("GET", time.Minute), []byte("short"))
	assert.Error(t, err)
}

func TestGenerateRandomHex(t *testing.T) {
	a, err := GenerateRandomHex(16)
	require.NoError(t, err)
	b, err := GenerateRandomHex(16)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
