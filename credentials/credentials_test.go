package credentials

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelaySecretIsPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_credentials.db")

	s, err := OpenDB(path)
	require.NoError(t, err)
	first, err := s.RelaySecret("")
	require.NoError(t, err)
	assert.Len(t, first, 32)
	require.NoError(t, s.Close())

	s, err = OpenDB(path)
	require.NoError(t, err)
	defer s.Close()
	second, err := s.RelaySecret("")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestConfiguredRelaySecretWins(t *testing.T) {
	s, err := OpenDB(filepath.Join(t.TempDir(), "test_credentials.db"))
	require.NoError(t, err)
	defer s.Close()

	secret, err := s.RelaySecret("configured-secret-configured-secret")
	require.NoError(t, err)
	assert.Equal(t, []byte("configured-secret-configured-secret"), secret)
}
