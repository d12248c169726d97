package writerbackends

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaforge/config"
	"mediaforge/utils"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestLocal(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir(), "bucket-a", NewRelay("http://localhost:8000/", testSecret))
	require.NoError(t, err)
	return s
}

func TestLocalStoreRoundTrip(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()
	payload := bytes.Repeat([]byte{0x00, 0xff, 0x10}, 4096)

	require.NoError(t, s.Store(ctx, "outputs/abc_converted.webp", bytes.NewReader(payload), "image/webp"))

	var buf bytes.Buffer
	require.NoError(t, s.Fetch(ctx, "outputs/abc_converted.webp", &buf))
	assert.Equal(t, payload, buf.Bytes())

	require.NoError(t, s.Delete(ctx, "outputs/abc_converted.webp"))
	assert.ErrorIs(t, s.Delete(ctx, "outputs/abc_converted.webp"), ErrNotFound)
	assert.ErrorIs(t, s.Fetch(ctx, "outputs/abc_converted.webp", &buf), ErrNotFound)
}

func TestLocalStoreRejectsEscape(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	for _, name := range []string{"../other/x.png", "", "inputs/../../x"} {
		assert.Error(t, s.Store(ctx, name, strings.NewReader("x"), ""), name)
	}
}

func TestLocalStoreIssuesRelayURLs(t *testing.T) {
	s := newTestLocal(t)

	u, err := s.IssueUploadURL(context.Background(), "inputs/abc.png", "image/png", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u, "http://localhost:8000/api/objects/"))

	token := strings.TrimPrefix(u, "http://localhost:8000/api/objects/")
	claims, err := s.relay.Verify(token, http.MethodPut)
	require.NoError(t, err)
	assert.Equal(t, "inputs/abc.png", claims.Subject)
	assert.Equal(t, "image/png", claims.ContentType)

	_, err = s.relay.Verify(token, http.MethodGet)
	assert.ErrorIs(t, err, utils.ErrMethodMismatch)
}

func TestRelayTokenExpires(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := NewRelay("http://x", testSecret)
	r.Now = func() time.Time { return now }

	u, err := r.URL("outputs/a.mp3", http.MethodGet, "", time.Minute)
	require.NoError(t, err)
	token := strings.TrimPrefix(u, "http://x/api/objects/")

	now = now.Add(2 * time.Minute)
	_, err = r.Verify(token, http.MethodGet)
	assert.ErrorIs(t, err, utils.ErrTokenExpired)
}

func TestOpenRequiresBucket(t *testing.T) {
	cfg := config.Default()
	cfg.Bucket = ""
	_, err := Open(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, config.ErrBucketNotSet)
}

func TestOpenLocalBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Bucket = "bucket-a"
	cfg.Backend = config.BackendLocal
	cfg.Local.Root = t.TempDir()

	_, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)

	store, err := Open(context.Background(), cfg, NewRelay("http://x", testSecret))
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "bucket-a", store.Container())
	assert.Equal(t, "file", store.Scheme())
}
