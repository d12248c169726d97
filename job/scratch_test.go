package job

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScratchReleaseRemovesAll(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "a_converted.webp")
	require.NoError(t, os.WriteFile(a, []byte("x"), 0o644))

	s := NewScratch(a)
	s.Add(b) // never created
	s.Release()
	s.Release()

	assert.NoFileExists(t, a)
}

func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker()
	now := time.Unix(1_700_000_000, 0)
	tr.now = func() time.Time { return now }

	tr.Begin("abc")
	tr.Set("abc", JobStateTranscoding)
	st, ok := tr.Get("abc")
	require.True(t, ok)
	assert.Equal(t, "transcoding", st.State)
	assert.Len(t, tr.Active(), 1)

	tr.Finish("abc", nil)
	st, _ = tr.Get("abc")
	assert.Equal(t, "completed", st.State)
	assert.Empty(t, tr.Active())

	tr.Set("unknown", JobStateFailed)
	_, ok = tr.Get("unknown")
	assert.False(t, ok)

	now = now.Add(tr.Linger + time.Second)
	tr.Begin("next")
	_, ok = tr.Get("abc")
	assert.False(t, ok, "finished jobs are dropped after lingering")
}
