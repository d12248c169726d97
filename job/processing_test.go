package job

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaforge/encoder"
	"mediaforge/failures"
	"mediaforge/models"
	"mediaforge/success"
	taskqueue "mediaforge/taskQueue"
	writerbackends "mediaforge/writerBackends"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

// recordingStore wraps a LocalStore, counts calls and injects failures.
type recordingStore struct {
	writerbackends.ObjectStore

	mu           sync.Mutex
	fetches      int
	stored       map[string]string // object -> content type
	signErr      error
	fetchErr     error
	storeErr     error
	deletedPaths []string
}

func (s *recordingStore) Fetch(ctx context.Context, object string, w io.Writer) error {
	s.mu.Lock()
	s.fetches++
	err := s.fetchErr
	s.mu.Unlock()
	if err != nil {
		// leave a partial file behind like an interrupted download would
		w.Write([]byte("partial"))
		return err
	}
	return s.ObjectStore.Fetch(ctx, object, w)
}

func (s *recordingStore) Store(ctx context.Context, object string, r io.Reader, contentType string) error {
	s.mu.Lock()
	s.stored[object] = contentType
	err := s.storeErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.ObjectStore.Store(ctx, object, r, contentType)
}

func (s *recordingStore) Delete(ctx context.Context, object string) error {
	s.mu.Lock()
	s.deletedPaths = append(s.deletedPaths, object)
	s.mu.Unlock()
	return s.ObjectStore.Delete(ctx, object)
}

func (s *recordingStore) IssueDownloadURL(ctx context.Context, object string, expiry time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	return s.ObjectStore.IssueDownloadURL(ctx, object, expiry)
}

// copyTranscoder writes the input bytes unchanged to the output.
type copyTranscoder struct {
	err      error
	lastOpts encoder.Options
	calls    int
}

func (c *copyTranscoder) Transcode(ctx context.Context, cat models.Category, input, output string, opts encoder.Options) error {
	c.calls++
	c.lastOpts = opts
	if c.err != nil {
		os.WriteFile(output, []byte("half written"), 0o644)
		return c.err
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	return os.WriteFile(output, data, 0o644)
}

type scheduled struct {
	object string
	delay  time.Duration
}

type fakeDeletions struct {
	calls []scheduled
}

func (f *fakeDeletions) Schedule(object string, delay time.Duration) *taskqueue.Handle {
	f.calls = append(f.calls, scheduled{object, delay})
	return nil
}

type recorder struct {
	successes []success.SuccessRecord
	failed    map[string]error
}

func (r *recorder) StoreSuccess(rec success.SuccessRecord, jobData interface{}) error {
	r.successes = append(r.successes, rec)
	return nil
}

func (r *recorder) StoreFailure(jobID string, jobErr error, jobData interface{}) error {
	r.failed[jobID] = jobErr
	return nil
}

type harness struct {
	orch       *Orchestrator
	store      *recordingStore
	transcoder *copyTranscoder
	deletions  *fakeDeletions
	records    *recorder
	inbound    string
	outbound   string
}

func newHarness(t *testing.T, container string) *harness {
	t.Helper()
	root := t.TempDir()
	local, err := writerbackends.NewLocalStore(filepath.Join(root, "objects"), container,
		writerbackends.NewRelay("http://localhost:8000", testSecret))
	require.NoError(t, err)

	h := &harness{
		store:      &recordingStore{ObjectStore: local, stored: map[string]string{}},
		transcoder: &copyTranscoder{},
		deletions:  &fakeDeletions{},
		records:    &recorder{failed: map[string]error{}},
		inbound:    filepath.Join(root, "uploads"),
		outbound:   filepath.Join(root, "downloads"),
	}
	require.NoError(t, os.MkdirAll(h.inbound, 0o755))
	require.NoError(t, os.MkdirAll(h.outbound, 0o755))

	h.orch = &Orchestrator{
		Store:       h.store,
		Transcoder:  h.transcoder,
		Deletions:   h.deletions,
		InboundDir:  h.inbound,
		OutboundDir: h.outbound,
		URLExpiry:   10 * time.Minute,
		DeleteDelay: 5 * time.Minute,
		Successes:   h.records,
		Failures:    h.records,
		Tracker:     NewTracker(),
	}
	return h
}

func (h *harness) put(t *testing.T, object string, data []byte) {
	t.Helper()
	require.NoError(t, h.store.ObjectStore.Store(context.Background(), object, bytes.NewReader(data), ""))
}

func (h *harness) assertScratchEmpty(t *testing.T) {
	t.Helper()
	for _, dir := range []string{h.inbound, h.outbound} {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "scratch files left in %s", dir)
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func request(container, path, format string) models.ConversionRequest {
	return models.ConversionRequest{
		Source:       models.ObjectReference{Container: container, Path: path},
		TargetFormat: format,
	}
}

func TestProcessRoundTrip(t *testing.T) {
	h := newHarness(t, "bucket-b")
	src := pngBytes(t)
	h.put(t, "inputs/abc123.png", src)

	res, err := h.orch.Process(context.Background(), request("bucket-b", "inputs/abc123.png", "webp"))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "abc123", res.JobID)
	assert.Equal(t, "abc123_converted.webp", res.OutputFilename)
	assert.Equal(t, 10, res.ExpiresInMinutes)
	assert.Equal(t, 5, res.DeleteInMinutes)
	assert.True(t, strings.HasPrefix(res.DownloadURL, "http://localhost:8000/api/objects/"))

	var out bytes.Buffer
	require.NoError(t, h.store.Fetch(context.Background(), "outputs/abc123_converted.webp", &out))
	assert.Equal(t, src, out.Bytes(), "stage-in and stage-out must preserve bytes")
	assert.Equal(t, "image/png", h.store.stored["outputs/abc123_converted.webp"])

	assert.ErrorIs(t, h.store.ObjectStore.Fetch(context.Background(), "inputs/abc123.png", io.Discard), writerbackends.ErrNotFound)
	assert.Equal(t, []scheduled{{"outputs/abc123_converted.webp", 5 * time.Minute}}, h.deletions.calls)

	h.assertScratchEmpty(t)
	require.Len(t, h.records.successes, 1)
	assert.Equal(t, "outputs/abc123_converted.webp", h.records.successes[0].OutputObject)

	st, ok := h.orch.Tracker.Get("abc123")
	require.True(t, ok)
	assert.Equal(t, "completed", st.State)
}

func TestProcessRejectsForeignContainerBeforeIO(t *testing.T) {
	h := newHarness(t, "bucket-b")
	h.put(t, "inputs/abc123.png", pngBytes(t))

	_, err := h.orch.Process(context.Background(), request("bucket-a", "inputs/abc123.png", "webp"))
	require.Error(t, err)
	assert.True(t, failures.Is(err, failures.KindValidation))
	assert.Contains(t, err.Error(), "bucket-b")
	assert.Equal(t, 0, h.store.fetches)
	assert.Equal(t, 0, h.transcoder.calls)
	h.assertScratchEmpty(t)
}

func TestProcessRejectsUnknownExtensionBeforeFetch(t *testing.T) {
	h := newHarness(t, "bucket-b")
	h.put(t, "inputs/notes.txt", []byte("hello"))

	_, err := h.orch.Process(context.Background(), request("bucket-b", "inputs/notes.txt", "png"))
	assert.True(t, failures.Is(err, failures.KindValidation))
	assert.Equal(t, 0, h.store.fetches)
	assert.Contains(t, h.records.failed, "notes")
}

func TestProcessRejectsFormatOutsideCategory(t *testing.T) {
	h := newHarness(t, "bucket-b")

	_, err := h.orch.Process(context.Background(), request("bucket-b", "inputs/song.mp3", "mp4"))
	assert.True(t, failures.Is(err, failures.KindValidation))
	assert.Equal(t, 0, h.store.fetches)
}

func TestProcessFetchFailureIsTransfer(t *testing.T) {
	h := newHarness(t, "bucket-b")
	h.store.fetchErr = errors.New("connection reset")

	_, err := h.orch.Process(context.Background(), request("bucket-b", "inputs/clip.mp4", "webm"))
	require.Error(t, err)
	assert.True(t, failures.Is(err, failures.KindTransfer))
	assert.Equal(t, 0, h.transcoder.calls)
	h.assertScratchEmpty(t)
	assert.Empty(t, h.deletions.calls)
}

func TestProcessMissingObjectIsTransfer(t *testing.T) {
	h := newHarness(t, "bucket-b")

	_, err := h.orch.Process(context.Background(), request("bucket-b", "inputs/missing.wav", "mp3"))
	assert.True(t, failures.Is(err, failures.KindTransfer))
	assert.ErrorIs(t, err, writerbackends.ErrNotFound)
	h.assertScratchEmpty(t)
}

func TestProcessToolUnavailableKeepsKind(t *testing.T) {
	h := newHarness(t, "bucket-b")
	h.put(t, "inputs/clip.mov", []byte("video"))
	h.transcoder.err = failures.ToolUnavailable("ffmpeg", encoder.ErrToolNotFound)

	_, err := h.orch.Process(context.Background(), request("bucket-b", "inputs/clip.mov", "mp4"))
	assert.True(t, failures.Is(err, failures.KindToolUnavailable))
	h.assertScratchEmpty(t)
	assert.Empty(t, h.store.stored)
	assert.True(t, failures.Is(h.records.failed["clip"], failures.KindToolUnavailable))

	st, ok := h.orch.Tracker.Get("clip")
	require.True(t, ok)
	assert.Equal(t, "failed", st.State)
	assert.NotEmpty(t, st.Error)
}

func TestProcessPlainBackendErrorIsTranscode(t *testing.T) {
	h := newHarness(t, "bucket-b")
	h.put(t, "inputs/voice.m4a", []byte("audio"))
	h.transcoder.err = errors.New("moov atom not found")

	_, err := h.orch.Process(context.Background(), request("bucket-b", "inputs/voice.m4a", "mp3"))
	assert.True(t, failures.Is(err, failures.KindTranscode))
	assert.Contains(t, err.Error(), "moov atom not found")
	h.assertScratchEmpty(t)
}

func TestProcessStoreFailureIsTransfer(t *testing.T) {
	h := newHarness(t, "bucket-b")
	h.put(t, "inputs/abc.png", pngBytes(t))
	h.store.storeErr = errors.New("quota exceeded")

	_, err := h.orch.Process(context.Background(), request("bucket-b", "inputs/abc.png", "jpeg"))
	assert.True(t, failures.Is(err, failures.KindTransfer))
	h.assertScratchEmpty(t)
	assert.Empty(t, h.deletions.calls)
}

func TestProcessSignFailureStillSchedulesDeletion(t *testing.T) {
	h := newHarness(t, "bucket-b")
	h.put(t, "inputs/abc.png", pngBytes(t))
	h.store.signErr = errors.New("no signing identity")

	_, err := h.orch.Process(context.Background(), request("bucket-b", "inputs/abc.png", "gif"))
	assert.True(t, failures.Is(err, failures.KindTransfer))
	assert.Equal(t, []scheduled{{"outputs/abc_converted.gif", 5 * time.Minute}}, h.deletions.calls)
	h.assertScratchEmpty(t)
}

func TestProcessDimensionsOnlyForImages(t *testing.T) {
	h := newHarness(t, "bucket-b")
	h.put(t, "inputs/a.png", pngBytes(t))
	h.put(t, "inputs/b.mp4", []byte("video"))

	req := request("bucket-b", "inputs/a.png", "PNG")
	req.Width, req.Quality = 320, models.QualityHigh
	_, err := h.orch.Process(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, encoder.Options{Format: "png", Quality: models.QualityHigh, Width: 320}, h.transcoder.lastOpts)

	req = request("bucket-b", "inputs/b.mp4", "webm")
	req.Width, req.Height = 320, 240
	_, err = h.orch.Process(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, h.transcoder.lastOpts.Width)
	assert.Zero(t, h.transcoder.lastOpts.Height)
}

func TestProcessExplicitJobID(t *testing.T) {
	h := newHarness(t, "bucket-b")
	h.put(t, "inputs/holiday photo.png", pngBytes(t))

	req := request("bucket-b", "inputs/holiday photo.png", "webp")
	req.JobID = "../job"
	_, err := h.orch.Process(context.Background(), req)
	assert.True(t, failures.Is(err, failures.KindValidation))
	assert.Zero(t, h.store.fetches)

	req.JobID = "job-42"
	res, err := h.orch.Process(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "job-42_converted.webp", res.OutputFilename)
}

func TestProcessDerivesJobIDFromAnyStem(t *testing.T) {
	for _, tt := range []struct {
		path, output string
	}{
		{"uploads/photo.v2.png", "photo.v2_converted.webp"},
		{"uploads/my photo.png", "my photo_converted.webp"},
		{"uploads/写真.png", "写真_converted.webp"},
	} {
		t.Run(tt.path, func(t *testing.T) {
			h := newHarness(t, "bucket-a")
			h.put(t, tt.path, pngBytes(t))

			res, err := h.orch.Process(context.Background(), request("bucket-a", tt.path, "webp"))
			require.NoError(t, err)
			assert.Equal(t, tt.output, res.OutputFilename)

			var out bytes.Buffer
			require.NoError(t, h.store.Fetch(context.Background(), "outputs/"+tt.output, &out))
			assert.NotZero(t, out.Len())
			h.assertScratchEmpty(t)
		})
	}
}
