package encoder

import (
	"context"
	"errors"
	"image/color"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaforge/failures"
	"mediaforge/models"
)

func TestClassifyIsTotalOverTable(t *testing.T) {
	want := map[models.Category][]string{
		models.CategoryImage: {"jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp", "svg"},
		models.CategoryVideo: {"mp4", "avi", "mov", "mkv", "wmv", "flv", "webm"},
		models.CategoryAudio: {"mp3", "wav", "flac", "aac", "ogg", "m4a"},
	}
	for cat, exts := range want {
		for _, ext := range exts {
			got, err := Classify("." + ext)
			require.NoError(t, err, ext)
			assert.Equal(t, cat, got, ext)

			again, err := Classify(ext)
			require.NoError(t, err)
			assert.Equal(t, got, again, "classification must be deterministic")
		}
	}
	assert.Len(t, extensionTable, 21)
}

func TestClassifyRejectsUnknown(t *testing.T) {
	for _, ext := range []string{"", ".txt", ".pdf", ".heic", ".tar.gz", "exe"} {
		_, err := Classify(ext)
		require.Error(t, err, ext)
		assert.True(t, failures.Is(err, failures.KindValidation), ext)
	}
}

func TestClassifyIgnoresCase(t *testing.T) {
	cat, err := Classify(".MKV")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryVideo, cat)
}

func TestOutputFormats(t *testing.T) {
	assert.Equal(t, []string{"jpeg", "png", "webp", "gif", "bmp", "tiff"}, OutputFormats(models.CategoryImage))
	assert.True(t, SupportsOutput(models.CategoryVideo, "gif"))
	assert.False(t, SupportsOutput(models.CategoryAudio, "mp4"))

	formats := OutputFormats(models.CategoryAudio)
	formats[0] = "changed"
	assert.Equal(t, "mp3", OutputFormats(models.CategoryAudio)[0], "callers must not mutate the table")
}

func TestDispatcherTranslatesFailureKinds(t *testing.T) {
	missing := BackendFunc(func(ctx context.Context, in, out string, o Options) error {
		return &MissingToolError{Tool: "ffmpeg"}
	})
	corrupt := BackendFunc(func(ctx context.Context, in, out string, o Options) error {
		return &ExecError{Tool: "ffmpeg", Stderr: "frame=0\ninput.mp4: Invalid data found when processing input", Err: errors.New("exit status 1")}
	})
	d := &Dispatcher{Image: missing, Video: corrupt, Audio: missing, Timeout: time.Second}

	err := d.Transcode(context.Background(), models.CategoryImage, "in", "out", Options{Format: "png"})
	assert.True(t, failures.Is(err, failures.KindToolUnavailable))
	assert.ErrorIs(t, err, ErrToolNotFound)

	err = d.Transcode(context.Background(), models.CategoryVideo, "in", "out", Options{Format: "mp4"})
	assert.True(t, failures.Is(err, failures.KindTranscode))
	assert.Contains(t, err.Error(), "Invalid data found when processing input")

	assert.NotEqual(t, failures.KindOf(d.Transcode(context.Background(), models.CategoryAudio, "in", "out", Options{})),
		failures.KindOf(d.Transcode(context.Background(), models.CategoryVideo, "in", "out", Options{})))
}

func TestDispatcherTimeout(t *testing.T) {
	slow := BackendFunc(func(ctx context.Context, in, out string, o Options) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d := &Dispatcher{Video: slow, Timeout: 20 * time.Millisecond}

	err := d.Transcode(context.Background(), models.CategoryVideo, "in", "out", Options{Format: "webm"})
	require.Error(t, err)
	assert.True(t, failures.Is(err, failures.KindTranscode))
	assert.Contains(t, err.Error(), "timed out")
}

func TestDispatcherIgnoresCallerCancellation(t *testing.T) {
	var sawCancel bool
	b := BackendFunc(func(ctx context.Context, in, out string, o Options) error {
		sawCancel = ctx.Err() != nil
		return nil
	})
	d := &Dispatcher{Audio: b, Timeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Transcode(ctx, models.CategoryAudio, "in", "out", Options{Format: "mp3"}))
	assert.False(t, sawCancel)
}

func TestDispatcherUnknownCategory(t *testing.T) {
	d := NewDispatcher(time.Second)
	err := d.Transcode(context.Background(), models.Category(42), "in", "out", Options{})
	assert.True(t, failures.Is(err, failures.KindValidation))
}

func TestRunToolMissingBinary(t *testing.T) {
	lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	t.Cleanup(func() { lookPath = exec.LookPath })

	err := runTool(context.Background(), "ffmpeg", "-version")
	var missing *MissingToolError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "ffmpeg", missing.Tool)

	assert.Empty(t, CheckTools())
}

func TestSVGWithoutMagickIsToolUnavailable(t *testing.T) {
	lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	t.Cleanup(func() { lookPath = exec.LookPath })

	dir := t.TempDir()
	in := filepath.Join(dir, "logo.svg")
	require.NoError(t, os.WriteFile(in, []byte(`<svg xmlns="http://www.w3.org/2000/svg"/>`), 0o644))

	d := NewDispatcher(time.Second)
	err := d.Transcode(context.Background(), models.CategoryImage, in, filepath.Join(dir, "logo_converted.png"), Options{Format: "png"})
	assert.True(t, failures.Is(err, failures.KindToolUnavailable))
}

func TestVideoArgs(t *testing.T) {
	args, err := videoArgs("in.mov", "out.mkv", Options{Format: "mkv", Quality: models.QualityHigh})
	require.NoError(t, err)
	assert.Subset(t, args, []string{"-c:v", "libx264", "-crf", "18", "-preset", "slow", "-f", "matroska"})
	assert.Equal(t, "out.mkv", args[len(args)-1])

	args, err = videoArgs("in.mp4", "out.webm", Options{Format: "webm", Quality: models.QualityLow})
	require.NoError(t, err)
	assert.Subset(t, args, []string{"libvpx", "500k", "libvorbis", "96k", "webm"})

	_, err = videoArgs("in.mp4", "out.flv", Options{Format: "flv"})
	assert.Error(t, err)
}

func TestAudioArgs(t *testing.T) {
	tests := []struct {
		format string
		q      models.Quality
		want   []string
	}{
		{"mp3", models.QualityHigh, []string{"libmp3lame", "320k", "-q:a", "2"}},
		{"aac", models.QualityMedium, []string{"aac", "192k", "adts"}},
		{"ogg", models.QualityLow, []string{"libvorbis", "128k"}},
		{"flac", "", []string{"flac", "-compression_level", "8"}},
		{"wav", "", []string{"pcm_s16le", "wav"}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			args, err := audioArgs("in.m4a", "out."+tt.format, Options{Format: tt.format, Quality: tt.q})
			require.NoError(t, err)
			assert.Contains(t, args, "-vn")
			assert.Subset(t, args, tt.want)
		})
	}
}

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 30, B: 30, A: 128})
	require.NoError(t, imaging.Save(img, path))
}

func TestImageBackendResizeKeepsAspect(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "abc.png")
	out := filepath.Join(dir, "abc_converted.jpeg")
	writeTestPNG(t, in, 200, 100)

	b := NewImageBackend()
	require.NoError(t, b.Transcode(context.Background(), in, out, Options{Format: "jpeg", Width: 50, Quality: models.QualityHigh}))

	img, err := imaging.Open(out)
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
	assert.Equal(t, 25, img.Bounds().Dy())
}

func TestImageBackendFormats(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "src.png")
	writeTestPNG(t, in, 32, 32)

	for _, format := range []string{"png", "gif", "bmp", "tiff", "webp"} {
		t.Run(format, func(t *testing.T) {
			out := filepath.Join(dir, "src_converted."+format)
			require.NoError(t, NewImageBackend().Transcode(context.Background(), in, out, Options{Format: format}))
			info, err := os.Stat(out)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		})
	}
}

func TestImageBackendCorruptInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(in, []byte("not a png"), 0o644))

	d := &Dispatcher{Image: NewImageBackend(), Timeout: time.Second}
	err := d.Transcode(context.Background(), models.CategoryImage, in, filepath.Join(dir, "broken_converted.png"), Options{Format: "png"})
	assert.True(t, failures.Is(err, failures.KindTranscode))
}
