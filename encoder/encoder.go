package encoder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mediaforge/failures"
	"mediaforge/models"
)

// Options describe the requested output of one transcode.
type Options struct {
	Format        string
	Quality       models.Quality
	Width, Height int
}

// Backend converts one scratch file into another.
type Backend interface {
	Transcode(ctx context.Context, input, output string, opts Options) error
}

// BackendFunc lets a plain function serve as a Backend.
type BackendFunc func(ctx context.Context, input, output string, opts Options) error

func (f BackendFunc) Transcode(ctx context.Context, input, output string, opts Options) error {
	return f(ctx, input, output, opts)
}

// DefaultTimeout bounds a transcode when the dispatcher has none configured.
const DefaultTimeout = 10 * time.Minute

// Dispatcher routes a transcode to the backend bound to its category and
// translates backend errors into job failure kinds.
type Dispatcher struct {
	Image   Backend
	Video   Backend
	Audio   Backend
	Timeout time.Duration
}

// NewDispatcher wires the default image, video and audio backends.
func NewDispatcher(timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		Image:   NewImageBackend(),
		Video:   NewVideoBackend(),
		Audio:   NewAudioBackend(),
		Timeout: timeout,
	}
}

func (d *Dispatcher) backend(cat models.Category) (Backend, error) {
	switch cat {
	case models.CategoryImage:
		return d.Image, nil
	case models.CategoryVideo:
		return d.Video, nil
	case models.CategoryAudio:
		return d.Audio, nil
	}
	return nil, failures.Validationf("no backend for category %s", cat)
}

// Transcode runs the category backend under the dispatcher timeout. The
// timeout is the only cancellation a running transcode observes.
func (d *Dispatcher) Transcode(ctx context.Context, cat models.Category, input, output string, opts Options) error {
	b, err := d.backend(cat)
	if err != nil {
		return err
	}
	if b == nil {
		return failures.ToolUnavailable(cat.String()+" backend", errors.New("backend not configured"))
	}

	timeout := d.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	err = b.Transcode(tctx, input, output, opts)
	if err == nil {
		return nil
	}
	if errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return failures.Transcode(fmt.Sprintf("%s conversion to %s timed out after %s", cat, opts.Format, timeout), err)
	}
	return translate(err)
}

func translate(err error) error {
	var fe *failures.Error
	if errors.As(err, &fe) {
		return err
	}
	var missing *MissingToolError
	if errors.As(err, &missing) {
		return failures.ToolUnavailable(missing.Tool, err)
	}
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return failures.Transcode(execErr.Diagnostic(), execErr.Err)
	}
	return failures.Transcode(err.Error(), nil)
}
