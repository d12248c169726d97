package job

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"mediaforge/encoder"
	"mediaforge/failures"
	"mediaforge/logger"
	"mediaforge/metrics"
	"mediaforge/models"
	"mediaforge/success"
	taskqueue "mediaforge/taskQueue"
	writerbackends "mediaforge/writerBackends"
)

// Transcoder converts a local input file into the requested format.
type Transcoder interface {
	Transcode(ctx context.Context, cat models.Category, input, output string, opts encoder.Options) error
}

// DeletionScheduler removes a remote object after a delay.
type DeletionScheduler interface {
	Schedule(object string, delay time.Duration) *taskqueue.Handle
}

type SuccessRecorder interface {
	StoreSuccess(record success.SuccessRecord, jobData interface{}) error
}

type FailureRecorder interface {
	StoreFailure(jobID string, jobErr error, jobData interface{}) error
}

// Orchestrator runs conversion jobs against one remote container. It holds
// no per-job state; concurrent jobs are isolated by their job ids.
type Orchestrator struct {
	Store      writerbackends.ObjectStore
	Transcoder Transcoder
	Deletions  DeletionScheduler

	InboundDir  string
	OutboundDir string
	URLExpiry   time.Duration
	DeleteDelay time.Duration

	// Optional.
	Successes SuccessRecorder
	Failures  FailureRecorder
	Tracker   *Tracker
	Metrics   *metrics.Metrics
}

// resolved is a validated request.
type resolved struct {
	jobID          string
	ext            string
	category       models.Category
	format         string
	outputFilename string
	outputObject   string
}

// Process converts req.Source into req.TargetFormat and returns a signed
// download URL for the result. Every error returned carries a failures.Kind
// of Validation, ToolUnavailable, Transcode or Transfer. Local scratch files
// are gone by the time Process returns, whatever the outcome.
func (o *Orchestrator) Process(ctx context.Context, req models.ConversionRequest) (models.JobResult, error) {
	start := time.Now()

	r, err := o.resolve(req)
	if err != nil {
		logger.Warnf("Rejected conversion request for %s: %v", req.Source.URI(o.Store.Scheme()), err)
		if r.jobID != "" {
			o.recordFailure(r.jobID, err, req)
		}
		o.Metrics.ObserveJob("unknown", "rejected", time.Since(start).Seconds())
		return models.JobResult{}, err
	}

	if o.Tracker != nil {
		o.Tracker.Begin(r.jobID)
	}
	log := logger.Z().With(zap.String("job_id", r.jobID), zap.String("category", r.category.String()))
	log.Info("Processing conversion job",
		zap.String("source", req.Source.URI(o.Store.Scheme())),
		zap.String("target_format", r.format))

	result, err := o.run(ctx, req, r)

	if o.Tracker != nil {
		o.Tracker.Finish(r.jobID, err)
	}
	elapsed := time.Since(start)
	if err != nil {
		log.Error("Conversion job failed", zap.Error(err), zap.String("kind", failures.KindOf(err).String()))
		o.recordFailure(r.jobID, err, req)
		o.Metrics.ObserveJob(r.category.String(), "failed", elapsed.Seconds())
		return models.JobResult{}, err
	}

	log.Info("Conversion job completed", zap.String("output", r.outputObject), zap.Duration("elapsed", elapsed))
	o.recordSuccess(r, req)
	o.Metrics.ObserveJob(r.category.String(), "success", elapsed.Seconds())
	return result, nil
}

// resolve validates req without touching the network. The job id is filled
// in whenever it could be derived, even on error.
func (o *Orchestrator) resolve(req models.ConversionRequest) (resolved, error) {
	var r resolved
	if req.Source.Container != o.Store.Container() {
		return r, failures.Validationf("object %s is not in the configured container %q",
			req.Source.URI(o.Store.Scheme()), o.Store.Container())
	}
	if req.Source.Path == "" {
		return r, failures.Validationf("object path is empty")
	}

	jobID, err := req.ResolveJobID()
	if err != nil {
		return r, err
	}
	r.jobID = jobID

	r.ext = req.Source.Ext()
	r.category, err = encoder.Classify(r.ext)
	if err != nil {
		return r, err
	}

	r.format = strings.ToLower(req.TargetFormat)
	if !encoder.SupportsOutput(r.category, r.format) {
		return r, failures.Validationf("%s files cannot be converted to %q (supported: %s)",
			r.category, req.TargetFormat, strings.Join(encoder.OutputFormats(r.category), ", "))
	}
	if req.Width < 0 || req.Height < 0 {
		return r, failures.Validationf("width and height must be positive")
	}

	r.outputFilename = models.OutputFilename(r.jobID, r.format)
	r.outputObject = models.OutputObjectName(r.outputFilename)
	return r, nil
}

func (o *Orchestrator) run(ctx context.Context, req models.ConversionRequest, r resolved) (models.JobResult, error) {
	scratch := NewScratch()
	defer scratch.Release()

	inputPath := filepath.Join(o.InboundDir, r.jobID+r.ext)
	outputPath := filepath.Join(o.OutboundDir, r.outputFilename)
	scratch.Add(inputPath)
	scratch.Add(outputPath)

	o.setState(r.jobID, JobStateStagingIn)
	if err := o.stageIn(ctx, req.Source.Path, inputPath); err != nil {
		return models.JobResult{}, failures.Transfer("fetch "+req.Source.URI(o.Store.Scheme()), err)
	}

	o.setState(r.jobID, JobStateTranscoding)
	opts := encoder.Options{Format: r.format, Quality: req.Quality}
	if r.category == models.CategoryImage {
		opts.Width, opts.Height = req.Width, req.Height
	}
	if err := o.Transcoder.Transcode(ctx, r.category, inputPath, outputPath, opts); err != nil {
		if failures.KindOf(err) == failures.KindInternal {
			err = failures.Transcode(err.Error(), err)
		}
		return models.JobResult{}, err
	}

	o.setState(r.jobID, JobStateStagingOut)
	if err := o.stageOut(ctx, outputPath, r.outputObject); err != nil {
		return models.JobResult{}, failures.Transfer("store "+r.outputObject, err)
	}

	o.setState(r.jobID, JobStateFinalizing)
	if err := o.Store.Delete(ctx, req.Source.Path); err != nil && !errors.Is(err, writerbackends.ErrNotFound) {
		logger.Warn(failures.Cleanup(req.Source.URI(o.Store.Scheme()), err))
	}
	o.Deletions.Schedule(r.outputObject, o.DeleteDelay)

	url, err := o.Store.IssueDownloadURL(ctx, r.outputObject, o.URLExpiry)
	if err != nil {
		return models.JobResult{}, failures.Transfer("sign download URL for "+r.outputObject, err)
	}

	return models.JobResult{
		Success:          true,
		JobID:            r.jobID,
		DownloadURL:      url,
		OutputFilename:   r.outputFilename,
		ExpiresInMinutes: int(o.URLExpiry / time.Minute),
		DeleteInMinutes:  int(o.DeleteDelay / time.Minute),
	}, nil
}

func (o *Orchestrator) stageIn(ctx context.Context, object, localPath string) (err error) {
	defer func() { o.Metrics.ObserveTransfer("in", err) }()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	if err := o.Store.Fetch(ctx, object, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (o *Orchestrator) stageOut(ctx context.Context, localPath, object string) (err error) {
	defer func() { o.Metrics.ObserveTransfer("out", err) }()

	mtype, err := mimetype.DetectFile(localPath)
	if err != nil {
		return fmt.Errorf("open output %s: %w", localPath, err)
	}
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open output %s: %w", localPath, err)
	}
	defer f.Close()

	return o.Store.Store(ctx, object, f, mtype.String())
}

func (o *Orchestrator) setState(jobID string, state JobState) {
	if o.Tracker != nil {
		o.Tracker.Set(jobID, state)
	}
}

func (o *Orchestrator) recordSuccess(r resolved, req models.ConversionRequest) {
	if o.Successes == nil {
		return
	}
	rec := success.SuccessRecord{
		JobID:          r.jobID,
		OutputFilename: r.outputFilename,
		OutputObject:   r.outputObject,
		DeleteAt:       time.Now().Add(o.DeleteDelay).UTC(),
	}
	if err := o.Successes.StoreSuccess(rec, req); err != nil {
		logger.Errorf("Failed to store success record for %s: %v", r.jobID, err)
	}
}

func (o *Orchestrator) recordFailure(jobID string, jobErr error, req models.ConversionRequest) {
	if o.Failures == nil {
		return
	}
	if err := o.Failures.StoreFailure(jobID, jobErr, req); err != nil {
		logger.Errorf("Failed to store failure record for %s: %v", jobID, err)
	}
}
