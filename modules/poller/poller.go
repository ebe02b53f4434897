package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"muse-stream-server/modules/common/logger"
	"muse-stream-server/modules/common/model"
)

// State is the lifecycle position of one generation job.
type State string

const (
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

// IsTerminal reports whether no further transition can occur from s.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimedOut:
		return true
	default:
		return false
	}
}

// Backend-reported poll statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	// ErrBackendFailed marks an explicit failure reported by the backend,
	// a failed submit, or a failed asset download.
	ErrBackendFailed = errors.New("backend failed")
	// ErrTimedOut marks a job that never reached a backend-terminal state
	// within the backend's max wait.
	ErrTimedOut = errors.New("generation timed out")
)

// Submission is the outcome of a backend's creation endpoint. Exactly one
// field is expected to be set: Asset for synchronous backends that already
// produced a local file, PayloadRef for synchronous backends whose result
// still needs downloading, JobID for asynchronous backends.
type Submission struct {
	JobID      string
	PayloadRef string
	Asset      *model.GeneratedAsset
}

// PollResult is one status answer from the backend. PayloadRef is opaque to
// the poller; it is handed back verbatim to FetchAsset.
type PollResult struct {
	Status     string
	PayloadRef string
	Reason     string
}

// Backend is one external generation service (music, image, video). All
// methods that touch the network take a context.
type Backend interface {
	Name() string
	Submit(ctx context.Context, prompt string, req model.GenerationRequest) (*Submission, error)
	PollStatus(ctx context.Context, jobID string) (*PollResult, error)
	FetchAsset(ctx context.Context, payloadRef string, req model.GenerationRequest) (*model.GeneratedAsset, error)
	PollInterval() time.Duration
	MaxWait() time.Duration
	CostEstimate() float64
}

// Clock abstracts time for deterministic tests. Sleep must return early with
// the context error when the context is cancelled.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Job tracks one generation attempt from submission to terminal outcome.
// Owned by a single Poller.Run call; never reused for a retry.
type Job struct {
	Request model.GenerationRequest

	state       State
	jobID       string
	submittedAt time.Time
	lastPollAt  time.Time
	asset       *model.GeneratedAsset
	failure     error
}

// State returns the job's current lifecycle state.
func (j *Job) State() State { return j.state }

// JobID returns the backend-assigned identifier, empty for synchronous jobs.
func (j *Job) JobID() string { return j.jobID }

// Asset returns the downloaded result, nil unless the job completed.
func (j *Job) Asset() *model.GeneratedAsset { return j.asset }

// Err returns the terminal failure, nil for completed jobs.
func (j *Job) Err() error { return j.failure }

// Poller drives jobs against one backend: submit, poll on the backend's
// interval until a terminal state, download the payload. Callers always get
// a usable local asset or a failure, never a dangling remote reference.
type Poller struct {
	backend Backend
	clock   Clock
	log     zerolog.Logger
}

// New builds a poller for the given backend.
func New(backend Backend) *Poller {
	return NewWithClock(backend, systemClock{})
}

// NewWithClock is New with an injected clock for tests.
func NewWithClock(backend Backend, clock Clock) *Poller {
	return &Poller{
		backend: backend,
		clock:   clock,
		log:     logger.WithComponent("poller").With().Str("backend", backend.Name()).Logger(),
	}
}

// Backend returns the backend this poller drives.
func (p *Poller) Backend() Backend { return p.backend }

// Run executes one generation attempt. The returned error is nil iff the
// job completed and its asset was downloaded; the Job carries the terminal
// state either way.
func (p *Poller) Run(ctx context.Context, req model.GenerationRequest, prompt string) (*Job, error) {
	job := &Job{
		Request:     req,
		state:       StateSubmitted,
		submittedAt: p.clock.Now(),
	}

	p.log.Info().
		Str("request_id", req.ID).
		Str("mood", req.Mood).
		Msg("🚀 Submitting generation job")

	sub, err := p.backend.Submit(ctx, prompt, req)
	if err != nil {
		job.state = StateFailed
		job.failure = fmt.Errorf("%w: submit: %v", ErrBackendFailed, err)
		return job, job.failure
	}

	switch {
	case sub.Asset != nil:
		// Synchronous backend, result already on local disk.
		job.state = StateCompleted
		job.asset = sub.Asset
		return job, nil
	case sub.PayloadRef != "":
		// Synchronous result that still needs the binary fetch.
		return p.download(ctx, job, sub.PayloadRef)
	case sub.JobID != "":
		job.jobID = sub.JobID
		job.state = StatePolling
		return p.poll(ctx, job)
	default:
		job.state = StateFailed
		job.failure = fmt.Errorf("%w: submit returned neither job id nor result", ErrBackendFailed)
		return job, job.failure
	}
}

// poll re-checks the backend on its interval until a terminal condition.
// Transient errors (network, non-2xx) are logged and retried; the overall
// wait is capped by the backend's max wait.
func (p *Poller) poll(ctx context.Context, job *Job) (*Job, error) {
	interval := p.backend.PollInterval()
	maxWait := p.backend.MaxWait()

	for {
		if elapsed := p.clock.Now().Sub(job.submittedAt); elapsed >= maxWait {
			job.state = StateTimedOut
			job.failure = fmt.Errorf("%w after %s (job %s)", ErrTimedOut, elapsed.Round(time.Second), job.jobID)
			p.log.Error().Str("job_id", job.jobID).Dur("elapsed", elapsed).Msg("⏰ Generation timed out")
			return job, job.failure
		}

		if err := p.clock.Sleep(ctx, interval); err != nil {
			// Shutdown: abandon the in-flight wait immediately.
			job.state = StateFailed
			job.failure = fmt.Errorf("%w: %v", ErrBackendFailed, err)
			return job, job.failure
		}

		result, err := p.backend.PollStatus(ctx, job.jobID)
		job.lastPollAt = p.clock.Now()
		if err != nil {
			if ctx.Err() != nil {
				job.state = StateFailed
				job.failure = fmt.Errorf("%w: %v", ErrBackendFailed, ctx.Err())
				return job, job.failure
			}
			p.log.Warn().Err(err).Str("job_id", job.jobID).Msg("⚠️  Poll failed, will retry")
			continue
		}

		switch result.Status {
		case StatusCompleted:
			return p.download(ctx, job, result.PayloadRef)
		case StatusFailed:
			job.state = StateFailed
			job.failure = fmt.Errorf("%w: %s", ErrBackendFailed, result.Reason)
			p.log.Error().Str("job_id", job.jobID).Str("reason", result.Reason).Msg("❌ Backend reported failure")
			return job, job.failure
		default:
			p.log.Debug().Str("job_id", job.jobID).Str("status", result.Status).Msg("⏳ Generation in progress")
		}
	}
}

// download fetches the result payload. A failed download converts the
// outcome to failed even though the backend itself succeeded.
func (p *Poller) download(ctx context.Context, job *Job, payloadRef string) (*Job, error) {
	asset, err := p.backend.FetchAsset(ctx, payloadRef, job.Request)
	if err != nil {
		job.state = StateFailed
		job.failure = fmt.Errorf("%w: download: %v", ErrBackendFailed, err)
		p.log.Error().Err(err).Str("job_id", job.jobID).Msg("❌ Failed to download generated asset")
		return job, job.failure
	}
	job.state = StateCompleted
	job.asset = asset
	p.log.Info().Str("job_id", job.jobID).Str("file", asset.FilePath).Msg("✅ Generation completed")
	return job, nil
}
