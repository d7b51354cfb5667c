package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pharmacore/internal/blob"
	"pharmacore/internal/core"
)

// Format is an export artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// ParseFormat accepts json or xlsx, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Status is the lifecycle stage of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

var (
	ErrQueueFull     = errors.New("export queue full")
	ErrUnknownFormat = errors.New("unknown export format")
	ErrJobNotFound   = errors.New("export job not found")
	ErrNoArtifact    = errors.New("export job has no artifact in that format")
	ErrStopped       = errors.New("export worker stopped")
)

// Artifact is one stored export file.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Job tracks an export request and its artifacts.
type Job struct {
	ID          string     `json:"id"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (j Job) copy() Job {
	dup := j
	dup.Formats = append([]Format(nil), j.Formats...)
	dup.Artifacts = append([]Artifact(nil), j.Artifacts...)
	if j.CompletedAt != nil {
		at := *j.CompletedAt
		dup.CompletedAt = &at
	}
	return dup
}

// StateSource supplies the snapshot to export.
type StateSource interface {
	Snapshot() core.State
}

// Option configures a Worker.
type Option func(*Worker)

// WithQueueSize bounds the number of waiting jobs.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queueSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l core.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(gen func() string) Option {
	return func(w *Worker) {
		if gen != nil {
			w.newID = gen
		}
	}
}

// Worker renders exports asynchronously and stores them under
// backups/<job-id>/ in a blob store. The state is captured when the job is
// enqueued so an export never mixes two snapshots.
type Worker struct {
	source    StateSource
	store     blob.Store
	logger    core.Logger
	now       func() time.Time
	newID     func() string
	queueSize int

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Job

	// sendMu orders queue sends against Stop so nothing is sent after the drain.
	sendMu  sync.Mutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id    string
	state core.State
	at    time.Time
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NewWorker constructs a worker; call Start to begin processing.
func NewWorker(source StateSource, store blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		source:    source,
		store:     store,
		logger:    nopLogger{},
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
		queueSize: 16,
		jobs:      make(map[string]*Job),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.queue = make(chan task, w.queueSize)
	return w
}

// Start begins processing jobs.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop halts processing and waits for the running job. Jobs still queued
// are marked failed.
func (w *Worker) Stop(ctx context.Context) error {
	w.sendMu.Lock()
	w.stopped = true
	w.sendMu.Unlock()
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	for {
		select {
		case t := <-w.queue:
			w.fail(t.id, ErrStopped.Error())
		default:
			return nil
		}
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue schedules an export of the current state. No formats means both.
func (w *Worker) Enqueue(_ context.Context, formats ...Format) (Job, error) {
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatXLSX}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, f := range formats {
		if _, err := ParseFormat(string(f)); err != nil {
			return Job{}, err
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		uniq = append(uniq, f)
	}

	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if w.stopped {
		return Job{}, ErrStopped
	}

	now := w.now()
	job := &Job{ID: w.newID(), Formats: uniq, Status: StatusQueued, CreatedAt: now, UpdatedAt: now}

	w.mu.Lock()
	w.jobs[job.ID] = job
	queued := job.copy()
	w.mu.Unlock()

	select {
	case w.queue <- task{id: job.ID, state: w.source.Snapshot(), at: now}:
	default:
		w.mu.Lock()
		delete(w.jobs, job.ID)
		w.mu.Unlock()
		return Job{}, ErrQueueFull
	}
	w.logger.Info("export queued", "job", job.ID, "formats", fmt.Sprint(uniq))
	return queued, nil
}

// Get returns a copy of job id.
func (w *Worker) Get(id string) (Job, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	job, ok := w.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.copy(), true
}

// Open streams the artifact of job id in format f.
func (w *Worker) Open(ctx context.Context, id string, f Format) (Artifact, io.ReadCloser, error) {
	job, ok := w.Get(id)
	if !ok {
		return Artifact{}, nil, ErrJobNotFound
	}
	for _, a := range job.Artifacts {
		if a.Format != f {
			continue
		}
		_, rc, err := w.store.Get(ctx, a.Key)
		if err != nil {
			return Artifact{}, nil, fmt.Errorf("open %s: %w", a.Key, err)
		}
		return a, rc, nil
	}
	return Artifact{}, nil, ErrNoArtifact
}

func (w *Worker) process(t task) {
	w.setStatus(t.id, StatusRunning)
	job, ok := w.Get(t.id)
	if !ok {
		return
	}
	artifacts := make([]Artifact, 0, len(job.Formats))
	for _, f := range job.Formats {
		a, err := w.render(t, f)
		if err != nil {
			w.logger.Error("export failed", "job", t.id, "format", string(f), "error", err)
			w.fail(t.id, err.Error())
			return
		}
		artifacts = append(artifacts, a)
	}
	w.complete(t.id, artifacts)
	w.logger.Info("export complete", "job", t.id, "artifacts", len(artifacts))
}

func (w *Worker) render(t task, f Format) (Artifact, error) {
	var (
		buf  bytes.Buffer
		name string
		err  error
	)
	switch f {
	case FormatJSON:
		name = BackupFileName(t.at)
		err = NewBackup(t.state, t.at).Encode(&buf)
	case FormatXLSX:
		name = WorkbookFileName(t.at)
		err = WriteWorkbook(&buf, t.state)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}
	if err != nil {
		return Artifact{}, err
	}
	key := fmt.Sprintf("backups/%s/%s", t.id, name)
	info, err := w.store.Put(w.ctx, key, bytes.NewReader(buf.Bytes()), blob.PutOptions{
		ContentType: f.ContentType(),
		Metadata:    map[string]string{"job": t.id, "format": string(f)},
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("store %s: %w", key, err)
	}
	url, err := w.store.PresignURL(w.ctx, key, blob.SignedURLOptions{})
	if err != nil && !errors.Is(err, blob.ErrUnsupported) {
		w.logger.Warn("presign failed", "key", key, "error", err)
	}
	size := info.Size
	if size == 0 {
		size = int64(buf.Len())
	}
	return Artifact{
		Key:         key,
		Format:      f,
		FileName:    name,
		ContentType: f.ContentType(),
		SizeBytes:   size,
		URL:         url,
		CreatedAt:   w.now(),
	}, nil
}

func (w *Worker) setStatus(id string, status Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if job, ok := w.jobs[id]; ok {
		job.Status = status
		job.UpdatedAt = w.now()
	}
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if job, ok := w.jobs[id]; ok {
		now := w.now()
		job.Status = StatusSucceeded
		job.Error = ""
		job.Artifacts = artifacts
		job.UpdatedAt = now
		job.CompletedAt = &now
	}
}

func (w *Worker) fail(id, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if job, ok := w.jobs[id]; ok {
		now := w.now()
		job.Status = StatusFailed
		job.Error = reason
		job.UpdatedAt = now
		job.CompletedAt = &now
	}
}
