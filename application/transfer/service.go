package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"media-relay/domain/transfer"
	"media-relay/infrastructure/logging"

	gax "github.com/googleapis/gax-go/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Defaults used when Options leaves a value unset
const (
	DefaultConcurrency = 4
	DefaultRetryDelay  = 500 * time.Millisecond
)

// maxRetryDelay caps the backoff between open attempts
const maxRetryDelay = 10 * time.Second

// Options parameterize a Service. Variations between deployments (which
// files are picked up, where they land, whether they are public) are
// expressed here rather than in separate code paths.
type Options struct {
	Concurrency        int
	Filter             transfer.ContentTypeFilter
	Public             bool
	DefaultPrefix      string
	DefaultContentType string
	OpenRetries        int           // extra attempts to open a source stream; <= 0 disables
	RetryDelay         time.Duration // initial backoff, doubled per attempt
	Logger             *slog.Logger

	// OnOutcome is called once per recorded outcome. Calls are serialized.
	OnOutcome func(transfer.Outcome)
}

// Request is one folder transfer
type Request struct {
	FolderRef         string // folder ID or Drive URL
	DestinationPrefix string // empty uses Options.DefaultPrefix
	Credential        transfer.Credential
}

// Service copies every file of a source folder into a sink
type Service struct {
	connector transfer.SourceConnector
	sink      transfer.Sink
	stager    transfer.Stager
	opts      Options
	log       *slog.Logger
	output    io.Writer
}

// NewService creates a new transfer service
func NewService(
	connector transfer.SourceConnector,
	sink transfer.Sink,
	stager transfer.Stager,
	opts Options,
	output io.Writer,
) *Service {
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.DefaultContentType == "" {
		opts.DefaultContentType = transfer.DefaultContentType
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if output == nil {
		output = io.Discard
	}
	return &Service{
		connector: connector,
		sink:      sink,
		stager:    stager,
		opts:      opts,
		log:       logging.OrDisabled(opts.Logger),
		output:    output,
	}
}

// Transfer lists the folder and moves every selected file to the sink.
//
// It returns either a complete report, with exactly one outcome per listed
// file in listing order, or a *transfer.BatchError when the batch could not
// start (missing folder, rejected credential, failed listing). Per-file
// failures, including cancellation, are recorded in the report.
func (s *Service) Transfer(ctx context.Context, req Request) (*transfer.Report, error) {
	folderID := transfer.NormalizeFolderRef(strings.TrimSpace(req.FolderRef))
	if folderID == "" {
		return nil, &transfer.BatchError{Message: "missing folder reference", Err: transfer.ErrMissingFolderRef}
	}

	src, err := s.connector.Connect(ctx, req.Credential)
	if err != nil {
		return nil, &transfer.BatchError{Message: "unable to connect to source", Err: err}
	}

	files, err := src.List(ctx, folderID, s.opts.Filter)
	if err != nil {
		return nil, &transfer.BatchError{Message: "error listing files", Err: err}
	}

	prefix := req.DestinationPrefix
	if prefix == "" {
		prefix = s.opts.DefaultPrefix
	}
	tasks := make([]transfer.Task, len(files))
	for i, f := range files {
		tasks[i] = transfer.NewTask(i, f, prefix)
	}

	fmt.Fprintf(s.output, "Found %d file(s) in folder %s\n", len(tasks), folderID)
	s.log.InfoContext(ctx, "transfer started", "folder", folderID, "files", len(tasks), "concurrency", s.opts.Concurrency)

	start := time.Now()
	report := s.run(ctx, src, tasks)

	fmt.Fprintf(s.output, "Transferred %d of %d file(s)\n", report.Succeeded(), report.Total())
	s.log.InfoContext(ctx, "transfer finished",
		"folder", folderID,
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
		"elapsed", time.Since(start),
	)
	return report, nil
}

// run executes tasks with at most Concurrency in flight. Launches follow
// discovery order; tasks not launched before ctx is done are recorded as
// cancelled without taking a worker.
func (s *Service) run(ctx context.Context, src transfer.Source, tasks []transfer.Task) *transfer.Report {
	rec := newRecorder(len(tasks), s.opts.OnOutcome, s.output)
	sem := semaphore.NewWeighted(int64(s.opts.Concurrency))
	var g errgroup.Group

	for _, t := range tasks {
		if !t.Descriptor.Valid() {
			rec.record(transfer.Failed(t, transfer.KindInvalidDescriptor, "descriptor is missing an id or name"))
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			rec.record(cancelled(t, StatePending))
			continue
		}
		// Acquire may succeed on a done context when a slot is free
		if ctx.Err() != nil {
			sem.Release(1)
			rec.record(cancelled(t, StatePending))
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			rec.record(s.runTask(ctx, src, t))
			return nil
		})
	}

	_ = g.Wait()
	return rec.report()
}

// runTask drives one task to a terminal state. The staging slot is released
// on every path.
func (s *Service) runTask(ctx context.Context, src transfer.Source, t transfer.Task) transfer.Outcome {
	log := s.log.With("index", t.Index, "name", t.Descriptor.Name)
	state := StatePending

	fail := func(err error, fallback transfer.ErrorKind) transfer.Outcome {
		kind := transfer.KindOf(err, fallback)
		if ctx.Err() != nil {
			kind = transfer.KindCancelled
		}
		step := state
		state = StateFailed
		log.WarnContext(ctx, "task failed", "step", step.String(), "state", state.String(), "kind", kind, "err", err)
		return transfer.Failed(t, kind, errorDetail(step, err))
	}

	if err := ctx.Err(); err != nil {
		return cancelled(t, state)
	}

	state = StateStaging
	slot, err := s.stager.Acquire(ctx, t.Descriptor.Name)
	if err != nil {
		return fail(err, transfer.KindStagingWrite)
	}
	defer func() {
		if err := slot.Release(); err != nil {
			log.Warn("failed to release staging slot", "err", err)
		}
	}()

	state = StateReading
	n, err := s.stage(ctx, src, t, slot)
	if err != nil {
		return fail(err, transfer.KindStreamInterrupted)
	}

	if err := ctx.Err(); err != nil {
		return fail(err, transfer.KindCancelled)
	}

	state = StateWriting
	r, err := slot.Reader()
	if err != nil {
		return fail(err, transfer.KindStagingWrite)
	}
	defer r.Close()

	contentType := t.Descriptor.ContentTypeOr(s.opts.DefaultContentType)
	loc, err := s.sink.Write(ctx, t.Destination, r, contentType, s.opts.Public)
	if err != nil {
		return fail(err, transfer.KindUpstreamWrite)
	}

	state = StateSucceeded
	log.DebugContext(ctx, "task finished", "state", state.String(), "path", loc.Path, "bytes", n)
	return transfer.Succeeded(t, loc, n)
}

// stage copies the source stream into the slot and returns the byte count
func (s *Service) stage(ctx context.Context, src transfer.Source, t transfer.Task, slot transfer.Slot) (int64, error) {
	rc, err := s.open(ctx, src, t.Descriptor.ID)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	n, err := slot.ReadFrom(&contextReader{ctx: ctx, r: rc})
	if err != nil {
		return n, err
	}
	// listed sizes are advisory; a clean EOF is trusted
	if size := t.Descriptor.Size; size > 0 && n != size {
		s.log.WarnContext(ctx, "size differs from listing", "name", t.Descriptor.Name, "listed", size, "read", n)
	}
	return n, nil
}

// open opens the source stream, retrying with jittered exponential backoff.
// Only opening is retried: once bytes flow, a failure is final for the task.
func (s *Service) open(ctx context.Context, src transfer.Source, id string) (io.ReadCloser, error) {
	bo := gax.Backoff{
		Initial:    s.opts.RetryDelay,
		Max:        max(s.opts.RetryDelay, maxRetryDelay),
		Multiplier: 2,
	}
	for attempt := 0; ; attempt++ {
		rc, err := src.Open(ctx, id)
		if err == nil {
			return rc, nil
		}
		if attempt >= s.opts.OpenRetries || ctx.Err() != nil {
			if transfer.KindOf(err, "") == "" {
				err = transfer.NewError(transfer.KindUpstreamRead, "open", err)
			}
			return nil, err
		}
		s.log.DebugContext(ctx, "retrying open", "id", id, "attempt", attempt+1, "err", err)
		if err := gax.Sleep(ctx, bo.Pause()); err != nil {
			return nil, err
		}
	}
}

func cancelled(t transfer.Task, state State) transfer.Outcome {
	return transfer.Failed(t, transfer.KindCancelled, fmt.Sprintf("cancelled while %s", state))
}

// errorDetail strips the kind prefix a tagged error carries, since the
// outcome records the kind separately
func errorDetail(state State, err error) string {
	var te *transfer.Error
	if errors.As(err, &te) {
		if te.Op != "" {
			return fmt.Sprintf("%s: %v", te.Op, te.Err)
		}
		return te.Err.Error()
	}
	return fmt.Sprintf("%s: %v", state, err)
}

// contextReader stops a copy at the next read once ctx is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// recorder collects outcomes into discovery order
type recorder struct {
	mu        sync.Mutex
	outcomes  []transfer.Outcome
	recorded  []bool
	onOutcome func(transfer.Outcome)
	output    io.Writer
}

func newRecorder(n int, onOutcome func(transfer.Outcome), output io.Writer) *recorder {
	return &recorder{
		outcomes:  make([]transfer.Outcome, n),
		recorded:  make([]bool, n),
		onOutcome: onOutcome,
		output:    output,
	}
}

func (r *recorder) record(o transfer.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recorded[o.Index] {
		panic(fmt.Sprintf("transfer: outcome for task %d recorded twice", o.Index))
	}
	r.recorded[o.Index] = true
	r.outcomes[o.Index] = o

	if o.OK() {
		fmt.Fprintf(r.output, "  ok    %s -> %s\n", o.Name, o.Location.Path)
	} else {
		fmt.Fprintf(r.output, "  error %s: %s\n", o.Name, o.Kind)
	}
	if r.onOutcome != nil {
		r.onOutcome(o)
	}
}

func (r *recorder) report() *transfer.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, ok := range r.recorded {
		if !ok {
			panic(fmt.Sprintf("transfer: task %d has no outcome", i))
		}
	}
	return &transfer.Report{Outcomes: r.outcomes}
}
