package importer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sellerpulse/internal/model"
	"sellerpulse/internal/parser"
	"sellerpulse/internal/store"
)

var (
	// ErrRejected the parser reported structural errors; nothing was stored.
	ErrRejected = errors.New("import rejected")
	// ErrDuplicateImport the same content was already imported for this source.
	ErrDuplicateImport = errors.New("file already imported")
)

// Progress event types.
const (
	EventStart    = "start"
	EventParsed   = "parsed"
	EventWarning  = "warning"
	EventDone     = "done"
	EventRejected = "rejected"
	EventError    = "error"
)

// Coordinator parses uploads, enforces the reject/proceed contract and persists
// accepted batches.
type Coordinator struct {
	store *store.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewCoordinator creates a coordinator. A nil logger disables logging.
func NewCoordinator(st *store.Store, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		store: st,
		log:   log.Named("importer"),
		now:   time.Now,
	}
}

// ImportOptions one file to import.
type ImportOptions struct {
	Source   model.Source
	Filename string
	Content  []byte
	Force    bool // import even if identical content was stored before
}

// ProgressEvent progress notification streamed to the UI.
type ProgressEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Outcome result of importing one file.
type Outcome struct {
	Filename string             `json:"filename"`
	Batch    *model.ImportBatch `json:"batch,omitempty"`
	Result   *model.ParseResult `json:"result,omitempty"`
	Err      error              `json:"-"`
}

// Import runs the import in the background and streams progress.
// The channel is closed once a terminal event (done, rejected or error) was sent.
func (c *Coordinator) Import(ctx context.Context, opts ImportOptions) <-chan ProgressEvent {
	ch := make(chan ProgressEvent, 100)
	go func() {
		defer close(ch)
		c.run(ctx, opts, func(evt ProgressEvent) { c.sendProgress(ctx, ch, evt) })
	}()
	return ch
}

// ImportFile imports synchronously.
func (c *Coordinator) ImportFile(ctx context.Context, opts ImportOptions) (*Outcome, error) {
	out := c.run(ctx, opts, func(ProgressEvent) {})
	return out, out.Err
}

// ImportAll imports files concurrently. Outcomes are in input order and
// one failing file does not stop the others.
func (c *Coordinator) ImportAll(ctx context.Context, files []ImportOptions) []Outcome {
	outcomes := make([]Outcome, len(files))
	var g errgroup.Group
	for i := range files {
		g.Go(func() error {
			out, _ := c.ImportFile(ctx, files[i])
			outcomes[i] = *out
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (c *Coordinator) run(ctx context.Context, opts ImportOptions, emit func(ProgressEvent)) *Outcome {
	start := c.now()
	out := &Outcome{Filename: opts.Filename}
	log := c.log.With(zap.String("file", opts.Filename), zap.String("source", string(opts.Source)))

	fail := func(err error) *Outcome {
		out.Err = err
		log.Warn("import failed", zap.Error(err))
		emit(c.event(EventError, err.Error(), nil))
		return out
	}

	emit(c.event(EventStart, fmt.Sprintf("importing %s", opts.Filename), map[string]any{
		"filename": opts.Filename,
		"source":   opts.Source,
		"size":     len(opts.Content),
	}))

	if !opts.Source.Valid() {
		return fail(fmt.Errorf("unsupported source %q", opts.Source))
	}

	hash := contentHash(opts.Content)
	if !opts.Force {
		prev, err := c.store.FindBatchByHash(ctx, opts.Source, hash)
		switch {
		case err == nil:
			out.Err = fmt.Errorf("%w: batch %s", ErrDuplicateImport, prev.ID)
			out.Batch = prev
			log.Info("duplicate import skipped", zap.String("batch", prev.ID))
			emit(c.event(EventRejected, out.Err.Error(), prev))
			return out
		case !errors.Is(err, store.ErrNotFound):
			return fail(err)
		}
	}

	res := parser.Parse(opts.Source, parser.File{Name: opts.Filename, Content: bytes.NewReader(opts.Content)})
	out.Result = res
	emit(c.event(EventParsed, fmt.Sprintf("%d rows accepted, %d skipped", res.Diagnostics.RowsAccepted, res.Diagnostics.RowsSkipped), res.Diagnostics))
	for _, w := range res.Warnings {
		emit(c.event(EventWarning, w, nil))
	}

	if !res.OK() {
		out.Err = fmt.Errorf("%w: %s", ErrRejected, strings.Join(res.Errors, "; "))
		log.Info("import rejected", zap.Strings("errors", res.Errors))
		emit(c.event(EventRejected, out.Err.Error(), res))
		return out
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	diag := res.Diagnostics
	batch := &model.ImportBatch{
		ID:           uuid.NewString(),
		Source:       opts.Source,
		Filename:     opts.Filename,
		FileHash:     hash,
		FileSize:     int64(len(opts.Content)),
		RowsAccepted: diag.RowsAccepted,
		RowsSkipped:  diag.RowsSkipped,
		Warnings:     res.Warnings,
		CreatedAt:    c.now().UTC(),
		Diagnostics:  &diag,
	}
	if res.Period != nil {
		batch.PeriodStart = &res.Period.Start
		batch.PeriodEnd = &res.Period.End
	}
	if err := c.store.CreateBatch(ctx, batch, res.Rows); err != nil {
		return fail(fmt.Errorf("store batch: %w", err))
	}
	out.Batch = batch

	log.Info("import done",
		zap.String("batch", batch.ID),
		zap.Int("rows", batch.RowCount),
		zap.Int("skipped", batch.RowsSkipped),
		zap.Int("warnings", len(res.Warnings)),
		zap.Duration("took", time.Since(start)),
	)
	emit(c.event(EventDone, fmt.Sprintf("imported %d rows", batch.RowCount), batch))
	return out
}

func (c *Coordinator) event(typ, msg string, data any) ProgressEvent {
	return ProgressEvent{Type: typ, Message: msg, Data: data, Timestamp: c.now()}
}

// sendProgress blocks until the event is delivered or ctx is done.
func (c *Coordinator) sendProgress(ctx context.Context, ch chan<- ProgressEvent, evt ProgressEvent) {
	select {
	case ch <- evt:
	case <-ctx.Done():
	}
}

func contentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
