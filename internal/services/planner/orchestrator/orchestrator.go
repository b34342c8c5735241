// Package orchestrator serializes every planner mutation. Each accepted
// operation runs state changes, reminder derivation, view rendering and
// journal appends in one transaction, then re-arms scheduler timers.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/amaya/internal/platform/errors"
	"github.com/louisbranch/amaya/internal/platform/id"
	"github.com/louisbranch/amaya/internal/services/planner/derive"
	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/eventlog"
	"github.com/louisbranch/amaya/internal/services/planner/render"
	"github.com/louisbranch/amaya/internal/services/planner/state"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMaxAttempts   = 5
	defaultRetryBackoff  = 30 * time.Second
	defaultRetryMaxDelay = 10 * time.Minute
)

// Timers receives reminder records changed by a commit.
type Timers interface {
	Sync(records []domain.ReminderRecord)
}

// Config wires an Orchestrator.
type Config struct {
	Store         storage.Store
	Clock         func() time.Time
	NewID         func() (string, error)
	Location      *time.Location
	Locale        string
	ViewPath      string
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
	Logf          func(format string, args ...any)
}

// Result describes what an accepted operation changed.
type Result struct {
	Operation string
	List      *domain.List
	Group     *domain.Group
	Task      *domain.Task
	Record    *domain.ReminderRecord
	Removed   []string
	Subtree   []string
	Scheduled []domain.ReminderRecord
	Canceled  []domain.ReminderRecord
	EventSeq  uint64
}

// Orchestrator is the single writer of planner state.
type Orchestrator struct {
	cfg     Config
	store   storage.Store
	state   *state.Service
	printer render.Localizer
	locale  string
	tracer  trace.Tracer

	mu     sync.Mutex
	timers Timers
}

// New builds an orchestrator over store.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = defaultRetryMaxDelay
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	cfg.ViewPath = strings.TrimSpace(cfg.ViewPath)
	printer, locale := render.NewPrinter(cfg.Locale)
	return &Orchestrator{
		cfg:     cfg,
		store:   cfg.Store,
		state:   state.NewService(cfg.Clock, cfg.NewID),
		printer: printer,
		locale:  locale,
		tracer:  otel.Tracer("github.com/louisbranch/amaya/internal/services/planner/orchestrator"),
	}, nil
}

// UseTimers attaches the scheduler that commits are synced to.
func (o *Orchestrator) UseTimers(timers Timers) {
	o.mu.Lock()
	o.timers = timers
	o.mu.Unlock()
}

// Submit validates and applies one operation. It returns only after the
// transaction committed, or with a typed error and nothing changed.
func (o *Orchestrator) Submit(ctx context.Context, op Operation) (Result, error) {
	if op == nil {
		return Result{}, domain.InvalidArgument("operation", "operation is required")
	}
	ctx, span := o.tracer.Start(ctx, "planner.submit", trace.WithAttributes(
		attribute.String("planner.operation", op.Kind()),
	))
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	if err := op.Validate(now, o.cfg.Location); err != nil {
		o.reject(ctx, op, err, now)
		recordSpanError(span, err)
		return Result{}, err
	}

	var (
		result Result
		out    commitOutput
	)
	err := o.store.Update(ctx, func(tx storage.Tx) error {
		var events []eventlog.Entry
		var err error
		result, events, err = o.apply(ctx, tx, op, now)
		if err != nil {
			return err
		}
		out, err = o.commit(ctx, tx, events, now)
		return err
	})
	if err != nil {
		if apperrors.CodeOf(err).IsValidation() {
			o.reject(ctx, op, err, now)
			recordSpanError(span, err)
			return Result{}, err
		}
		err = domain.Persistence(op.Kind()+" failed", err)
		recordSpanError(span, err)
		return Result{}, err
	}

	result.Operation = op.Kind()
	result.Scheduled = out.plan.Scheduled()
	result.Canceled = out.plan.Cancel
	result.EventSeq = out.seq
	if result.Record != nil {
		out.changed = append(out.changed, *result.Record)
	}
	o.afterCommit(out)
	return result, nil
}

// commitOutput carries what a commit changed to the post-commit steps.
type commitOutput struct {
	plan    derive.Plan
	changed []domain.ReminderRecord
	view    string
	seq     uint64
}

// commit runs the steps shared by every write after its state change:
// reminder derivation, journal appends and the view refresh.
func (o *Orchestrator) commit(ctx context.Context, tx storage.Tx, events []eventlog.Entry, now time.Time) (commitOutput, error) {
	tasks, err := tx.ListTasks(ctx)
	if err != nil {
		return commitOutput{}, fmt.Errorf("list tasks: %w", err)
	}
	records, err := tx.ListReminders(ctx, domain.ReminderScheduled)
	if err != nil {
		return commitOutput{}, fmt.Errorf("list reminders: %w", err)
	}
	plan, err := derive.Sync(tasks, records, now, o.cfg.NewID)
	if err != nil {
		return commitOutput{}, fmt.Errorf("derive reminders: %w", err)
	}
	if err := derive.Apply(ctx, tx, plan); err != nil {
		return commitOutput{}, err
	}
	derived, err := derive.Events(plan, now)
	if err != nil {
		return commitOutput{}, err
	}
	events = append(events, derived...)

	var seq uint64
	for _, entry := range events {
		appended, err := tx.AppendEvent(ctx, entry)
		if err != nil {
			return commitOutput{}, fmt.Errorf("append %s: %w", entry.Kind, err)
		}
		seq = appended.Seq
	}

	view, err := o.refreshView(ctx, tx, seq, now)
	if err != nil {
		return commitOutput{}, err
	}
	changed := append([]domain.ReminderRecord{}, plan.Cancel...)
	changed = append(changed, plan.Scheduled()...)
	return commitOutput{plan: plan, changed: changed, view: view, seq: seq}, nil
}

func (o *Orchestrator) refreshView(ctx context.Context, tx storage.Tx, seq uint64, now time.Time) (string, error) {
	if seq == 0 {
		previous, err := tx.GetView(ctx)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("get view: %w", err)
		}
		seq = previous.EventSeq
	}
	snapshot, err := o.state.Snapshot(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("load plan: %w", err)
	}
	markdown := render.View(o.printer, render.Plan{
		Lists:    snapshot.Lists,
		Groups:   snapshot.Groups,
		Tasks:    snapshot.Tasks,
		Location: o.cfg.Location,
	})
	err = tx.PutView(ctx, storage.View{
		Markdown:   markdown,
		Locale:     o.locale,
		EventSeq:   seq,
		RenderedAt: now,
	})
	if err != nil {
		return "", fmt.Errorf("put view: %w", err)
	}
	return markdown, nil
}

// afterCommit re-arms timers and mirrors the view. Called with o.mu held.
func (o *Orchestrator) afterCommit(out commitOutput) {
	if o.timers != nil && len(out.changed) > 0 {
		o.timers.Sync(out.changed)
	}
	if o.cfg.ViewPath == "" || out.view == "" {
		return
	}
	if err := writeFileAtomic(o.cfg.ViewPath, []byte(out.view), 0o644); err != nil {
		o.cfg.Logf("mirror plan view to %s: %v", o.cfg.ViewPath, err)
	}
}

// reject journals a refused operation in its own transaction. Failing to
// journal it is logged and never changes the caller's error.
func (o *Orchestrator) reject(ctx context.Context, op Operation, cause error, now time.Time) {
	entry, err := eventlog.New(eventlog.EntityOperation, op.target(), eventlog.KindOperationRejected, eventlog.RejectedPayload{
		Operation: op.Kind(),
		TargetID:  op.target(),
		Code:      string(apperrors.CodeOf(cause)),
		Message:   cause.Error(),
	}, now)
	if err == nil {
		err = o.store.Update(ctx, func(tx storage.Tx) error {
			_, err := tx.AppendEvent(ctx, entry)
			return err
		})
	}
	if err != nil {
		o.cfg.Logf("journal rejected %s: %v", op.Kind(), err)
	}
}

// View returns the last rendered plan view.
func (o *Orchestrator) View(ctx context.Context) (storage.View, error) {
	var view storage.View
	err := o.store.Read(ctx, func(tx storage.ReadTx) error {
		var err error
		view, err = tx.GetView(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			snapshot, snapErr := o.state.Snapshot(ctx, tx)
			if snapErr != nil {
				return snapErr
			}
			view = storage.View{
				Markdown: render.View(o.printer, render.Plan{
					Lists:    snapshot.Lists,
					Groups:   snapshot.Groups,
					Tasks:    snapshot.Tasks,
					Location: o.cfg.Location,
				}),
				Locale: o.locale,
			}
			return nil
		}
		return err
	})
	if err != nil {
		return storage.View{}, domain.Persistence("read plan view", err)
	}
	return view, nil
}

// Reminders lists reminder records in the given statuses.
func (o *Orchestrator) Reminders(ctx context.Context, statuses ...domain.ReminderStatus) ([]domain.ReminderRecord, error) {
	var records []domain.ReminderRecord
	err := o.store.Read(ctx, func(tx storage.ReadTx) error {
		var err error
		records, err = tx.ListReminders(ctx, statuses...)
		return err
	})
	if err != nil {
		return nil, domain.Persistence("list reminders", err)
	}
	return records, nil
}

// Location returns the planner timezone.
func (o *Orchestrator) Location() *time.Location {
	return o.cfg.Location
}

func (o *Orchestrator) now() time.Time {
	return o.cfg.Clock().UTC().Truncate(time.Millisecond)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(apperrors.CodeOf(err)))
}

// writeFileAtomic writes content to a temp file next to path and renames it
// over the destination.
func writeFileAtomic(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
