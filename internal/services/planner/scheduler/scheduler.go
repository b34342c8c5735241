// Package scheduler arms one in-memory timer per scheduled reminder record,
// delivers due reminders through a Notifier, and rebuilds its timers from the
// store and event journal after a restart.
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/amaya/internal/platform/timeouts"
	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/notify"
	"github.com/louisbranch/amaya/internal/services/planner/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// MaxWait caps a single timer wait so wall-clock jumps are noticed.
	MaxWait = time.Hour
	// DefaultOverdueGrace is how late a delivery may start before it is
	// marked overdue.
	DefaultOverdueGrace = time.Minute
	// DefaultErrorBackoff re-arms a reminder whose delivery could not be
	// recorded.
	DefaultErrorBackoff = 30 * time.Second
)

// Attempt identifies the timer that fired.
type Attempt struct {
	ReminderID string
	DueAt      time.Time
	Overdue    bool
	Redelivery bool
}

// Delivery is the snapshot one notification is built from.
type Delivery struct {
	Record     domain.ReminderRecord
	Task       domain.Task
	Overdue    bool
	Redelivery bool
}

// Recorder persists delivery progress. Implementations serialize these calls
// with every other planner mutation and call Sync with any record they change.
type Recorder interface {
	// BeginDelivery re-checks that the record is still scheduled for the
	// attempt's due instant. It returns false when the timer is stale.
	BeginDelivery(ctx context.Context, attempt Attempt) (Delivery, bool, error)
	// RecordOutcome stores the result of one notifier call.
	RecordOutcome(ctx context.Context, delivery Delivery, deliveryErr error) error
}

// Config wires a Scheduler.
type Config struct {
	Recorder        Recorder
	Notifier        notify.Notifier
	Localizer       render.Localizer
	Location        *time.Location
	OwnerID         string
	DeliveryTimeout time.Duration
	OverdueGrace    time.Duration
	ErrorBackoff    time.Duration
	Clock           func() time.Time
	Logf            func(format string, args ...any)
}

func (c Config) normalized() Config {
	if c.Location == nil {
		c.Location = time.UTC
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = timeouts.Delivery
	}
	if c.OverdueGrace <= 0 {
		c.OverdueGrace = DefaultOverdueGrace
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = DefaultErrorBackoff
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Logf == nil {
		c.Logf = log.Printf
	}
	c.OwnerID = strings.TrimSpace(c.OwnerID)
	return c
}

// Timer describes one armed reminder.
type Timer struct {
	ReminderID string
	DueAt      time.Time
	Overdue    bool
	Redelivery bool
}

// Scheduler owns the in-memory timer queue.
type Scheduler struct {
	cfg    Config
	tracer trace.Tracer

	mu       sync.Mutex
	queue    queue
	entries  map[string]*entry
	inflight map[string]bool
	deferred map[string]domain.ReminderRecord
	ready    bool

	wake chan struct{}
}

// New builds a scheduler. Recorder and Notifier are required.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Recorder == nil {
		return nil, fmt.Errorf("recorder is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	return &Scheduler{
		cfg:      cfg.normalized(),
		tracer:   otel.Tracer("github.com/louisbranch/amaya/internal/services/planner/scheduler"),
		entries:  make(map[string]*entry),
		inflight: make(map[string]bool),
		deferred: make(map[string]domain.ReminderRecord),
		wake:     make(chan struct{}, 1),
	}, nil
}

// Sync registers, re-registers or cancels timers for records changed by a
// commit. A record whose delivery is in flight is applied once the delivery
// settles.
func (s *Scheduler) Sync(records []domain.ReminderRecord) {
	if s == nil || len(records) == 0 {
		return
	}
	s.mu.Lock()
	before := s.headDueLocked()
	for _, record := range records {
		if s.inflight[record.ID] {
			s.deferred[record.ID] = record
			continue
		}
		s.applyLocked(record)
	}
	after := s.headDueLocked()
	s.mu.Unlock()
	if !before.Equal(after) {
		s.signal()
	}
}

// Timers returns the armed timers in firing order.
func (s *Scheduler) Timers() []Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Timer, 0, len(s.queue))
	for _, e := range s.queue {
		out = append(out, Timer{ReminderID: e.id, DueAt: e.due, Overdue: e.overdue, Redelivery: e.redelivery})
	}
	slices.SortFunc(out, func(a, b Timer) int {
		if c := a.DueAt.Compare(b.DueAt); c != 0 {
			return c
		}
		return strings.Compare(a.ReminderID, b.ReminderID)
	})
	return out
}

// Ready reports whether Recover has completed.
func (s *Scheduler) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Run fires due timers until ctx is canceled. Recover should run first.
// Each delivery runs on its own goroutine, so a slow notifier never holds
// back other due timers. Run returns once in-flight deliveries have settled.
func (s *Scheduler) Run(ctx context.Context) error {
	timer := time.NewTimer(MaxWait)
	defer timer.Stop()
	var deliveries sync.WaitGroup
	defer deliveries.Wait()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		now := s.cfg.Clock()
		for _, e := range s.takeDue(now) {
			deliveries.Go(func() {
				s.deliver(ctx, e, now)
			})
		}
		timer.Reset(s.nextWait())
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case <-s.wake:
		}
	}
}

// RunDue delivers every timer due at the current clock and waits for those
// deliveries to settle. It returns how many timers fired.
func (s *Scheduler) RunDue(ctx context.Context) int {
	now := s.cfg.Clock()
	due := s.takeDue(now)
	var wg sync.WaitGroup
	for _, e := range due {
		wg.Go(func() {
			s.deliver(ctx, e, now)
		})
	}
	wg.Wait()
	return len(due)
}

// takeDue pops every timer due at now and marks it in flight.
func (s *Scheduler) takeDue(now time.Time) []entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []entry
	for {
		head, ok := s.queue.peek()
		if !ok || head.due.After(now) {
			break
		}
		heap.Pop(&s.queue)
		delete(s.entries, head.id)
		s.inflight[head.id] = true
		due = append(due, *head)
	}
	return due
}

func (s *Scheduler) deliver(ctx context.Context, e entry, now time.Time) {
	ctx, span := s.tracer.Start(ctx, "planner.deliver", trace.WithAttributes(
		attribute.String("planner.reminder_id", e.id),
	))
	defer span.End()

	attempt := Attempt{
		ReminderID: e.id,
		DueAt:      e.due,
		Overdue:    e.overdue || now.Sub(e.due) > s.cfg.OverdueGrace,
		Redelivery: e.redelivery,
	}
	delivery, ok, err := s.cfg.Recorder.BeginDelivery(ctx, attempt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin delivery")
		s.cfg.Logf("begin delivery for reminder %s: %v", e.id, err)
		s.settle(e, &attempt, now.Add(s.cfg.ErrorBackoff))
		return
	}
	if !ok {
		s.settle(e, nil, time.Time{})
		return
	}

	msg := s.message(delivery)
	notifyCtx, cancel := context.WithTimeout(ctx, s.cfg.DeliveryTimeout)
	notifyErr := s.cfg.Notifier.Notify(notifyCtx, msg)
	cancel()
	if ctx.Err() != nil {
		// Shutting down: the started entry makes recovery redeliver.
		s.settle(e, nil, time.Time{})
		return
	}
	if notifyErr != nil {
		span.RecordError(notifyErr)
		s.cfg.Logf("deliver reminder %s (attempt %d): %v", e.id, msg.Attempt, notifyErr)
	}

	if err := s.cfg.Recorder.RecordOutcome(ctx, delivery, notifyErr); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "record outcome")
		s.cfg.Logf("record delivery outcome for reminder %s: %v", e.id, err)
		attempt.Redelivery = true
		s.settle(e, &attempt, now.Add(s.cfg.ErrorBackoff))
		return
	}
	s.settle(e, nil, time.Time{})
}

// settle clears the in-flight mark and applies whatever the store reported
// meanwhile. Without such a record, a non-nil retry re-arms the timer.
func (s *Scheduler) settle(e entry, retry *Attempt, at time.Time) {
	s.mu.Lock()
	delete(s.inflight, e.id)
	if record, ok := s.deferred[e.id]; ok {
		delete(s.deferred, e.id)
		s.applyLocked(record)
	} else if retry != nil {
		s.armLocked(e.id, at, retry.Overdue, retry.Redelivery)
	}
	s.mu.Unlock()
	s.signal()
}

func (s *Scheduler) message(d Delivery) notify.Message {
	return notify.Message{
		ReminderID: d.Record.ID,
		TaskID:     d.Record.TaskID,
		OwnerID:    s.cfg.OwnerID,
		Text:       render.ReminderText(s.cfg.Localizer, d.Record, d.Task, s.cfg.Location, d.Overdue),
		Priority:   d.Record.Priority,
		FireAt:     d.Record.FireAt,
		Attempt:    d.Record.Attempts + 1,
		Overdue:    d.Overdue,
		Redelivery: d.Redelivery,
	}
}

func (s *Scheduler) applyLocked(record domain.ReminderRecord) {
	switch record.Status {
	case domain.ReminderScheduled:
		s.armLocked(record.ID, record.DueAt(), false, false)
	default:
		s.removeLocked(record.ID)
	}
}

func (s *Scheduler) armLocked(id string, due time.Time, overdue, redelivery bool) {
	if existing, ok := s.entries[id]; ok {
		if existing.due.Equal(due) {
			existing.overdue = existing.overdue || overdue
			existing.redelivery = existing.redelivery || redelivery
			return
		}
		existing.due = due
		existing.overdue = overdue
		existing.redelivery = redelivery
		heap.Fix(&s.queue, existing.index)
		return
	}
	e := &entry{id: id, due: due, overdue: overdue, redelivery: redelivery}
	heap.Push(&s.queue, e)
	s.entries[id] = e
}

func (s *Scheduler) removeLocked(id string) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	heap.Remove(&s.queue, e.index)
	delete(s.entries, id)
}

func (s *Scheduler) headDueLocked() time.Time {
	if head, ok := s.queue.peek(); ok {
		return head.due
	}
	return time.Time{}
}

func (s *Scheduler) nextWait() time.Duration {
	s.mu.Lock()
	head, ok := s.queue.peek()
	var due time.Time
	if ok {
		due = head.due
	}
	s.mu.Unlock()
	if !ok {
		return MaxWait
	}
	wait := due.Sub(s.cfg.Clock())
	if wait < 0 {
		return 0
	}
	return min(wait, MaxWait)
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Backoff returns the retry delay after the given number of failed attempts:
// base doubled per attempt, capped at maxDelay.
func Backoff(attempts int, base, maxDelay time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempts < 1 {
		attempts = 1
	}
	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if maxDelay > 0 && delay >= maxDelay {
			return maxDelay
		}
	}
	if maxDelay > 0 && delay > maxDelay {
		return maxDelay
	}
	return delay
}

// IsRetryable reports whether a notifier error may succeed on a later attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !domain.IsPermanent(err) && !errors.Is(err, context.Canceled)
}
