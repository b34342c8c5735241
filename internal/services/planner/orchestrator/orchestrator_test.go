package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	apperrors "github.com/louisbranch/amaya/internal/platform/errors"
	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/eventlog"
	"github.com/louisbranch/amaya/internal/services/planner/notify"
	"github.com/louisbranch/amaya/internal/services/planner/scheduler"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
	"github.com/louisbranch/amaya/internal/services/planner/storage/sqlite"
)

var shanghai = mustLocation("Asia/Shanghai")

// 2026-01-07 09:00 in Shanghai.
var testNow = time.Date(2026, 1, 7, 1, 0, 0, 0, time.UTC)

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sequence struct {
	mu sync.Mutex
	n  int
}

func (s *sequence) NewID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("id-%03d", s.n), nil
}

type captureNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
	// during runs inside Notify, after the message is captured.
	during func(ctx context.Context, msg notify.Message)
}

func (n *captureNotifier) Notify(ctx context.Context, msg notify.Message) error {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	err, during := n.err, n.during
	n.mu.Unlock()
	if during != nil {
		during(ctx, msg)
	}
	return err
}

func (n *captureNotifier) messages() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Message(nil), n.msgs...)
}

type harness struct {
	t        *testing.T
	path     string
	clock    *fakeClock
	ids      *sequence
	notifier *captureNotifier
	store    *sqlite.Store
	orch     *Orchestrator
	sched    *scheduler.Scheduler
	opts     []func(*Config)
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		path:     filepath.Join(t.TempDir(), "planner.db"),
		clock:    &fakeClock{now: testNow},
		ids:      &sequence{},
		notifier: &captureNotifier{},
		opts:     opts,
	}
	h.start()
	t.Cleanup(func() {
		if h.store != nil {
			_ = h.store.Close()
		}
	})
	return h
}

// start opens the store and wires a fresh orchestrator and scheduler, the
// way a process start does.
func (h *harness) start() {
	h.t.Helper()
	store, err := sqlite.Open(context.Background(), h.path)
	if err != nil {
		h.t.Fatalf("open store: %v", err)
	}
	cfg := Config{
		Store:    store,
		Clock:    h.clock.Now,
		NewID:    h.ids.NewID,
		Location: shanghai,
		Logf:     h.t.Logf,
	}
	for _, opt := range h.opts {
		opt(&cfg)
	}
	orch, err := New(cfg)
	if err != nil {
		h.t.Fatalf("new orchestrator: %v", err)
	}
	sched, err := scheduler.New(scheduler.Config{
		Recorder: orch,
		Notifier: h.notifier,
		Location: shanghai,
		Clock:    h.clock.Now,
		Logf:     h.t.Logf,
	})
	if err != nil {
		h.t.Fatalf("new scheduler: %v", err)
	}
	orch.UseTimers(sched)
	if _, err := sched.Recover(context.Background(), store); err != nil {
		h.t.Fatalf("recover: %v", err)
	}
	h.store, h.orch, h.sched = store, orch, sched
}

// crash drops the running process state without any shutdown work.
func (h *harness) crash() {
	h.t.Helper()
	if err := h.store.Close(); err != nil {
		h.t.Fatalf("close store: %v", err)
	}
	h.store, h.orch, h.sched = nil, nil, nil
}

func (h *harness) submit(op Operation) Result {
	h.t.Helper()
	result, err := h.orch.Submit(context.Background(), op)
	if err != nil {
		h.t.Fatalf("submit %s: %v", op.Kind(), err)
	}
	return result
}

func (h *harness) task(id string) domain.Task {
	h.t.Helper()
	var task domain.Task
	err := h.store.Read(context.Background(), func(tx storage.ReadTx) error {
		var err error
		task, err = tx.GetTask(context.Background(), id)
		return err
	})
	if err != nil {
		h.t.Fatalf("get task %s: %v", id, err)
	}
	return task
}

func (h *harness) reminders(statuses ...domain.ReminderStatus) []domain.ReminderRecord {
	h.t.Helper()
	records, err := h.orch.Reminders(context.Background(), statuses...)
	if err != nil {
		h.t.Fatalf("list reminders: %v", err)
	}
	return records
}

func (h *harness) events() []eventlog.Entry {
	h.t.Helper()
	var all []eventlog.Entry
	for entry, err := range eventlog.Replay(context.Background(), h.store, 0) {
		if err != nil {
			h.t.Fatalf("replay: %v", err)
		}
		all = append(all, entry)
	}
	return all
}

func kinds(entries []eventlog.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, string(entry.Kind))
	}
	return out
}

// assertReminderInvariant checks that a task has exactly one scheduled
// record when it carries a live reminder, and none otherwise.
func (h *harness) assertReminderInvariant() {
	h.t.Helper()
	var (
		tasks   []domain.Task
		records []domain.ReminderRecord
	)
	err := h.store.Read(context.Background(), func(tx storage.ReadTx) error {
		var err error
		if tasks, err = tx.ListTasks(context.Background()); err != nil {
			return err
		}
		records, err = tx.ListReminders(context.Background(), domain.ReminderScheduled)
		return err
	})
	if err != nil {
		h.t.Fatalf("read state: %v", err)
	}
	scheduled := map[string][]domain.ReminderRecord{}
	for _, record := range records {
		scheduled[record.TaskID] = append(scheduled[record.TaskID], record)
	}
	for _, task := range tasks {
		got := scheduled[task.ID]
		delete(scheduled, task.ID)
		if !task.HasLiveReminder() {
			if len(got) != 0 {
				h.t.Fatalf("task %s has no live reminder but %d scheduled records", task.ID, len(got))
			}
			continue
		}
		if len(got) != 1 {
			h.t.Fatalf("task %s has a live reminder but %d scheduled records", task.ID, len(got))
		}
		if !got[0].FireAt.Equal(task.Reminder.FireAt) || got[0].Priority != task.Priority {
			h.t.Fatalf("record %+v does not match task reminder %+v", got[0], task.Reminder)
		}
	}
	for taskID, orphans := range scheduled {
		h.t.Fatalf("task %s is gone but has %d scheduled records", taskID, len(orphans))
	}
}

func TestSubmitRequiresOperation(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Submit(context.Background(), nil)
	if !apperrors.HasCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("err = %v", err)
	}
}

func TestSubmitMaterialsScenario(t *testing.T) {
	h := newHarness(t)

	added := h.submit(AddTask{List: "next-action", Title: "提交材料"})
	task := *added.Task
	if task.Priority != domain.PriorityLow {
		t.Fatalf("priority = %s, want low", task.Priority)
	}
	if added.Group == nil || added.Group.Name != domain.DefaultGroupName {
		t.Fatalf("group = %+v, want %s", added.Group, domain.DefaultGroupName)
	}

	h.submit(SetSchedule{TaskID: task.ID, Intent: "exact_time", Date: "2026-01-07", Time: "17:00"})
	result := h.submit(SetReminder{TaskID: task.ID, At: "2026-01-07T16:30:00"})

	wantFire := time.Date(2026, 1, 7, 16, 30, 0, 0, shanghai)
	if len(result.Scheduled) != 1 {
		t.Fatalf("scheduled = %+v", result.Scheduled)
	}
	records := h.reminders(domain.ReminderScheduled)
	if len(records) != 1 {
		t.Fatalf("records = %+v", records)
	}
	record := records[0]
	if record.TaskID != task.ID || !record.FireAt.Equal(wantFire) || record.Priority != domain.PriorityLow {
		t.Fatalf("record = %+v", record)
	}
	timers := h.sched.Timers()
	if len(timers) != 1 || timers[0].ReminderID != record.ID || !timers[0].DueAt.Equal(wantFire) {
		t.Fatalf("timers = %+v", timers)
	}

	want := []string{
		"list.created", "group.created", "task.added",
		"task.scheduled",
		"task.reminder_set", "reminder.scheduled",
	}
	if got := kinds(h.events()); !slices.Equal(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}

	view, err := h.orch.View(context.Background())
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if !strings.Contains(view.Markdown, "提交材料") || !strings.Contains(view.Markdown, "## Next actions") {
		t.Fatalf("view = %q", view.Markdown)
	}
	if view.EventSeq != 6 {
		t.Fatalf("view seq = %d, want 6", view.EventSeq)
	}

	h.clock.Advance(7*time.Hour + 30*time.Minute)
	if fired := h.sched.RunDue(context.Background()); fired != 1 {
		t.Fatalf("fired = %d", fired)
	}
	msgs := h.notifier.messages()
	if len(msgs) != 1 || msgs[0].Text != "Reminder: 提交材料 (scheduled 2026-01-07 17:00)" {
		t.Fatalf("messages = %+v", msgs)
	}
	if h.task(task.ID).Reminder != nil {
		t.Fatal("delivered reminder still attached")
	}
	h.assertReminderInvariant()
}

func TestDateOnlyReminderIsRejectedUntilExactTime(t *testing.T) {
	h := newHarness(t)
	task := *h.submit(AddTask{List: "inbox", Title: "Pay rent"}).Task
	h.submit(SetSchedule{TaskID: task.ID, Intent: "date_only", Date: "2026-01-08"})
	before := len(h.events())

	_, err := h.orch.Submit(context.Background(), SetReminder{TaskID: task.ID, At: "2026-01-08T09:00:00"})
	if !apperrors.HasCode(err, apperrors.CodeInvalidReminder) {
		t.Fatalf("err = %v, want invalid reminder", err)
	}
	if records := h.reminders(); len(records) != 0 {
		t.Fatalf("records = %+v", records)
	}
	if h.task(task.ID).Reminder != nil {
		t.Fatal("reminder attached after rejection")
	}
	events := h.events()
	if len(events) != before+1 {
		t.Fatalf("events grew by %d, want 1", len(events)-before)
	}
	last := events[len(events)-1]
	if last.Kind != eventlog.KindOperationRejected {
		t.Fatalf("last event = %s", last.Kind)
	}
	var payload eventlog.RejectedPayload
	if err := last.Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Operation != "set_reminder" || payload.TargetID != task.ID || payload.Code != string(apperrors.CodeInvalidReminder) {
		t.Fatalf("payload = %+v", payload)
	}

	h.submit(SetSchedule{TaskID: task.ID, Intent: "exact_time", Date: "2026-01-08", Time: "10:00"})
	h.submit(SetReminder{TaskID: task.ID, At: "2026-01-08T09:00:00"})
	if records := h.reminders(domain.ReminderScheduled); len(records) != 1 {
		t.Fatalf("records = %+v", records)
	}
	h.assertReminderInvariant()
}

func TestValidationRejectionsAreJournaled(t *testing.T) {
	h := newHarness(t)
	tests := []struct {
		name string
		op   Operation
		code apperrors.Code
	}{
		{name: "unknown list", op: CreateList{List: "later"}, code: apperrors.CodeInvalidArgument},
		{name: "empty title", op: AddTask{List: "inbox", Title: "  "}, code: apperrors.CodeInvalidArgument},
		{name: "no placement", op: AddTask{Title: "Orphan"}, code: apperrors.CodeInvalidArgument},
		{name: "empty patch", op: PatchTask{TaskID: "t1"}, code: apperrors.CodeInvalidArgument},
		{name: "exact time without time", op: SetSchedule{TaskID: "t1", Intent: "exact_time", Date: "2026-01-08"}, code: apperrors.CodeInvalidSchedule},
		{name: "past reminder", op: SetReminder{TaskID: "t1", At: "2026-01-06T09:00:00"}, code: apperrors.CodeInvalidReminder},
		{name: "bad reminder instant", op: SetReminder{TaskID: "t1", At: "tomorrow"}, code: apperrors.CodeInvalidReminder},
		{name: "self parent", op: MoveTask{TaskID: "t1", ParentID: "t1"}, code: apperrors.CodeCycle},
		{name: "unknown task", op: CompleteTask{TaskID: "missing"}, code: apperrors.CodeNotFound},
		{name: "unknown reminder", op: AcknowledgeReminder{ReminderID: "missing"}, code: apperrors.CodeNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			before := len(h.events())
			_, err := h.orch.Submit(context.Background(), tc.op)
			if !apperrors.HasCode(err, tc.code) {
				t.Fatalf("err = %v, want %s", err, tc.code)
			}
			events := h.events()
			if len(events) != before+1 || events[len(events)-1].Kind != eventlog.KindOperationRejected {
				t.Fatalf("events after rejection = %v", kinds(events[before:]))
			}
		})
	}
}

func TestCompleteCancelsReminderAndNeverSends(t *testing.T) {
	h := newHarness(t)
	task := *h.submit(AddTask{List: "active-now", Title: "Call dentist"}).Task
	h.submit(SetSchedule{TaskID: task.ID, Intent: "time_window", Date: "2026-01-07", WindowStart: "14:00", WindowEnd: "15:00"})
	h.submit(SetReminder{TaskID: task.ID, At: "2026-01-07T13:45"})

	result := h.submit(CompleteTask{TaskID: task.ID})
	if len(result.Canceled) != 1 {
		t.Fatalf("canceled = %+v", result.Canceled)
	}
	if timers := h.sched.Timers(); len(timers) != 0 {
		t.Fatalf("timers = %+v", timers)
	}
	h.assertReminderInvariant()

	h.clock.Advance(12 * time.Hour)
	if fired := h.sched.RunDue(context.Background()); fired != 0 {
		t.Fatalf("fired = %d", fired)
	}
	if msgs := h.notifier.messages(); len(msgs) != 0 {
		t.Fatalf("messages = %+v", msgs)
	}
	records := h.reminders()
	if len(records) != 1 || records[0].Status != domain.ReminderCanceled {
		t.Fatalf("records = %+v", records)
	}
}

func TestReminderInvariantAcrossOperations(t *testing.T) {
	h := newHarness(t)
	parent := *h.submit(AddTask{List: "next-action", Title: "Quarterly report"}).Task
	child := *h.submit(AddTask{ParentID: parent.ID, Title: "Collect numbers"}).Task
	other := *h.submit(AddTask{List: "waiting", Title: "Invoice reply", Priority: "high"}).Task
	h.assertReminderInvariant()

	for _, id := range []string{parent.ID, child.ID, other.ID} {
		h.submit(SetSchedule{TaskID: id, Intent: "exact_time", Date: "2026-01-09", Time: "10:00"})
		h.submit(SetReminder{TaskID: id, At: "2026-01-09T09:30"})
		h.assertReminderInvariant()
	}

	steps := []Operation{
		SetReminder{TaskID: parent.ID, At: "2026-01-09T09:00", Message: "Start the report"},
		PatchTask{TaskID: other.ID, Priority: ptr("critical")},
		MoveTask{TaskID: child.ID, List: "someday"},
		ClearReminder{TaskID: other.ID},
		SetReminder{TaskID: other.ID, At: "2026-01-10T08:00"},
		PatchTask{TaskID: child.ID, Status: ptr("done")},
		SetReviewHint{TaskID: parent.ID, At: "2026-01-08T18:00", Reason: "check scope"},
		DeleteTask{TaskID: parent.ID},
	}
	for _, op := range steps {
		h.submit(op)
		h.assertReminderInvariant()
	}

	scheduled := h.reminders(domain.ReminderScheduled)
	if len(scheduled) != 1 || scheduled[0].TaskID != other.ID || scheduled[0].Priority != domain.PriorityCritical {
		t.Fatalf("scheduled = %+v", scheduled)
	}
	timers := h.sched.Timers()
	if len(timers) != 1 || timers[0].ReminderID != scheduled[0].ID {
		t.Fatalf("timers = %+v", timers)
	}
}

func TestUpdatingReminderKeepsRecord(t *testing.T) {
	h := newHarness(t)
	task := *h.submit(AddTask{List: "inbox", Title: "Renew passport"}).Task
	h.submit(SetSchedule{TaskID: task.ID, Intent: "exact_time", Date: "2026-01-09", Time: "10:00"})
	first := h.submit(SetReminder{TaskID: task.ID, At: "2026-01-09T09:00"}).Scheduled[0]

	second := h.submit(SetReminder{TaskID: task.ID, At: "2026-01-09T09:45"})
	if len(second.Scheduled) != 1 || second.Scheduled[0].ID != first.ID {
		t.Fatalf("scheduled = %+v, want record %s updated in place", second.Scheduled, first.ID)
	}
	if records := h.reminders(); len(records) != 1 {
		t.Fatalf("records = %+v", records)
	}
	again := h.submit(PatchTask{TaskID: task.ID, Note: ptr("bring photos")})
	if len(again.Scheduled) != 0 || len(again.Canceled) != 0 {
		t.Fatalf("unrelated patch changed reminders: %+v", again)
	}
}

func TestCrashRestartFiresExactlyOnce(t *testing.T) {
	h := newHarness(t)
	task := *h.submit(AddTask{List: "next-action", Title: "Submit form"}).Task
	h.submit(SetSchedule{TaskID: task.ID, Intent: "exact_time", Date: "2026-01-07", Time: "11:00"})
	h.submit(SetReminder{TaskID: task.ID, At: "2026-01-07T10:30"})

	h.crash()
	h.clock.Advance(3 * time.Hour)
	h.start()

	timers := h.sched.Timers()
	if len(timers) != 1 || !timers[0].Overdue {
		t.Fatalf("timers after restart = %+v", timers)
	}
	if fired := h.sched.RunDue(context.Background()); fired != 1 {
		t.Fatalf("fired = %d", fired)
	}
	msgs := h.notifier.messages()
	if len(msgs) != 1 || !msgs[0].Overdue || !strings.HasPrefix(msgs[0].Text, "[Delayed reminder] ") {
		t.Fatalf("messages = %+v", msgs)
	}

	h.crash()
	h.clock.Advance(time.Hour)
	h.start()
	if timers := h.sched.Timers(); len(timers) != 0 {
		t.Fatalf("timers after second restart = %+v", timers)
	}
	h.sched.RunDue(context.Background())
	if got := len(h.notifier.messages()); got != 1 {
		t.Fatalf("delivered %d times, want 1", got)
	}
	if sent := h.reminders(domain.ReminderSent); len(sent) != 1 {
		t.Fatalf("sent = %+v", sent)
	}
	h.assertReminderInvariant()
}

func TestCrashDuringDeliveryRedelivers(t *testing.T) {
	h := newHarness(t)
	task := *h.submit(AddTask{List: "inbox", Title: "Water plants"}).Task
	h.submit(SetSchedule{TaskID: task.ID, Intent: "exact_time", Date: "2026-01-07", Time: "10:00"})
	record := h.submit(SetReminder{TaskID: task.ID, At: "2026-01-07T10:00"}).Scheduled[0]

	h.clock.Advance(time.Hour)
	_, ok, err := h.orch.BeginDelivery(context.Background(), scheduler.Attempt{ReminderID: record.ID, DueAt: record.DueAt()})
	if err != nil || !ok {
		t.Fatalf("begin delivery = %v, %v", ok, err)
	}
	h.crash()
	h.start()

	timers := h.sched.Timers()
	if len(timers) != 1 || !timers[0].Redelivery {
		t.Fatalf("timers = %+v", timers)
	}
	h.sched.RunDue(context.Background())
	msgs := h.notifier.messages()
	if len(msgs) != 1 || !msgs[0].Redelivery || msgs[0].IdempotencyKey() != record.ID+":"+record.FireAt.UTC().Format(time.RFC3339) {
		t.Fatalf("messages = %+v", msgs)
	}
}

func TestConcurrentSubmitsSerialize(t *testing.T) {
	h := newHarness(t)
	h.submit(CreateGroup{List: "inbox", Name: "errands"})

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Go(func() {
			_, err := h.orch.Submit(context.Background(), AddTask{List: "inbox", GroupName: "errands", Title: fmt.Sprintf("Errand %02d", i)})
			errs <- err
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	var tasks []domain.Task
	err := h.store.Read(context.Background(), func(tx storage.ReadTx) error {
		var err error
		tasks, err = tx.ListTasks(context.Background())
		return err
	})
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != workers {
		t.Fatalf("tasks = %d, want %d", len(tasks), workers)
	}
	positions := make([]int, 0, len(tasks))
	for _, task := range tasks {
		positions = append(positions, task.Position)
	}
	slices.Sort(positions)
	for i, position := range positions {
		if position != i {
			t.Fatalf("positions = %v", positions)
		}
	}
	seq, _, err := eventlog.Verify(context.Background(), h.store, 0, "")
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	if seq != uint64(len(h.events())) {
		t.Fatalf("verified seq = %d", seq)
	}
}

func TestDeliveryRetriesThenFails(t *testing.T) {
	h := newHarness(t, func(cfg *Config) { cfg.MaxAttempts = 2 })
	h.notifier.err = errors.New("connection refused")
	task := *h.submit(AddTask{List: "inbox", Title: "Stretch"}).Task
	h.submit(SetSchedule{TaskID: task.ID, Intent: "exact_time", Date: "2026-01-07", Time: "10:00"})
	record := h.submit(SetReminder{TaskID: task.ID, At: "2026-01-07T10:00"}).Scheduled[0]

	h.clock.Advance(time.Hour)
	h.sched.RunDue(context.Background())
	records := h.reminders(domain.ReminderScheduled)
	if len(records) != 1 || records[0].Attempts != 1 || records[0].NextAttemptAt == nil {
		t.Fatalf("after first attempt = %+v", records)
	}
	wantRetry := h.clock.Now().Add(defaultRetryBackoff)
	if !records[0].NextAttemptAt.Equal(wantRetry) {
		t.Fatalf("next attempt = %v, want %v", records[0].NextAttemptAt, wantRetry)
	}
	if timers := h.sched.Timers(); len(timers) != 1 || !timers[0].DueAt.Equal(wantRetry) {
		t.Fatalf("timers = %+v", timers)
	}
	if h.task(task.ID).Reminder == nil {
		t.Fatal("retrying reminder was consumed")
	}
	h.assertReminderInvariant()

	h.clock.Advance(defaultRetryBackoff)
	h.sched.RunDue(context.Background())
	records = h.reminders()
	if len(records) != 1 || records[0].ID != record.ID || records[0].Status != domain.ReminderFailed || records[0].Attempts != 2 {
		t.Fatalf("after second attempt = %+v", records)
	}
	if h.task(task.ID).Reminder != nil {
		t.Fatal("failed reminder still attached")
	}
	h.assertReminderInvariant()

	want := []string{"reminder.delivery_started", "reminder.attempt_failed", "reminder.delivery_started", "reminder.failed", "task.reminder_cleared"}
	all := kinds(h.events())
	if got := all[len(all)-len(want):]; !slices.Equal(got, want) {
		t.Fatalf("tail events = %v, want %v", got, want)
	}

	// A new reminder after a failure creates a fresh record.
	h.submit(SetReminder{TaskID: task.ID, At: "2026-01-07T20:00"})
	scheduled := h.reminders(domain.ReminderScheduled)
	if len(scheduled) != 1 || scheduled[0].ID == record.ID {
		t.Fatalf("scheduled = %+v", scheduled)
	}
}

func TestRescheduleDuringDeliveryRearmsTimer(t *testing.T) {
	h := newHarness(t)
	task := *h.submit(AddTask{List: "inbox", Title: "Water plants"}).Task
	h.submit(SetSchedule{TaskID: task.ID, Intent: "exact_time", Date: "2026-01-07", Time: "10:00"})
	record := h.submit(SetReminder{TaskID: task.ID, At: "2026-01-07T10:00"}).Scheduled[0]

	var once sync.Once
	h.notifier.during = func(ctx context.Context, _ notify.Message) {
		once.Do(func() {
			if _, err := h.orch.Submit(ctx, SetReminder{TaskID: task.ID, At: "2026-01-07T20:00"}); err != nil {
				t.Errorf("reschedule during delivery: %v", err)
			}
		})
	}

	h.clock.Advance(time.Hour)
	if fired := h.sched.RunDue(context.Background()); fired != 1 {
		t.Fatalf("fired = %d", fired)
	}
	want := time.Date(2026, 1, 7, 20, 0, 0, 0, shanghai)
	scheduled := h.reminders(domain.ReminderScheduled)
	if len(scheduled) != 1 || scheduled[0].ID != record.ID || !scheduled[0].FireAt.Equal(want) {
		t.Fatalf("scheduled = %+v", scheduled)
	}
	timers := h.sched.Timers()
	if len(timers) != 1 || timers[0].ReminderID != record.ID || !timers[0].DueAt.Equal(want) {
		t.Fatalf("timers = %+v, want %s due %v", timers, record.ID, want)
	}
	h.assertReminderInvariant()

	h.clock.Advance(10 * time.Hour)
	if fired := h.sched.RunDue(context.Background()); fired != 1 {
		t.Fatalf("fired at new instant = %d", fired)
	}
	if got := len(h.notifier.messages()); got != 2 {
		t.Fatalf("notify calls = %d, want 2", got)
	}
	if sent := h.reminders(domain.ReminderSent); len(sent) != 1 || sent[0].ID != record.ID {
		t.Fatalf("sent = %+v", sent)
	}
}

func TestPermanentDeliveryErrorFailsAtOnce(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = domain.Permanent(errors.New("webhook returned 404"))
	task := *h.submit(AddTask{List: "inbox", Title: "Ping"}).Task
	h.submit(SetSchedule{TaskID: task.ID, Intent: "exact_time", Date: "2026-01-07", Time: "10:00"})
	h.submit(SetReminder{TaskID: task.ID, At: "2026-01-07T10:00"})

	h.clock.Advance(time.Hour)
	h.sched.RunDue(context.Background())
	records := h.reminders()
	if len(records) != 1 || records[0].Status != domain.ReminderFailed || records[0].Attempts != 1 {
		t.Fatalf("records = %+v", records)
	}
}

func TestAcknowledgeReminder(t *testing.T) {
	h := newHarness(t)
	task := *h.submit(AddTask{List: "inbox", Title: "Take medicine"}).Task
	h.submit(SetSchedule{TaskID: task.ID, Intent: "exact_time", Date: "2026-01-07", Time: "10:00"})
	record := h.submit(SetReminder{TaskID: task.ID, At: "2026-01-07T10:00"}).Scheduled[0]

	_, err := h.orch.Submit(context.Background(), AcknowledgeReminder{ReminderID: record.ID})
	if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("ack before send err = %v", err)
	}

	h.clock.Advance(time.Hour)
	h.sched.RunDue(context.Background())
	if sent := h.reminders(domain.ReminderSent); len(sent) != 1 {
		t.Fatalf("sent = %+v", sent)
	}
	if timers := h.sched.Timers(); len(timers) != 0 {
		t.Fatalf("sent reminder still armed: %+v", timers)
	}

	result := h.submit(AcknowledgeReminder{ReminderID: record.ID})
	if result.Record == nil || result.Record.Status != domain.ReminderAcknowledged {
		t.Fatalf("result = %+v", result)
	}
	if sent := h.reminders(domain.ReminderSent); len(sent) != 0 {
		t.Fatalf("sent after ack = %+v", sent)
	}
	_, err = h.orch.Submit(context.Background(), AcknowledgeReminder{ReminderID: record.ID})
	if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
		t.Fatalf("second ack err = %v", err)
	}
}

func TestViewMirrorFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "views", "plan.md")
	h := newHarness(t, func(cfg *Config) {
		cfg.ViewPath = path
		cfg.Locale = "zh-CN"
	})
	h.submit(AddTask{List: "inbox", Title: "整理收件箱"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read mirror: %v", err)
	}
	if !strings.Contains(string(data), "整理收件箱") {
		t.Fatalf("mirror = %q", data)
	}
	view, err := h.orch.View(context.Background())
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Markdown != string(data) || view.Locale != "zh-Hans" {
		t.Fatalf("view = %+v", view)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("mirror dir has leftovers: %v", entries)
	}
}

func TestStorageFailureIsPersistenceError(t *testing.T) {
	h := newHarness(t)
	orch := h.orch
	h.crash()

	_, err := orch.Submit(context.Background(), CreateList{List: "inbox"})
	if !apperrors.HasCode(err, apperrors.CodePersistence) {
		t.Fatalf("err = %v, want persistence", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}
