package domain

import (
	"reflect"
	"testing"
	"time"

	apperrors "github.com/louisbranch/amaya/internal/platform/errors"
)

func TestDefaultPriority(t *testing.T) {
	if got := DefaultPriority(ListNextAction); got != PriorityLow {
		t.Fatalf("next-action default = %s, want low", got)
	}
	if got := DefaultPriority(ListInbox); got != PriorityNormal {
		t.Fatalf("inbox default = %s, want normal", got)
	}
}

func TestParseListKind(t *testing.T) {
	for _, raw := range []string{"next-action", "Next_Action", " next-action "} {
		kind, err := ParseListKind(raw)
		if err != nil || kind != ListNextAction {
			t.Fatalf("parse %q = %q, %v", raw, kind, err)
		}
	}
	if _, err := ParseListKind("later"); !apperrors.HasCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestParseStatusAndPriority(t *testing.T) {
	if status, err := ParseStatus(""); err != nil || status != StatusTodo {
		t.Fatalf("empty status = %q, %v", status, err)
	}
	if _, err := ParseStatus("paused"); err == nil {
		t.Fatal("expected unknown status error")
	}
	if priority, err := ParsePriority(" HIGH "); err != nil || priority != PriorityHigh {
		t.Fatalf("priority = %q, %v", priority, err)
	}
	if priority, err := ParsePriority(""); err != nil || priority != "" {
		t.Fatalf("empty priority = %q, %v", priority, err)
	}
	if _, err := ParsePriority("urgent"); err == nil {
		t.Fatal("expected unknown priority error")
	}
}

func TestNormalizeTitle(t *testing.T) {
	title, err := NormalizeTitle("  提交   材料 ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if title != "提交 材料" {
		t.Fatalf("got %q", title)
	}
	if _, err := NormalizeTitle("   "); err == nil {
		t.Fatal("expected empty title error")
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Work", "#home", "work", "", "errand"})
	want := []string{"errand", "home", "work"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if NormalizeTags([]string{" ", "#"}) != nil {
		t.Fatal("expected nil for only-empty tags")
	}
}

func TestHasLiveReminder(t *testing.T) {
	task := Task{Status: StatusTodo, Reminder: &Reminder{FireAt: time.Now()}}
	if !task.HasLiveReminder() {
		t.Fatal("expected live reminder")
	}
	task.Status = StatusDone
	if task.HasLiveReminder() {
		t.Fatal("done task has no live reminder")
	}
	task.Status = StatusTodo
	task.Reminder = nil
	if task.HasLiveReminder() {
		t.Fatal("no attachment means no live reminder")
	}
}
