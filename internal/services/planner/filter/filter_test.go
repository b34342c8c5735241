package filter

import (
	"reflect"
	"testing"
	"time"
)

func TestParse_Empty(t *testing.T) {
	cond, err := Tasks.Parse(" ")
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if !cond.IsEmpty() || cond.Params != nil {
		t.Fatalf("expected empty condition, got %+v", cond)
	}
}

func TestParse_TaskEquals(t *testing.T) {
	cond, err := Tasks.Parse(`status = "todo"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "status = ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"todo"}) {
		t.Fatalf("Params = %v", cond.Params)
	}
}

func TestParse_TaskAndOr(t *testing.T) {
	cond, err := Tasks.Parse(`list = "next-action" AND intent = "exact_time"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(list = ? AND schedule_intent = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"next-action", "exact_time"}) {
		t.Fatalf("Params = %v", cond.Params)
	}

	cond, err = Tasks.Parse(`priority = "high" OR priority = "critical"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(priority = ? OR priority = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestParse_Not(t *testing.T) {
	cond, err := Tasks.Parse(`NOT status = "done"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(NOT status = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestParse_NumericAndTimestamp(t *testing.T) {
	cond, err := Reminders.Parse(`attempts >= 2`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "attempts >= ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{int64(2)}) {
		t.Fatalf("Params = %v", cond.Params)
	}

	cond, err = Reminders.Parse(`fire_at < timestamp("2026-01-07T16:30:00Z")`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "fire_at < ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	want := time.Date(2026, 1, 7, 16, 30, 0, 0, time.UTC).UnixMilli()
	if !reflect.DeepEqual(cond.Params, []any{want}) {
		t.Fatalf("Params = %v, want %d", cond.Params, want)
	}
}

func TestParse_EventKinds(t *testing.T) {
	cond, err := Events.Parse(`entity_kind = "reminder" AND kind = "reminder.sent"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(entity_kind = ? AND kind = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestParse_InvalidField(t *testing.T) {
	if _, err := Tasks.Parse(`fire_at > timestamp("2026-01-01T00:00:00Z")`); err == nil {
		t.Fatal("expected error for field outside task schema")
	}
	if _, err := Reminders.Parse(`title = "x"`); err == nil {
		t.Fatal("expected error for field outside reminder schema")
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Tasks.Parse(`status = `); err == nil {
		t.Fatal("expected parse error")
	}
}
