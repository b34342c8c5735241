package domain

import (
	"strings"
	"time"
)

// ListKind names one of the fixed top-level lists.
type ListKind string

const (
	ListInbox      ListKind = "inbox"
	ListActiveNow  ListKind = "active-now"
	ListNextAction ListKind = "next-action"
	ListSomeday    ListKind = "someday"
	ListWaiting    ListKind = "waiting"
	ListRoutine    ListKind = "routine"
	ListChecklist  ListKind = "checklist"
)

// DefaultGroupName is used when a task is added to a list without a group.
const DefaultGroupName = "general"

// ListKinds returns every list kind in display order.
func ListKinds() []ListKind {
	return []ListKind{
		ListInbox,
		ListActiveNow,
		ListNextAction,
		ListSomeday,
		ListWaiting,
		ListRoutine,
		ListChecklist,
	}
}

// ParseListKind normalizes a raw list name into a known kind.
func ParseListKind(raw string) (ListKind, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "_", "-")
	for _, kind := range ListKinds() {
		if string(kind) == value {
			return kind, nil
		}
	}
	return "", InvalidArgument("list", "unknown list "+strings.TrimSpace(raw))
}

// Order returns the display position of the list kind.
func (k ListKind) Order() int {
	for i, kind := range ListKinds() {
		if kind == k {
			return i
		}
	}
	return len(ListKinds())
}

// List is a persisted top-level list.
type List struct {
	Kind      ListKind
	CreatedAt time.Time
}

// Group is a named bucket of tasks inside a list.
type Group struct {
	ID        string
	List      ListKind
	Name      string
	Position  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeGroupName trims a group name; names compare case-insensitively.
func NormalizeGroupName(raw string) (string, error) {
	name := strings.Join(strings.Fields(raw), " ")
	if name == "" {
		return "", InvalidArgument("group", "group name is required")
	}
	if len([]rune(name)) > 120 {
		return "", InvalidArgument("group", "group name is too long")
	}
	return name, nil
}

// SameGroupName reports whether two group names collide within a list.
func SameGroupName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
