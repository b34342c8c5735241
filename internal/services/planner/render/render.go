// Package render produces the read-only markdown view of the plan and the
// text of reminder notifications, localized with x/text catalogs.
package render

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const instantLayout = "2006-01-02 15:04"

// Localizer is the minimal message-printer contract required by the renderer.
type Localizer interface {
	Sprintf(key message.Reference, args ...any) string
}

var supported = []language.Tag{language.English, language.SimplifiedChinese}

var matcher = language.NewMatcher(supported)

// NewPrinter returns a printer for the closest supported locale and the
// canonical tag it resolved to. Unknown or empty locales fall back to English.
func NewPrinter(locale string) (*message.Printer, string) {
	tag := language.English
	if strings.TrimSpace(locale) != "" {
		if parsed, err := language.Parse(locale); err == nil {
			_, index, _ := matcher.Match(parsed)
			tag = supported[index]
		}
	}
	return message.NewPrinter(tag), tag.String()
}

// Plan is the hierarchy the view is rendered from.
type Plan struct {
	Lists    []domain.List
	Groups   []domain.Group
	Tasks    []domain.Task
	Location *time.Location
}

// View renders the plan as markdown: one section per non-empty list in fixed
// order, one subsection per group, and nested task bullets.
func View(loc Localizer, plan Plan) string {
	location := plan.Location
	if location == nil {
		location = time.UTC
	}

	byGroup := map[string][]domain.Task{}
	children := map[string][]domain.Task{}
	for _, task := range plan.Tasks {
		if task.ParentID != "" {
			children[task.ParentID] = append(children[task.ParentID], task)
			continue
		}
		byGroup[task.GroupID] = append(byGroup[task.GroupID], task)
	}

	groupsByList := map[domain.ListKind][]domain.Group{}
	for _, group := range plan.Groups {
		groupsByList[group.List] = append(groupsByList[group.List], group)
	}

	var b strings.Builder
	b.WriteString("# " + localize(loc, "plan.title") + "\n")
	wrote := false
	for _, kind := range domain.ListKinds() {
		groups := groupsByList[kind]
		slices.SortFunc(groups, func(a, b domain.Group) int {
			return cmp.Or(cmp.Compare(a.Position, b.Position), cmp.Compare(a.ID, b.ID))
		})
		var section strings.Builder
		for _, group := range groups {
			roots := byGroup[group.ID]
			if len(roots) == 0 {
				continue
			}
			section.WriteString("\n### " + group.Name + "\n\n")
			writeTasks(&section, loc, roots, children, location, 0)
		}
		if section.Len() == 0 {
			continue
		}
		b.WriteString("\n## " + localize(loc, "list."+string(kind)) + "\n")
		b.WriteString(section.String())
		wrote = true
	}
	if !wrote {
		b.WriteString("\n" + localize(loc, "plan.empty") + "\n")
	}
	return b.String()
}

func writeTasks(b *strings.Builder, loc Localizer, tasks []domain.Task, children map[string][]domain.Task, location *time.Location, depth int) {
	slices.SortFunc(tasks, func(a, b domain.Task) int {
		return cmp.Or(cmp.Compare(a.Position, b.Position), a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	for _, task := range tasks {
		b.WriteString(strings.Repeat("  ", depth))
		fmt.Fprintf(b, "- [%s] %s", task.Status, task.Title)
		if notes := annotations(loc, task, location); len(notes) > 0 {
			b.WriteString(" (" + strings.Join(notes, "; ") + ")")
		}
		for _, tag := range task.Tags {
			b.WriteString(" #" + tag)
		}
		b.WriteString(" `" + task.ID + "`\n")
		writeTasks(b, loc, children[task.ID], children, location, depth+1)
	}
}

func annotations(loc Localizer, task domain.Task, location *time.Location) []string {
	var notes []string
	if task.Priority != "" {
		notes = append(notes, localize(loc, "annotation.priority", string(task.Priority)))
	}
	if task.EstimateMinutes > 0 {
		notes = append(notes, localize(loc, "annotation.estimate", task.EstimateMinutes))
	}
	switch task.Schedule.Intent {
	case domain.IntentDateOnly:
		notes = append(notes, localize(loc, "annotation.date", task.Schedule.Date))
	case domain.IntentExactTime:
		notes = append(notes, localize(loc, "annotation.exact", task.Schedule.Date, task.Schedule.Time))
	case domain.IntentTimeWindow:
		notes = append(notes, localize(loc, "annotation.window", task.Schedule.Date, task.Schedule.WindowStart, task.Schedule.WindowEnd))
	}
	if task.Reminder != nil {
		notes = append(notes, localize(loc, "annotation.reminder", FormatInstant(task.Reminder.FireAt, location)))
	}
	if task.ReviewHint != nil {
		notes = append(notes, localize(loc, "annotation.review", FormatInstant(task.ReviewHint.At, location)))
	}
	return notes
}

// ReminderText renders the notification text for one delivery. A message
// override replaces the default text; overdue deliveries get a delayed prefix.
func ReminderText(loc Localizer, record domain.ReminderRecord, task domain.Task, location *time.Location, overdue bool) string {
	if location == nil {
		location = time.UTC
	}
	text := strings.TrimSpace(record.Message)
	if text == "" {
		title := strings.TrimSpace(task.Title)
		if title == "" {
			title = record.TaskID
		}
		if start, ok := task.Schedule.Start(location); ok {
			text = localize(loc, "reminder.scheduled", title, FormatInstant(start, location))
		} else {
			text = localize(loc, "reminder.default", title)
		}
	}
	if overdue {
		text = localize(loc, "reminder.delayed", text)
	}
	return text
}

// FormatInstant formats t in location for display.
func FormatInstant(t time.Time, location *time.Location) string {
	if location == nil {
		location = time.UTC
	}
	return t.In(location).Format(instantLayout)
}

func localize(loc Localizer, key string, args ...any) string {
	if loc == nil {
		loc = message.NewPrinter(language.English)
	}
	return loc.Sprintf(key, args...)
}
