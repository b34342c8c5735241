package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
)

// PutList persists a list row; re-putting an existing kind is a no-op.
func (t *txStore) PutList(ctx context.Context, list domain.List) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil || t.q == nil {
		return fmt.Errorf("storage is not configured")
	}
	kind := strings.TrimSpace(string(list.Kind))
	if kind == "" {
		return fmt.Errorf("list kind is required")
	}
	if list.CreatedAt.IsZero() {
		return fmt.Errorf("list created at is required")
	}
	if _, err := t.q.ExecContext(ctx, `
INSERT INTO lists (kind, created_at) VALUES (?, ?)
ON CONFLICT(kind) DO NOTHING
`, kind, toMillis(list.CreatedAt)); err != nil {
		return fmt.Errorf("put list: %w", err)
	}
	return nil
}

// GetList loads one list by kind.
func (t *txStore) GetList(ctx context.Context, kind domain.ListKind) (domain.List, error) {
	if err := ctx.Err(); err != nil {
		return domain.List{}, err
	}
	if t == nil || t.q == nil {
		return domain.List{}, fmt.Errorf("storage is not configured")
	}
	var (
		list      domain.List
		createdAt int64
	)
	err := t.q.QueryRowContext(ctx, `SELECT kind, created_at FROM lists WHERE kind = ?`, strings.TrimSpace(string(kind))).
		Scan(&list.Kind, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.List{}, storage.ErrNotFound
		}
		return domain.List{}, fmt.Errorf("get list: %w", err)
	}
	list.CreatedAt = fromMillis(createdAt)
	return list, nil
}

// ListLists returns every persisted list in display order.
func (t *txStore) ListLists(ctx context.Context) ([]domain.List, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t == nil || t.q == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := t.q.QueryContext(ctx, `SELECT kind, created_at FROM lists`)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	var lists []domain.List
	for rows.Next() {
		var (
			list      domain.List
			createdAt int64
		)
		if err := rows.Scan(&list.Kind, &createdAt); err != nil {
			return nil, fmt.Errorf("scan list row: %w", err)
		}
		list.CreatedAt = fromMillis(createdAt)
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate list rows: %w", err)
	}
	sortLists(lists)
	return lists, nil
}

func sortLists(lists []domain.List) {
	slices.SortFunc(lists, func(a, b domain.List) int {
		return a.Kind.Order() - b.Kind.Order()
	})
}

// PutGroup inserts or updates one group. Name collisions within a list map
// to storage.ErrConflict.
func (t *txStore) PutGroup(ctx context.Context, group domain.Group) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil || t.q == nil {
		return fmt.Errorf("storage is not configured")
	}
	group.ID = strings.TrimSpace(group.ID)
	group.Name = strings.TrimSpace(group.Name)
	if group.ID == "" {
		return fmt.Errorf("group id is required")
	}
	if group.List == "" {
		return fmt.Errorf("group list is required")
	}
	if group.Name == "" {
		return fmt.Errorf("group name is required")
	}
	if group.CreatedAt.IsZero() || group.UpdatedAt.IsZero() {
		return fmt.Errorf("group timestamps are required")
	}

	_, err := t.q.ExecContext(ctx, `
INSERT INTO task_groups (id, list, name, name_key, position, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    list = excluded.list,
    name = excluded.name,
    name_key = excluded.name_key,
    position = excluded.position,
    updated_at = excluded.updated_at
`,
		group.ID,
		string(group.List),
		group.Name,
		groupNameKey(group.Name),
		group.Position,
		toMillis(group.CreatedAt),
		toMillis(group.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return storage.ErrConflict
		}
		if isForeignKeyConstraintError(err) {
			return fmt.Errorf("put group %s: list %s does not exist: %w", group.ID, group.List, err)
		}
		return fmt.Errorf("put group: %w", err)
	}
	return nil
}

// GetGroup loads one group by id.
func (t *txStore) GetGroup(ctx context.Context, id string) (domain.Group, error) {
	if err := ctx.Err(); err != nil {
		return domain.Group{}, err
	}
	if t == nil || t.q == nil {
		return domain.Group{}, fmt.Errorf("storage is not configured")
	}
	row := t.q.QueryRowContext(ctx, `
SELECT id, list, name, position, created_at, updated_at
FROM task_groups WHERE id = ?
`, strings.TrimSpace(id))
	group, err := scanGroup(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Group{}, storage.ErrNotFound
		}
		return domain.Group{}, fmt.Errorf("get group: %w", err)
	}
	return group, nil
}

// FindGroupByName loads a group by case-insensitive name within a list.
func (t *txStore) FindGroupByName(ctx context.Context, list domain.ListKind, name string) (domain.Group, error) {
	if err := ctx.Err(); err != nil {
		return domain.Group{}, err
	}
	if t == nil || t.q == nil {
		return domain.Group{}, fmt.Errorf("storage is not configured")
	}
	key := groupNameKey(name)
	if key == "" {
		return domain.Group{}, storage.ErrNotFound
	}
	row := t.q.QueryRowContext(ctx, `
SELECT id, list, name, position, created_at, updated_at
FROM task_groups WHERE list = ? AND name_key = ?
`, string(list), key)
	group, err := scanGroup(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Group{}, storage.ErrNotFound
		}
		return domain.Group{}, fmt.Errorf("find group by name: %w", err)
	}
	return group, nil
}

// ListGroups returns every group ordered by list then position.
func (t *txStore) ListGroups(ctx context.Context) ([]domain.Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t == nil || t.q == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := t.q.QueryContext(ctx, `
SELECT id, list, name, position, created_at, updated_at
FROM task_groups ORDER BY list, position, created_at, id
`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		group, err := scanGroup(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group rows: %w", err)
	}
	return groups, nil
}

func scanGroup(scan scanner) (domain.Group, error) {
	var (
		group     domain.Group
		createdAt int64
		updatedAt int64
	)
	if err := scan(&group.ID, &group.List, &group.Name, &group.Position, &createdAt, &updatedAt); err != nil {
		return domain.Group{}, err
	}
	group.CreatedAt = fromMillis(createdAt)
	group.UpdatedAt = fromMillis(updatedAt)
	return group, nil
}

func groupNameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
