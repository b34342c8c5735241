package state

import (
	"context"
	"errors"
	"strings"

	"github.com/louisbranch/amaya/internal/services/planner/domain"
	"github.com/louisbranch/amaya/internal/services/planner/storage"
)

// CreateList ensures the list row exists. Created is false when it already did.
func (s *Service) CreateList(ctx context.Context, tx storage.Tx, kind domain.ListKind) (list domain.List, created bool, err error) {
	kind, err = domain.ParseListKind(string(kind))
	if err != nil {
		return domain.List{}, false, err
	}
	existing, err := tx.GetList(ctx, kind)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return domain.List{}, false, err
	}
	list = domain.List{Kind: kind, CreatedAt: s.nowUTC()}
	if err := tx.PutList(ctx, list); err != nil {
		return domain.List{}, false, err
	}
	return list, true, nil
}

// GroupResult reports the group an operation resolved and what it had to create.
type GroupResult struct {
	Group        domain.Group
	GroupCreated bool
	ListCreated  bool
}

// CreateGroup returns the group named name in the list, creating the list
// and the group when missing. Names match case-insensitively.
func (s *Service) CreateGroup(ctx context.Context, tx storage.Tx, kind domain.ListKind, name string) (GroupResult, error) {
	list, listCreated, err := s.CreateList(ctx, tx, kind)
	if err != nil {
		return GroupResult{}, err
	}
	name, err = domain.NormalizeGroupName(name)
	if err != nil {
		return GroupResult{}, err
	}
	existing, err := tx.FindGroupByName(ctx, list.Kind, name)
	if err == nil {
		return GroupResult{Group: existing, ListCreated: listCreated}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return GroupResult{}, err
	}

	groups, err := tx.ListGroups(ctx)
	if err != nil {
		return GroupResult{}, err
	}
	position := 0
	for _, group := range groups {
		if group.List == list.Kind {
			position++
		}
	}
	groupID, err := s.nextID()
	if err != nil {
		return GroupResult{}, err
	}
	now := s.nowUTC()
	group := domain.Group{
		ID:        groupID,
		List:      list.Kind,
		Name:      name,
		Position:  position,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.PutGroup(ctx, group); err != nil {
		return GroupResult{}, err
	}
	return GroupResult{Group: group, GroupCreated: true, ListCreated: listCreated}, nil
}

// resolveGroup picks the destination group from an explicit id or a name,
// falling back to the list's default group.
func (s *Service) resolveGroup(ctx context.Context, tx storage.Tx, kind domain.ListKind, groupID, groupName string) (GroupResult, error) {
	groupID = strings.TrimSpace(groupID)
	if groupID != "" {
		group, err := tx.GetGroup(ctx, groupID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return GroupResult{}, domain.NotFound("group", groupID)
			}
			return GroupResult{}, err
		}
		if kind != "" && group.List != kind {
			return GroupResult{}, domain.InvalidArgument("group_id", "group "+groupID+" belongs to list "+string(group.List))
		}
		return GroupResult{Group: group}, nil
	}
	if strings.TrimSpace(groupName) == "" {
		groupName = domain.DefaultGroupName
	}
	return s.CreateGroup(ctx, tx, kind, groupName)
}
