package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/employdex/base-platform/internal/audit"
	"github.com/employdex/base-platform/internal/events"
	"github.com/employdex/base-platform/internal/platform/httpx"
)

// Guard violations. Both are invariant errors surfaced as 403.
var (
	ErrSystemRole       = &httpx.InvariantViolationError{Reason: "system roles cannot be renamed or deleted"}
	ErrAdminPermissions = &httpx.InvariantViolationError{Reason: "the Admin role must retain every permission"}
)

// Service orchestrates catalog reads and guarded mutations.
type Service struct {
	repo    Repository
	sink    audit.Sink
	emitter events.Emitter
	logger  *slog.Logger
}

// NewService constructs a Service. The audit sink and event emitter are
// injected explicitly; both are consulted best-effort after commits.
func NewService(repo Repository, sink audit.Sink, emitter events.Emitter, logger *slog.Logger) *Service {
	if sink == nil {
		sink = audit.Discard{}
	}
	if emitter == nil {
		emitter = events.Noop{}
	}
	return &Service{repo: repo, sink: sink, emitter: emitter, logger: logger}
}

// ListRoles returns all roles with their assigned-user counts.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole returns one role including its permission set.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// ListPermissions returns the full permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// CreatePermission adds a permission to the catalog. The new permission is
// attached to the Admin role in the same transaction so the Admin
// completeness invariant keeps holding as the catalog grows.
func (s *Service) CreatePermission(ctx context.Context, actorID int64, name, description string) (Permission, error) {
	name = strings.TrimSpace(name)
	if !ValidPermissionName(name) {
		return Permission{}, fmt.Errorf("permission name must be lowercase_with_underscores: %w", httpx.ErrValidation)
	}
	var created Permission
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		perm, err := tx.CreatePermission(ctx, name, strings.TrimSpace(description))
		if err != nil {
			return err
		}
		admin, err := tx.GetRoleByName(ctx, RoleAdmin)
		if err != nil {
			return err
		}
		if err := tx.AttachPermission(ctx, admin.ID, perm.ID); err != nil {
			return err
		}
		created = perm
		return nil
	})
	if err != nil {
		return Permission{}, err
	}
	s.recordMutation(ctx, actorID, "permission.created", "permission", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

// UpdatePermission changes a permission's description. Names are immutable.
func (s *Service) UpdatePermission(ctx context.Context, actorID, id int64, description string) (Permission, error) {
	perm, err := s.repo.UpdatePermissionDescription(ctx, id, strings.TrimSpace(description))
	if err != nil {
		return Permission{}, err
	}
	s.recordMutation(ctx, actorID, "permission.updated", "permission", perm.ID, map[string]any{"name": perm.Name})
	return perm, nil
}

// RoleInput carries the fields of a role create or update request. The
// permission set is a full replace, not an incremental diff.
type RoleInput struct {
	Name          string
	Description   string
	PermissionIDs []int64
}

// CreateRole inserts a role and its initial permission set atomically.
func (s *Service) CreateRole(ctx context.Context, actorID int64, input RoleInput) (Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Role{}, fmt.Errorf("role name required: %w", httpx.ErrValidation)
	}
	if reservedRoleName(name) {
		return Role{}, fmt.Errorf("role %q: %w", name, httpx.ErrDuplicate)
	}
	permIDs := dedupeIDs(input.PermissionIDs)

	var created Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := validatePermissionIDs(ctx, tx, permIDs); err != nil {
			return err
		}
		role, err := tx.CreateRole(ctx, name, strings.TrimSpace(input.Description))
		if err != nil {
			return err
		}
		if err := tx.ReplaceRolePermissions(ctx, role.ID, permIDs); err != nil {
			return err
		}
		created = role
		return nil
	})
	if err != nil {
		return Role{}, err
	}
	s.recordMutation(ctx, actorID, "role.created", "role", created.ID, map[string]any{
		"name":        created.Name,
		"permissions": len(permIDs),
	})
	return s.repo.GetRole(ctx, created.ID)
}

// UpdateRole renames a role and replaces its permission set. Guard checks
// run inside the transaction, against the same catalog snapshot the writes
// will see:
//   - a system role cannot change its name;
//   - the Admin role's proposed final set must equal the full catalog.
func (s *Service) UpdateRole(ctx context.Context, actorID, id int64, input RoleInput) (Role, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Role{}, fmt.Errorf("role name required: %w", httpx.ErrValidation)
	}
	permIDs := dedupeIDs(input.PermissionIDs)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.GetRoleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if role.IsSystem && name != role.Name {
			return ErrSystemRole
		}
		if !role.IsSystem && reservedRoleName(name) {
			return fmt.Errorf("role %q: %w", name, httpx.ErrDuplicate)
		}
		if err := validatePermissionIDs(ctx, tx, permIDs); err != nil {
			return err
		}
		if role.IsAdmin() {
			catalog, err := tx.AllPermissionIDs(ctx)
			if err != nil {
				return err
			}
			if !sameIDSet(permIDs, catalog) {
				return ErrAdminPermissions
			}
		}
		if _, err := tx.UpdateRole(ctx, id, name, strings.TrimSpace(input.Description)); err != nil {
			return err
		}
		return tx.ReplaceRolePermissions(ctx, id, permIDs)
	})
	if err != nil {
		return Role{}, err
	}
	s.recordMutation(ctx, actorID, "role.updated", "role", id, map[string]any{
		"name":        name,
		"permissions": len(permIDs),
	})
	return s.repo.GetRole(ctx, id)
}

// DeleteRole removes a role. System roles are never deletable and a role
// with assigned users is rejected with its current user count, leaving the
// catalog untouched.
func (s *Service) DeleteRole(ctx context.Context, actorID, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		role, err := tx.GetRoleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if role.IsSystem {
			return ErrSystemRole
		}
		count, err := tx.CountUsersWithRole(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return &httpx.RoleInUseError{UserCount: count}
		}
		return tx.DeleteRole(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordMutation(ctx, actorID, "role.deleted", "role", id, nil)
	return nil
}

// AssignUserRoles replaces a user's role set.
func (s *Service) AssignUserRoles(ctx context.Context, actorID, userID int64, roleIDs []int64) error {
	ids := dedupeIDs(roleIDs)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.UserExists(ctx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("user %d: %w", userID, httpx.ErrNotFound)
		}
		if len(ids) > 0 {
			count, err := tx.CountExistingRoles(ctx, ids)
			if err != nil {
				return err
			}
			if count != len(ids) {
				return fmt.Errorf("unknown role id: %w", httpx.ErrNotFound)
			}
		}
		return tx.ReplaceUserRoles(ctx, userID, ids)
	})
	if err != nil {
		return err
	}
	s.recordMutation(ctx, actorID, "user.roles_assigned", "user", userID, map[string]any{"roles": len(ids)})
	return nil
}

// recordMutation writes the audit entry and emits the domain event. Both are
// best-effort; a failure is logged and never propagated.
func (s *Service) recordMutation(ctx context.Context, actorID int64, action, entity string, entityID int64, meta map[string]any) {
	entry := audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	}
	if err := s.sink.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
	s.emitter.Emit(ctx, action, actorID, meta)
}

// reservedRoleName reports whether a name collides with a system role in any
// capitalization. Role requirements match case-insensitively, so a role named
// "admin" would satisfy every Admin-gated route.
func reservedRoleName(name string) bool {
	return strings.EqualFold(name, RoleAdmin) || strings.EqualFold(name, RoleUser)
}

func validatePermissionIDs(ctx context.Context, tx TxRepository, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	count, err := tx.CountExistingPermissions(ctx, ids)
	if err != nil {
		return err
	}
	if count != len(ids) {
		return fmt.Errorf("unknown permission id: %w", httpx.ErrNotFound)
	}
	return nil
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sameIDSet(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int64]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
