package users

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/employdex/base-platform/internal/audit"
	"github.com/employdex/base-platform/internal/events"
	"github.com/employdex/base-platform/internal/platform/httpx"
	"github.com/employdex/base-platform/internal/rbac"
	"github.com/employdex/base-platform/internal/shared"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Service implements user catalog business rules.
type Service struct {
	repo    Repository
	sink    audit.Sink
	emitter events.Emitter
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, sink audit.Sink, emitter events.Emitter, logger *slog.Logger) *Service {
	if sink == nil {
		sink = audit.Discard{}
	}
	if emitter == nil {
		emitter = events.Noop{}
	}
	return &Service{repo: repo, sink: sink, emitter: emitter, logger: logger}
}

// Result is a paginated catalog window.
type Result struct {
	Users  []User            `json:"users"`
	Paging shared.Pagination `json:"paging"`
}

// List returns one page of the catalog.
func (s *Service) List(ctx context.Context, filter Filter) (*Result, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = defaultPerPage
	}
	if filter.PerPage > maxPerPage {
		filter.PerPage = maxPerPage
	}
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []User{}
	}
	return &Result{Users: list, Paging: shared.NewPagination(filter.Page, filter.PerPage, total)}, nil
}

// Get returns one user with roles.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a user and its role assignments in one transaction. When no
// roles are supplied the default User role is assigned.
func (s *Service) Create(ctx context.Context, actorID int64, input Input) (User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err = tx.CreateUser(ctx, input, string(hash))
		if err != nil {
			return err
		}
		roleIDs := input.RoleIDs
		if len(roleIDs) == 0 {
			defaultID, err := tx.RoleIDByName(ctx, rbac.RoleUser)
			if err != nil {
				return err
			}
			roleIDs = []int64{defaultID}
		} else {
			count, err := tx.CountExistingRoles(ctx, roleIDs)
			if err != nil {
				return err
			}
			if count != len(roleIDs) {
				return httpx.ErrNotFound
			}
		}
		return tx.ReplaceUserRoles(ctx, id, roleIDs)
	})
	if err != nil {
		return User{}, err
	}

	s.record(ctx, actorID, "user.created", id, map[string]any{"email": input.Email})
	s.emitter.Emit(ctx, "user.created", actorID, map[string]any{"user_id": id})
	return s.repo.Get(ctx, id)
}

// Update replaces the mutable profile fields.
func (s *Service) Update(ctx context.Context, actorID, id int64, input ProfileInput) (User, error) {
	user, err := s.repo.UpdateProfile(ctx, id, input)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actorID, "user.updated", id, nil)
	return user, nil
}

// SetActive flips the account's active flag. Deactivation is the soft
// alternative to deletion when the account has history worth keeping.
func (s *Service) SetActive(ctx context.Context, actorID, id int64, active bool) (User, error) {
	user, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return User{}, err
	}
	action := "user.deactivated"
	if active {
		action = "user.activated"
	}
	s.record(ctx, actorID, action, id, nil)
	return user, nil
}

// Delete removes the user and its role assignments. The first created
// administrator is protected even when other administrators exist.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		primary, err := tx.PrimaryAdminID(ctx)
		if err != nil {
			return err
		}
		if primary != 0 && primary == id {
			return ErrPrimaryAdmin
		}
		return tx.DeleteUser(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "user.deleted", id, nil)
	s.emitter.Emit(ctx, "user.deleted", actorID, map[string]any{"user_id": id})
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	entry := audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	}
	if err := s.sink.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
