package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/employdex/base-platform/internal/audit"
	"github.com/employdex/base-platform/internal/authz"
	"github.com/employdex/base-platform/internal/events"
	"github.com/employdex/base-platform/internal/platform/httpx"
	"github.com/employdex/base-platform/internal/rbac"
)

// dummyHash is compared against when the identifier does not resolve, so the
// unknown-identifier and wrong-secret paths take comparable time.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("employdex-timing-pad"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()

// Service wraps authentication business rules and token issuance.
type Service struct {
	repo    Repository
	issuer  *authz.Issuer
	sink    audit.Sink
	emitter events.Emitter
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, issuer *authz.Issuer, sink audit.Sink, emitter events.Emitter, logger *slog.Logger) *Service {
	if sink == nil {
		sink = audit.Discard{}
	}
	if emitter == nil {
		emitter = events.Noop{}
	}
	return &Service{repo: repo, issuer: issuer, sink: sink, emitter: emitter, logger: logger}
}

// Login authenticates the identifier/secret pair and issues a signed claims
// bundle with the user's resolved role and permission sets. Lookup is
// uniform for every identity, administrators included.
func (s *Service) Login(ctx context.Context, id Identifier, secret string) (*Session, error) {
	user, err := s.lookup(ctx, id)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			// Equalize timing with the mismatch path.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(secret)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	roles, err := s.repo.RolesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	perms, err := s.repo.PermissionsForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.issuer.Issue(authz.Identity{
		ID:          user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Roles:       roles,
		Permissions: perms,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, user.ID, "auth.login", map[string]any{"identifier_kind": string(id.Kind)})

	return &Session{
		Token:       token,
		ExpiresAt:   expiresAt,
		User:        *user,
		Roles:       roles,
		Permissions: perms,
	}, nil
}

// Register creates a self-service account carrying the default User role.
func (s *Service) Register(ctx context.Context, user User, secret string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = string(hash)
	created, err := s.repo.CreateUser(ctx, user, rbac.RoleUser)
	if err != nil {
		return nil, err
	}
	s.record(ctx, created.ID, "auth.registered", map[string]any{"email": created.Email})
	s.emitter.Emit(ctx, "user.registered", created.ID, map[string]any{"email": created.Email})
	return created, nil
}

func (s *Service) lookup(ctx context.Context, id Identifier) (*User, error) {
	switch id.Kind {
	case KindEmail:
		return s.repo.FindByEmail(ctx, id.Value)
	case KindMobile:
		return s.repo.FindByMobile(ctx, id.Value)
	default:
		return nil, httpx.ErrNotFound
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, meta map[string]any) {
	entry := audit.Entry{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(actorID, 10),
		Meta:     meta,
	}
	if err := s.sink.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
