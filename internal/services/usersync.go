package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/models"
	"github.com/healtrip/healtrip-api/internal/store"
	"github.com/healtrip/healtrip-api/internal/utils"
)

// UserSync maps an external identity onto the local user record, creating
// or re-linking it on first sight.
type UserSync struct {
	users    UserStore
	identity IdentityLookup
	log      *zap.Logger
	now      func() time.Time
}

func NewUserSync(users UserStore, identity IdentityLookup, log *zap.Logger) *UserSync {
	return &UserSync{users: users, identity: identity, log: log, now: time.Now}
}

// Resolve returns the local user for id. The lookup order is external id,
// then email (re-attaching the external id), then a fresh insert. A
// duplicate-key race on insert is retried once.
func (s *UserSync) Resolve(ctx context.Context, id utils.Identity) (*models.User, error) {
	if id.ExternalID == "" {
		return nil, utils.Unauthorized("missing external identity")
	}
	u, err := s.users.FindByExternalID(ctx, id.ExternalID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, utils.Internal("failed to load user", err)
	}

	profile := s.profile(ctx, id)
	if profile.Email == "" {
		return nil, utils.Unauthorized("unable to resolve user identity")
	}

	u, err = s.link(ctx, profile)
	if !errors.Is(err, store.ErrDuplicate) {
		return u, err
	}
	// lost a race with a concurrent first request; whoever won is now findable
	s.log.Info("user insert raced, retrying", zap.String("externalId", id.ExternalID))
	if u, err := s.users.FindByExternalID(ctx, id.ExternalID); err == nil {
		return u, nil
	}
	u, err = s.link(ctx, profile)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, utils.Internal("failed to create user", err)
	}
	return u, err
}

// profile prefers the provider's record and falls back to the token claims.
func (s *UserSync) profile(ctx context.Context, id utils.Identity) utils.Identity {
	if s.identity == nil {
		return id
	}
	p, err := s.identity.Lookup(ctx, id.ExternalID)
	if err != nil {
		s.log.Warn("identity lookup failed, using token claims",
			zap.String("externalId", id.ExternalID), zap.Error(err))
		return id
	}
	p.ExternalID = id.ExternalID
	if p.Email == "" {
		p.Email = id.Email
	}
	if p.FirstName == "" {
		p.FirstName = id.FirstName
	}
	if p.LastName == "" {
		p.LastName = id.LastName
	}
	return *p
}

func (s *UserSync) link(ctx context.Context, p utils.Identity) (*models.User, error) {
	u, err := s.users.FindByEmail(ctx, p.Email)
	switch {
	case err == nil:
		if err := s.users.AttachExternalID(ctx, u.ID, p.ExternalID); err != nil {
			return nil, utils.Internal("failed to link user", err)
		}
		u.ClerkID = p.ExternalID
		s.log.Info("linked existing user to new identity",
			zap.String("userId", u.ID.Hex()), zap.String("externalId", p.ExternalID))
		return u, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, utils.Internal("failed to load user", err)
	}

	u = models.NewUser(p.ExternalID, p.Email, p.FirstName, p.LastName, s.now())
	if err := s.users.Insert(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, err
		}
		return nil, utils.Internal("failed to create user", err)
	}
	s.log.Info("created user from identity", zap.String("userId", u.ID.Hex()), zap.String("externalId", p.ExternalID))
	return u, nil
}
