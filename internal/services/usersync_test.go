package services

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/healtrip/healtrip-api/internal/models"
	"github.com/healtrip/healtrip-api/internal/store"
	"github.com/healtrip/healtrip-api/internal/utils"
)

func TestResolve(t *testing.T) {
	ctx := context.Background()
	existing := models.NewUser("user_a", "a@example.com", "Ana", "", testNow)

	tests := []struct {
		name      string
		identity  IdentityLookup
		id        utils.Identity
		insertErr []error
		wantUsers int
		wantCode  int
		wantEmail string
	}{
		{
			name:      "known external id",
			id:        utils.Identity{ExternalID: "user_a"},
			wantUsers: 1,
			wantEmail: "a@example.com",
		},
		{
			name:      "known email relinks",
			id:        utils.Identity{ExternalID: "user_a2", Email: "a@example.com"},
			wantUsers: 1,
			wantEmail: "a@example.com",
		},
		{
			name:      "new user from claims",
			id:        utils.Identity{ExternalID: "user_b", Email: "b@example.com"},
			wantUsers: 2,
			wantEmail: "b@example.com",
		},
		{
			name:      "new user from provider profile",
			identity:  &fakeIdentity{profile: &utils.Identity{Email: "c@example.com", FirstName: "Cy"}},
			id:        utils.Identity{ExternalID: "user_c"},
			wantUsers: 2,
			wantEmail: "c@example.com",
		},
		{
			name:     "provider down and no email claim",
			identity: &fakeIdentity{err: errDown},
			id:       utils.Identity{ExternalID: "user_d"},
			wantCode: 401,
		},
		{
			name:     "no external id",
			id:       utils.Identity{Email: "a@example.com"},
			wantCode: 401,
		},
		{
			name:      "insert race retried",
			id:        utils.Identity{ExternalID: "user_e", Email: "e@example.com"},
			insertErr: []error{store.ErrDuplicate},
			wantUsers: 2,
			wantEmail: "e@example.com",
		},
		{
			name:      "insert race twice",
			id:        utils.Identity{ExternalID: "user_f", Email: "f@example.com"},
			insertErr: []error{store.ErrDuplicate, store.ErrDuplicate},
			wantCode:  500,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := *existing
			users := newMemUsers(&cp)
			users.insertErr = tt.insertErr
			sync := NewUserSync(users, tt.identity, zap.NewNop())

			u, err := sync.Resolve(ctx, tt.id)
			if tt.wantCode != 0 {
				wantStatus(t, err, tt.wantCode)
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if u.Email != tt.wantEmail {
				t.Errorf("email = %q, want %q", u.Email, tt.wantEmail)
			}
			if u.ClerkID != tt.id.ExternalID {
				t.Errorf("external id = %q, want %q", u.ClerkID, tt.id.ExternalID)
			}
			if n := users.count(); n != tt.wantUsers {
				t.Errorf("users = %d, want %d", n, tt.wantUsers)
			}
		})
	}
}

func TestResolveIsStable(t *testing.T) {
	users := newMemUsers()
	sync := NewUserSync(users, nil, zap.NewNop())
	id := utils.Identity{ExternalID: "user_z", Email: "z@example.com"}

	first, err := sync.Resolve(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	second, err := sync.Resolve(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID || users.count() != 1 {
		t.Errorf("resolve created %d users (%s, %s)", users.count(), first.ID.Hex(), second.ID.Hex())
	}
}
