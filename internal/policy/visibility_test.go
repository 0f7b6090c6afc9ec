package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/repository"
)

type plainVerifier struct{}

func (plainVerifier) Verify(plaintext, digest string) bool {
	return plaintext != "" && plaintext == digest
}

func TestCanView(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name     string
		caller   model.Caller
		team     *repository.Team
		expected bool
	}{
		{name: "public", caller: model.Caller{UserID: "u1"}, team: &repository.Team{Visibility: model.VisibilityPublic}, expected: true},
		{name: "secret is listable", caller: model.Caller{}, team: &repository.Team{Visibility: model.VisibilitySecret}, expected: true},
		{name: "private hidden from stranger", caller: model.Caller{UserID: "u1"}, team: &repository.Team{OwnerID: "u2", Visibility: model.VisibilityPrivate}},
		{name: "private hidden from anonymous", caller: model.Caller{}, team: &repository.Team{Visibility: model.VisibilityPrivate}},
		{name: "private visible to owner", caller: model.Caller{UserID: "u2"}, team: &repository.Team{OwnerID: "u2", Visibility: model.VisibilityPrivate}, expected: true},
		{name: "private visible to admin", caller: model.Caller{UserID: "a", IsAdmin: true}, team: &repository.Team{OwnerID: "u2", Visibility: model.VisibilityPrivate}, expected: true},
		{name: "expired hidden even from admin", caller: model.Caller{UserID: "a", IsAdmin: true}, team: &repository.Team{Visibility: model.VisibilityPublic, ExpiresAt: &past}},
		{name: "expiring later is visible", caller: model.Caller{}, team: &repository.Team{Visibility: model.VisibilityPublic, ExpiresAt: &future}, expected: true},
		{name: "expiring exactly now is hidden", caller: model.Caller{}, team: &repository.Team{Visibility: model.VisibilityPublic, ExpiresAt: &now}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanView(tt.caller, tt.team, now))
		})
	}
}

func TestCanJoin(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)

	user := model.Caller{UserID: "u1"}
	admin := model.Caller{UserID: "a", IsAdmin: true}
	secret := &repository.Team{Visibility: model.VisibilitySecret, PasswordHash: "pw"}

	tests := []struct {
		name     string
		caller   model.Caller
		team     *repository.Team
		password string
		expected Decision
	}{
		{name: "public", caller: user, team: &repository.Team{Visibility: model.VisibilityPublic}, expected: Allowed},
		{name: "private for user", caller: user, team: &repository.Team{Visibility: model.VisibilityPrivate}, expected: DeniedPrivate},
		{name: "private for admin", caller: admin, team: &repository.Team{Visibility: model.VisibilityPrivate}, expected: Allowed},
		{name: "secret right password", caller: user, team: secret, password: "pw", expected: Allowed},
		{name: "secret wrong password", caller: user, team: secret, password: "nope", expected: DeniedPassword},
		{name: "secret blank password", caller: user, team: secret, expected: DeniedPassword},
		{name: "secret blank hash never matches blank password", caller: user, team: &repository.Team{Visibility: model.VisibilitySecret}, expected: DeniedPassword},
		{name: "admin still needs the password", caller: admin, team: secret, password: "nope", expected: DeniedPassword},
		{name: "expired wins over everything", caller: admin, team: &repository.Team{Visibility: model.VisibilityPrivate, ExpiresAt: &past}, expected: DeniedExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanJoin(tt.caller, tt.team, tt.password, plainVerifier{}, now))
		})
	}
}

func TestListableVisibilities(t *testing.T) {
	user := model.Caller{UserID: "u1"}
	admin := model.Caller{UserID: "a", IsAdmin: true}

	tests := []struct {
		name      string
		caller    model.Caller
		requested model.Visibility
		expected  []model.Visibility
		ok        bool
	}{
		{name: "user default", caller: user, expected: []model.Visibility{model.VisibilityPublic, model.VisibilitySecret}, ok: true},
		{name: "user asks secret", caller: user, requested: model.VisibilitySecret, expected: []model.Visibility{model.VisibilitySecret}, ok: true},
		{name: "user asks private", caller: user, requested: model.VisibilityPrivate},
		{name: "admin default sees all", caller: admin, ok: true},
		{name: "admin asks private", caller: admin, requested: model.VisibilityPrivate, expected: []model.Visibility{model.VisibilityPrivate}, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ListableVisibilities(tt.caller, tt.requested)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
