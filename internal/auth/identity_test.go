package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/teamhub/internal/model"
	"github.com/yakoovad/teamhub/internal/repository"
	"github.com/yakoovad/teamhub/internal/repository/memstore"
)

func TestIdentity_Caller(t *testing.T) {
	TokenSecretKey = testSecretKey

	store, err := memstore.New()
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Users().Upsert(ctx, &repository.User{ID: "admin", Username: "root", Role: repository.RoleAdmin}))
	require.NoError(t, store.Users().Upsert(ctx, &repository.User{ID: "u1", Username: "alice", Role: repository.RoleUser}))

	adminToken, _ := GenerateToken("admin", time.Hour)
	userToken, _ := GenerateToken("u1", time.Hour)
	strangerToken, _ := GenerateToken("ghost", time.Hour)
	expiredToken, _ := GenerateToken("u1", -time.Hour)

	tests := []struct {
		name        string
		token       string
		expected    model.Caller
		expectError bool
	}{
		{name: "admin", token: adminToken, expected: model.Caller{UserID: "admin", IsAdmin: true}},
		{name: "regular user", token: userToken, expected: model.Caller{UserID: "u1"}},
		{name: "unknown user is not admin", token: strangerToken, expected: model.Caller{UserID: "ghost"}},
		{name: "expired token", token: expiredToken, expectError: true},
		{name: "empty token", token: "", expectError: true},
	}

	identity := NewIdentity(store.Users())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller, err := identity.Caller(ctx, tt.token)
			if tt.expectError {
				assert.ErrorIs(t, err, ErrUnauthenticated)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, caller)
		})
	}
}

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(4)

	digest, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", digest)

	tests := []struct {
		name      string
		plaintext string
		digest    string
		expected  bool
	}{
		{name: "match", plaintext: "s3cret", digest: digest, expected: true},
		{name: "mismatch", plaintext: "wrong", digest: digest},
		{name: "blank password", plaintext: "", digest: digest},
		{name: "whitespace password", plaintext: "   ", digest: digest},
		{name: "empty digest", plaintext: "s3cret", digest: ""},
		{name: "garbage digest", plaintext: "s3cret", digest: "not-a-hash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, h.Verify(tt.plaintext, tt.digest))
		})
	}
}
