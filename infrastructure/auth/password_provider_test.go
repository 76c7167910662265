package auth

import (
	"context"
	"testing"

	"courtside/domain/entities"
	"courtside/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testParams keeps hashing fast in tests
var testParams = Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashPassword_RoundTrip(t *testing.T) {
	t.Parallel()

	encoded, err := HashPassword("shuttlecock", testParams)
	require.NoError(t, err)
	assert.Contains(t, encoded, "$argon2id$v=19$m=1024,t=1,p=1$")

	ok, err := CheckPassword("shuttlecock", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword("racket", encoded)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := HashPassword("shuttlecock", testParams)
	require.NoError(t, err)
	assert.NotEqual(t, encoded, other, "salts differ")
}

func TestCheckPassword_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		encoded string
	}{
		{name: "empty", encoded: ""},
		{name: "wrong algorithm", encoded: "$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5"},
		{name: "wrong version", encoded: "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$a2V5"},
		{name: "bad params", encoded: "$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5"},
		{name: "bad salt", encoded: "$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := CheckPassword("secret", tt.encoded)
			assert.ErrorIs(t, err, errMalformedHash)
		})
	}
}

func TestPasswordAuthProvider_Verify(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewStore()

	hash, err := HashPassword("open-sesame", testParams)
	require.NoError(t, err)

	require.NoError(t, store.UserRepository().Create(ctx, &entities.User{
		ID: "admin", DisplayName: "admin", Role: entities.RoleAdmin, Active: true, CredentialRef: hash,
	}))
	require.NoError(t, store.UserRepository().Create(ctx, &entities.User{
		ID: "gone", DisplayName: "gone", Role: entities.RolePlayer, Active: true, CredentialRef: hash,
	}))
	require.NoError(t, store.UserRepository().SetActive(ctx, "gone", false))
	require.NoError(t, store.UserRepository().Create(ctx, &entities.User{
		ID: "nohash", DisplayName: "nohash", Role: entities.RolePlayer, Active: true,
	}))

	provider := NewPasswordAuthProvider(store.UserRepository())

	tests := []struct {
		name       string
		credential entities.Credential
		wantID     string
		wantErr    error
	}{
		{name: "valid", credential: entities.Credential{UserID: "admin", Secret: "open-sesame"}, wantID: "admin"},
		{name: "wrong secret", credential: entities.Credential{UserID: "admin", Secret: "guess"}, wantErr: entities.ErrPermissionDenied},
		{name: "unknown user", credential: entities.Credential{UserID: "nobody", Secret: "open-sesame"}, wantErr: entities.ErrPermissionDenied},
		{name: "no stored hash", credential: entities.Credential{UserID: "nohash", Secret: ""}, wantErr: entities.ErrPermissionDenied},
		{name: "deactivated", credential: entities.Credential{UserID: "gone", Secret: "open-sesame"}, wantErr: entities.ErrUserInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, err := provider.Verify(ctx, tt.credential)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, entities.ErrPermissionDenied, "every rejection is a denial")
				assert.Empty(t, id)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}
}
