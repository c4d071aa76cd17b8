package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/infra/fs"
)

func TestInitializeOwner(t *testing.T) {
	r := NewRoster(nil)

	assert.True(t, r.InitializeOwner(42))
	assert.Equal(t, int64(42), r.OwnerID())

	// second claim is a no-op
	assert.False(t, r.InitializeOwner(99))
	assert.Equal(t, int64(42), r.OwnerID())

	// zero never claims
	r2 := NewRoster(nil)
	assert.False(t, r2.InitializeOwner(0))
	assert.Equal(t, int64(0), r2.OwnerID())
}

func TestOwnerIsImplicitlyAuthorized(t *testing.T) {
	r := NewRoster(nil)
	r.InitializeOwner(42)

	assert.True(t, r.IsOwner(42))
	assert.True(t, r.IsAuthorized(42, ""))
	assert.False(t, r.IsAdmin(42, "")) // owner is not in the admin set itself
	assert.False(t, r.IsAuthorized(7, "someone"))
}

func TestGrantAndRevokeByID(t *testing.T) {
	r := NewRoster(nil)
	r.InitializeOwner(42)

	require.NoError(t, r.GrantAdmin(42, "1001"))
	assert.True(t, r.IsAuthorized(1001, ""))
	assert.Equal(t, 1, r.AdminCount())

	// granting twice is a no-op
	require.NoError(t, r.GrantAdmin(42, "1001"))
	assert.Equal(t, 1, r.AdminCount())

	require.NoError(t, r.RevokeAdmin(42, "1001"))
	assert.False(t, r.IsAuthorized(1001, ""))

	assert.ErrorIs(t, r.RevokeAdmin(42, "1001"), ErrNotAnAdmin)
}

func TestGrantAndRevokeByUsername(t *testing.T) {
	r := NewRoster(nil)
	r.InitializeOwner(42)

	require.NoError(t, r.GrantAdmin(42, "@Satoshi"))

	// username match is case-insensitive, with or without @
	assert.True(t, r.IsAuthorized(7, "satoshi"))
	assert.True(t, r.IsAuthorized(7, "@SATOSHI"))
	assert.False(t, r.IsAuthorized(7, "finney"))

	require.NoError(t, r.RevokeAdmin(42, "satoshi"))
	assert.False(t, r.IsAuthorized(7, "satoshi"))
}

func TestGrantOverlongNumericTargetIsUsername(t *testing.T) {
	r := NewRoster(nil)
	r.InitializeOwner(42)

	// 25 digits does not fit an int64; the target must be treated as
	// a (strange) username instead of a wrapped-around ID
	target := "1234567890123456789012345"
	require.NoError(t, r.GrantAdmin(42, target))

	assert.True(t, r.IsAuthorized(7, target))
	assert.Equal(t, 1, r.AdminCount())

	require.NoError(t, r.RevokeAdmin(42, target))
	assert.False(t, r.IsAuthorized(7, target))
}

func TestOnlyOwnerManagesAdmins(t *testing.T) {
	r := NewRoster(nil)
	r.InitializeOwner(42)
	require.NoError(t, r.GrantAdmin(42, "1001"))

	// an admin cannot grant or revoke
	assert.ErrorIs(t, r.GrantAdmin(1001, "2002"), ErrUnauthorized)
	assert.ErrorIs(t, r.RevokeAdmin(1001, "1001"), ErrUnauthorized)
	assert.ErrorIs(t, r.EmergencyResetAdmins(1001), ErrUnauthorized)

	// no owner at all means nobody manages
	empty := NewRoster(nil)
	assert.ErrorIs(t, empty.GrantAdmin(42, "1001"), ErrUnauthorized)
}

func TestEmergencyResetAdmins(t *testing.T) {
	r := NewRoster(nil)
	r.InitializeOwner(42)
	require.NoError(t, r.GrantAdmin(42, "1001"))
	require.NoError(t, r.GrantAdmin(42, "@satoshi"))
	require.Equal(t, 2, r.AdminCount())

	require.NoError(t, r.EmergencyResetAdmins(42))
	assert.Equal(t, 0, r.AdminCount())
	assert.False(t, r.IsAuthorized(1001, ""))

	// owner survives the reset
	assert.True(t, r.IsOwner(42))
}

func TestRosterPersistence(t *testing.T) {
	dir := t.TempDir()

	r := NewRoster(fs.NewStore(dir))
	r.InitializeOwner(42)
	require.NoError(t, r.GrantAdmin(42, "1001"))
	require.NoError(t, r.GrantAdmin(42, "@satoshi"))

	reloaded := NewRoster(fs.NewStore(dir))
	require.NoError(t, reloaded.Load())

	assert.Equal(t, int64(42), reloaded.OwnerID())
	assert.True(t, reloaded.IsAuthorized(1001, ""))
	assert.True(t, reloaded.IsAuthorized(7, "satoshi"))
}

func TestRosterMalformedFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "roster.json"), []byte("][garbage"), 0o644))

	r := NewRoster(fs.NewStore(dir))
	require.NoError(t, r.Load())
	assert.Equal(t, int64(0), r.OwnerID())
	assert.Equal(t, 0, r.AdminCount())
}
