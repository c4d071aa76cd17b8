package auth

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/infra/fs"
	log "github.com/CrypTokGlobal/tickertrendingbot/internal/infra/log"
)

const rosterFile = "roster.json"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotAnAdmin   = errors.New("not an admin")
	ErrUserNotFound = errors.New("user not found")
)

// Roster tracks the bot owner and the admin set. The owner is assigned
// to the first user who initializes the bot and is implicitly an admin.
type Roster struct {
	mu    sync.RWMutex
	data  rosterData
	store *fs.Store // nil keeps the roster in-memory only
}

type rosterData struct {
	OwnerID        int64    `json:"owner_id"`
	AdminIDs       []int64  `json:"user_ids"`
	AdminUsernames []string `json:"usernames"`
}

func NewRoster(store *fs.Store) *Roster {
	return &Roster{store: store}
}

// Load reads the persisted roster. Malformed content is reported and
// the roster starts empty, matching the original's reset-on-bad-JSON
// behavior.
func (r *Roster) Load() error {
	if r.store == nil {
		return nil
	}

	var data rosterData
	if err := r.store.LoadJSON(rosterFile, &data); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		log.LogWarn("Roster file is unreadable, resetting to defaults", zap.Error(err))
		return nil
	}

	r.mu.Lock()
	r.data = data
	r.mu.Unlock()

	log.LogInfo("Loaded roster",
		zap.Int64("ownerID", data.OwnerID),
		zap.Int("admins", len(data.AdminIDs)+len(data.AdminUsernames)))
	return nil
}

// persist must be called with the lock held.
func (r *Roster) persist() {
	if r.store == nil {
		return
	}
	if err := r.store.SaveJSON(rosterFile, r.data); err != nil {
		log.LogWarn("Failed to persist roster", zap.Error(err))
	}
}

// InitializeOwner assigns the owner to userID if no owner is set yet.
// It is an idempotent no-op once an owner exists and reports whether
// this call claimed ownership.
func (r *Roster) InitializeOwner(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.data.OwnerID != 0 || userID == 0 {
		return false
	}

	r.data.OwnerID = userID
	r.persist()
	log.LogSuccess("Owner assigned", zap.Int64("userID", userID))
	return true
}

func (r *Roster) OwnerID() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.OwnerID
}

func (r *Roster) IsOwner(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.OwnerID != 0 && userID == r.data.OwnerID
}

// IsAdmin checks the admin set by ID or username (case-insensitive).
func (r *Roster) IsAdmin(userID int64, username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isAdminLocked(userID, username)
}

func (r *Roster) isAdminLocked(userID int64, username string) bool {
	for _, id := range r.data.AdminIDs {
		if id == userID {
			return true
		}
	}
	if username != "" {
		username = strings.TrimPrefix(username, "@")
		for _, un := range r.data.AdminUsernames {
			if strings.EqualFold(un, username) {
				return true
			}
		}
	}
	return false
}

// IsAuthorized reports whether the user is the owner or an admin. It is
// consulted before every privileged operation.
func (r *Roster) IsAuthorized(userID int64, username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.data.OwnerID != 0 && userID == r.data.OwnerID {
		return true
	}
	return r.isAdminLocked(userID, username)
}

// GrantAdmin adds target (a numeric ID or an @username) to the admin
// set. Only the owner may grant.
func (r *Roster) GrantAdmin(requesterID int64, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.data.OwnerID == 0 || requesterID != r.data.OwnerID {
		return ErrUnauthorized
	}

	id, username, err := parseTarget(target)
	if err != nil {
		return err
	}

	if id != 0 {
		for _, existing := range r.data.AdminIDs {
			if existing == id {
				return nil // already an admin
			}
		}
		r.data.AdminIDs = append(r.data.AdminIDs, id)
	} else {
		for _, existing := range r.data.AdminUsernames {
			if strings.EqualFold(existing, username) {
				return nil
			}
		}
		r.data.AdminUsernames = append(r.data.AdminUsernames, username)
	}

	r.persist()
	log.LogInfo("Admin granted", zap.String("target", target), zap.Int64("by", requesterID))
	return nil
}

// RevokeAdmin removes target from the admin set. Only the owner may
// revoke; revoking a non-admin returns ErrNotAnAdmin.
func (r *Roster) RevokeAdmin(requesterID int64, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.data.OwnerID == 0 || requesterID != r.data.OwnerID {
		return ErrUnauthorized
	}

	id, username, err := parseTarget(target)
	if err != nil {
		return err
	}

	if id != 0 {
		for i, existing := range r.data.AdminIDs {
			if existing == id {
				r.data.AdminIDs = append(r.data.AdminIDs[:i], r.data.AdminIDs[i+1:]...)
				r.persist()
				log.LogInfo("Admin revoked", zap.String("target", target), zap.Int64("by", requesterID))
				return nil
			}
		}
	} else {
		for i, existing := range r.data.AdminUsernames {
			if strings.EqualFold(existing, username) {
				r.data.AdminUsernames = append(r.data.AdminUsernames[:i], r.data.AdminUsernames[i+1:]...)
				r.persist()
				log.LogInfo("Admin revoked", zap.String("target", target), zap.Int64("by", requesterID))
				return nil
			}
		}
	}
	return ErrNotAnAdmin
}

// EmergencyResetAdmins clears the admin set. Owner only; the owner
// itself stays in place.
func (r *Roster) EmergencyResetAdmins(requesterID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.data.OwnerID == 0 || requesterID != r.data.OwnerID {
		return ErrUnauthorized
	}

	r.data.AdminIDs = nil
	r.data.AdminUsernames = nil
	r.persist()
	log.LogWarn("Admin set cleared by emergency reset", zap.Int64("by", requesterID))
	return nil
}

// AdminCount returns the number of admin entries (ids + usernames).
func (r *Roster) AdminCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data.AdminIDs) + len(r.data.AdminUsernames)
}

// parseTarget splits an admin target into a numeric ID or a username.
// "@name" and bare names are usernames; digit strings are IDs.
func parseTarget(target string) (int64, string, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return 0, "", ErrUserNotFound
	}

	if strings.HasPrefix(target, "@") {
		username := strings.TrimPrefix(target, "@")
		if username == "" {
			return 0, "", ErrUserNotFound
		}
		return 0, username, nil
	}

	// Digit strings beyond the int64 range fall through to the
	// username form rather than wrapping around.
	if id, err := strconv.ParseInt(target, 10, 64); err == nil && id > 0 {
		return id, "", nil
	}

	return 0, target, nil
}
