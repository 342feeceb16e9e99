package Roles

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"Beacon/Models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const cacheTTL = 10 * time.Minute

// Service loads per-tenant role hierarchies and answers the two verification
// policy questions. Redis caching is optional: with RDB nil (or Redis down)
// every call reads through to the database.
type Service struct {
	DB  *gorm.DB
	RDB *redis.Client
}

func NewService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{DB: db, RDB: rdb}
}

func cacheKey(companyID uint) string {
	return fmt.Sprintf("roles:%d", companyID)
}

// ActiveRoles returns the active roles of one company, cached per tenant.
func (s *Service) ActiveRoles(ctx context.Context, companyID uint) ([]Models.Role, error) {
	if s.RDB != nil {
		cached, err := s.RDB.Get(ctx, cacheKey(companyID)).Result()
		if err == nil {
			var roles []Models.Role
			if err := json.Unmarshal([]byte(cached), &roles); err == nil {
				return roles, nil
			}
		}
	}

	var roles []Models.Role
	if err := s.DB.WithContext(ctx).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Find(&roles).Error; err != nil {
		return nil, err
	}

	if s.RDB != nil {
		if encoded, err := json.Marshal(roles); err == nil {
			if err := s.RDB.Set(ctx, cacheKey(companyID), encoded, cacheTTL).Err(); err != nil {
				log.Printf("role cache write failed for company %d: %v", companyID, err)
			}
		}
	}
	return roles, nil
}

// Invalidate drops the cached hierarchy for one company. Called after any
// role create/update/deactivate.
func (s *Service) Invalidate(ctx context.Context, companyID uint) {
	if s.RDB == nil {
		return
	}
	if err := s.RDB.Del(ctx, cacheKey(companyID)).Err(); err != nil {
		log.Printf("role cache invalidation failed for company %d: %v", companyID, err)
	}
}

// RequiresVerification reports whether work completed by the given role needs
// sign-off. A tenant with no active roles fails open: completion is never
// blocked by missing hierarchy configuration. Otherwise everyone strictly
// below the top active level needs verification; the top self-verifies.
func (s *Service) RequiresVerification(ctx context.Context, companyID uint, completerRoleKey string) (bool, error) {
	roles, err := s.ActiveRoles(ctx, companyID)
	if err != nil {
		return false, err
	}
	return RequiresVerificationFor(roles, completerRoleKey), nil
}

// CanVerify reports whether verifierRoleKey may approve or reject work
// submitted by submitterRoleKey.
func (s *Service) CanVerify(ctx context.Context, companyID uint, verifierRoleKey, submitterRoleKey string) (bool, error) {
	roles, err := s.ActiveRoles(ctx, companyID)
	if err != nil {
		return false, err
	}
	return CanVerifyLevels(LevelOf(roles, verifierRoleKey), LevelOf(roles, submitterRoleKey)), nil
}

// LevelOf resolves a role key to its level. Unknown keys resolve to 0: an
// unrecognized submitter can be verified by anyone with a real role, and an
// unrecognized verifier can verify nothing. That safe default is deliberate.
func LevelOf(roles []Models.Role, key string) int {
	for _, r := range roles {
		if r.Key == key {
			return r.Level
		}
	}
	return 0
}

// MaxLevel returns the highest level among the given roles, 0 when empty.
func MaxLevel(roles []Models.Role) int {
	max := 0
	for _, r := range roles {
		if r.Level > max {
			max = r.Level
		}
	}
	return max
}

// RequiresVerificationFor is the pure form of RequiresVerification over an
// already-loaded hierarchy.
func RequiresVerificationFor(roles []Models.Role, completerRoleKey string) bool {
	if len(roles) == 0 {
		return false
	}
	return LevelOf(roles, completerRoleKey) < MaxLevel(roles)
}

// CanVerifyLevels is the strict ordering rule: a verifier must outrank the
// submitter. Equal levels can never verify each other.
func CanVerifyLevels(verifierLevel, submitterLevel int) bool {
	return verifierLevel > submitterLevel
}
