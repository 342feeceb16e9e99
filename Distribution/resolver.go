package Distribution

import (
	"errors"
	"fmt"
	"sort"

	"Beacon/Models"

	"gorm.io/gorm"
)

var (
	// ErrInvalidInput covers an unknown distribution type or an empty
	// region/store list for the modes that require one.
	ErrInvalidInput = errors.New("invalid distribution input")
	// ErrNoTargets means resolution produced zero stores. Task creation must
	// abort rather than create a task with no assignments.
	ErrNoTargets = errors.New("distribution resolved to no target stores")
)

// Resolve computes the concrete set of store IDs a task fans out to. The
// result is deduplicated and sorted, so identical inputs over unchanged store
// data always yield the same slice.
//
// SPECIFIC_STORES is deliberately not validated against the stores table
// here; nonexistent IDs surface as foreign-key failures at assignment insert.
func Resolve(db *gorm.DB, companyID uint, distributionType string, regionIDs, storeIDs []uint) ([]uint, error) {
	var ids []uint

	switch distributionType {
	case Models.DistributionAllStores:
		if err := db.Model(&Models.Store{}).
			Where("company_id = ? AND is_active = ?", companyID, true).
			Pluck("id", &ids).Error; err != nil {
			return nil, err
		}

	case Models.DistributionByRegion:
		if len(regionIDs) == 0 {
			return nil, fmt.Errorf("%w: region list is empty", ErrInvalidInput)
		}
		if err := db.Model(&Models.Store{}).
			Where("company_id = ? AND is_active = ? AND region_id IN ?", companyID, true, regionIDs).
			Pluck("id", &ids).Error; err != nil {
			return nil, err
		}

	case Models.DistributionSpecificStores:
		if len(storeIDs) == 0 {
			return nil, fmt.Errorf("%w: store list is empty", ErrInvalidInput)
		}
		ids = storeIDs

	default:
		return nil, fmt.Errorf("%w: unknown distribution type %q", ErrInvalidInput, distributionType)
	}

	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrNoTargets
	}
	return ids, nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
