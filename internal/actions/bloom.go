// internal/actions/bloom.go
package actions

import (
	"fmt"

	"github.com/jason-s-yu/holosync/internal/models"
)

// RejectCause explains why a field unit cannot receive a bloom.
type RejectCause string

const (
	CauseNoMetadata   RejectCause = "card metadata unavailable"
	CauseNameMismatch RejectCause = "name mismatch"
	CauseMissingRank  RejectCause = "missing rank metadata"
	CauseSpotTier     RejectCause = "non-bloomable tier"
	CauseRankMismatch RejectCause = "rank mismatch"
)

// FieldUnit is an on-stage unit together with its catalog entry. Unresolved is set when
// the catalog could not supply the entry, leaving Info empty apart from the template id.
type FieldUnit struct {
	Instance   models.ZoneCardInstance
	Info       models.CardInfo
	Unresolved bool
}

// Rejection records one unit that is not a valid bloom target.
type Rejection struct {
	InstanceID string
	Name       string
	Cause      RejectCause
}

func (r Rejection) String() string {
	name := r.Name
	if name == "" {
		name = "?"
	}
	return fmt.Sprintf("%s (%s): %s", name, r.InstanceID, r.Cause)
}

// BloomTargets splits field into the units bloom may be stacked on and the rest. A target
// must share the bloom card's name and sit exactly one rank below it; the spot tier never
// blooms and never is bloomed onto.
func BloomTargets(bloom models.CardInfo, field []FieldUnit) ([]FieldUnit, []Rejection) {
	var (
		eligible   []FieldUnit
		rejections []Rejection
	)
	for _, u := range field {
		cause := CauseNoMetadata
		if !u.Unresolved {
			cause = bloomCause(bloom, u.Info)
		}
		if cause == "" {
			eligible = append(eligible, u)
			continue
		}
		rejections = append(rejections, Rejection{InstanceID: u.Instance.InstanceID, Name: u.Info.Name, Cause: cause})
	}
	return eligible, rejections
}

func bloomCause(bloom, target models.CardInfo) RejectCause {
	switch {
	case target.Name != bloom.Name:
		return CauseNameMismatch
	case target.Rank == nil || bloom.Rank == nil:
		return CauseMissingRank
	case *target.Rank == models.RankSpot || *bloom.Rank == models.RankSpot:
		return CauseSpotTier
	case *target.Rank != *bloom.Rank-1:
		return CauseRankMismatch
	}
	return ""
}
