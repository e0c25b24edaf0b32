package auction

import (
	"slices"

	"github.com/draftroom/auction-backend/internal/models"
	"github.com/shopspring/decimal"
)

// autoAssignSlot picks the open slot a newly won school should fill: the
// most restrictive one, i.e. the slot whose position admits the fewest
// still-available schools. A position slot always beats a flex slot that
// way. Ties break by lowest slot index. ok is false when no open slot can
// legally hold the school.
func autoAssignSlot(s *State, teamID string, school *models.AuctionSchool) (*models.RosterSlot, bool) {
	var best *models.RosterSlot
	bestCount := -1
	for _, sl := range s.Slots[teamID] {
		if sl.Filled() || !sl.Admits(school.Position) {
			continue
		}
		n := s.admissibleCount(sl)
		if best == nil || n < bestCount {
			best, bestCount = sl, n
		}
	}
	return best, best != nil
}

// admissibleCount counts the available schools the slot's position admits.
func (s *State) admissibleCount(slot *models.RosterSlot) int {
	n := 0
	for _, sc := range s.Schools {
		if sc.IsAvailable && slot.Admits(sc.Position) {
			n++
		}
	}
	return n
}

// ComputeReplacementValues sets each school's ReplacementVal to its projected
// points above the replacement baseline for its position. The baseline is
// the projected points of the (starters+1)-th best school at that position,
// where starters is the number of dedicated (non-flex) roster slots across
// all teams admitting it. Positions with fewer schools than starters use a
// zero baseline.
func ComputeReplacementValues(schools []*models.AuctionSchool, starters map[string]int) {
	byPosition := make(map[string][]*models.AuctionSchool)
	for _, sc := range schools {
		byPosition[sc.Position] = append(byPosition[sc.Position], sc)
	}
	for pos, group := range byPosition {
		slices.SortFunc(group, func(a, b *models.AuctionSchool) int {
			return b.ProjectedPoints.Cmp(a.ProjectedPoints)
		})
		baseline := decimal.Zero
		if n := starters[pos]; n >= 0 && n < len(group) {
			baseline = group[n].ProjectedPoints
		}
		for _, sc := range group {
			sc.ReplacementVal = sc.ProjectedPoints.Sub(baseline)
		}
	}
}
