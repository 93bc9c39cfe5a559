package engagement

import (
	"time"

	"github.com/plano-ai/plano/internal/domain"
)

// Unlock thresholds.
const (
	StreakBadgeDays   = 3
	MasterBadgePoints = 1000
)

// BadgeInput is the state a new log is judged against.
type BadgeInput struct {
	// PriorLogs is the history length before the new log was added.
	PriorLogs int
	// Stats are the stats after the new log was applied.
	Stats domain.UserStats
	// PerfectDay is true when every planned meal of the log's day has a
	// score-100 log on that day. Only set when the rule is enabled.
	PerfectDay bool
}

// badgeRule pairs a catalog entry with its unlock predicate.
type badgeRule struct {
	badge     domain.Badge
	predicate func(BadgeInput) bool
}

// catalog is evaluated in order: first-meal, master, streak-3, perfect-day.
var catalog = []badgeRule{
	{
		badge: domain.Badge{
			ID: domain.BadgeFirstMeal, Name: "Primeiro Passo",
			Description: "Registrou a primeira refeição", Icon: "🏁",
		},
		predicate: func(in BadgeInput) bool { return in.PriorLogs == 0 },
	},
	{
		badge: domain.Badge{
			ID: domain.BadgeMaster, Name: "Mestre da Dieta",
			Description: "Acumulou 1000 pontos", Icon: "👑",
		},
		predicate: func(in BadgeInput) bool { return in.Stats.TotalPoints >= MasterBadgePoints },
	},
	{
		badge: domain.Badge{
			ID: domain.BadgeStreak3, Name: "Consistência",
			Description: "Manteve o plano por 3 dias seguidos", Icon: "🔥",
		},
		predicate: func(in BadgeInput) bool { return in.Stats.CurrentStreak >= StreakBadgeDays },
	},
	{
		badge: domain.Badge{
			ID: domain.BadgePerfectDay, Name: "Dia Perfeito",
			Description: "100% de aderência em todas as refeições de um dia", Icon: "🌟",
		},
		predicate: func(in BadgeInput) bool { return in.PerfectDay },
	},
}

// displayOrder is the order badges are stored and shown in.
var displayOrder = []domain.BadgeID{
	domain.BadgeFirstMeal, domain.BadgePerfectDay, domain.BadgeStreak3, domain.BadgeMaster,
}

// DefaultBadges returns the fully locked catalog.
func DefaultBadges() []domain.Badge {
	out := make([]domain.Badge, 0, len(displayOrder))
	for _, id := range displayOrder {
		for _, r := range catalog {
			if r.badge.ID == id {
				out = append(out, r.badge)
			}
		}
	}
	return out
}

// MergeCatalog lays stored badges over the catalog: unlock state comes from
// stored, everything else from the catalog. Unknown stored ids are dropped.
func MergeCatalog(stored []domain.Badge) []domain.Badge {
	byID := make(map[domain.BadgeID]domain.Badge, len(stored))
	for _, b := range stored {
		byID[b.ID] = b
	}
	out := DefaultBadges()
	for i, b := range out {
		if s, ok := byID[b.ID]; ok && s.Unlocked {
			out[i].Unlocked = true
			out[i].UnlockedAt = s.UnlockedAt
		}
	}
	return out
}

// EvaluateBadges returns the updated badge list and the badges unlocked by
// this evaluation. Badges already unlocked are never re-checked or relocked.
func EvaluateBadges(badges []domain.Badge, in BadgeInput, now time.Time) ([]domain.Badge, []domain.Badge) {
	out := MergeCatalog(badges)
	index := make(map[domain.BadgeID]int, len(out))
	for i, b := range out {
		index[b.ID] = i
	}

	var unlocked []domain.Badge
	for _, r := range catalog {
		i := index[r.badge.ID]
		if out[i].Unlocked || !r.predicate(in) {
			continue
		}
		at := now
		out[i].Unlocked = true
		out[i].UnlockedAt = &at
		unlocked = append(unlocked, out[i])
	}
	return out, unlocked
}
