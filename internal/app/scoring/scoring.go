// Package scoring computes the adherence score of a logged meal.
//
// Two modes never mix: the checklist heuristic (Mode A) works offline from
// what the user ticked, while an external photo analysis (Mode B) is taken
// as authoritative when present.
package scoring

import (
	"math"
	"strings"

	"github.com/plano-ai/plano/internal/domain"
)

const (
	// ExtraPenalty is subtracted per unplanned extra item.
	ExtraPenalty = 10
	// PhotoBonus is added when at least one photo is attached.
	PhotoBonus = 5

	MaxScore = 100
)

// ChecklistInput is what the user reported for one meal in Mode A.
type ChecklistInput struct {
	PlannedItems int
	CheckedItems int
	// Extras is free text; each comma-separated non-blank segment counts once.
	Extras string
	Photos int
}

// Input selects the scoring mode: Analysis wins when set.
type Input struct {
	Checklist ChecklistInput
	Analysis  *domain.MealAnalysis
}

// Score dispatches to FromAnalysis or Checklist.
func Score(in Input) int {
	if in.Analysis != nil {
		return FromAnalysis(*in.Analysis)
	}
	return Checklist(in.Checklist)
}

// Checklist scores a meal from checked items, extras and photo evidence.
// 3 planned, 2 checked, two extras and no photo gives round(66.67-20) = 47.
func Checklist(in ChecklistInput) int {
	planned := max(in.PlannedItems, 0)
	checked := min(max(in.CheckedItems, 0), planned)

	base := float64(MaxScore)
	if planned > 0 {
		base = float64(checked) / float64(planned) * MaxScore
	}

	score := math.Max(0, base-float64(CountExtras(in.Extras)*ExtraPenalty))
	if in.Photos > 0 {
		score = math.Min(MaxScore, score+PhotoBonus)
	}
	return int(math.Round(score))
}

// FromAnalysis uses the analysis percentage, clamped to [0,100].
// NaN and ±Inf score 0.
func FromAnalysis(a domain.MealAnalysis) int {
	p := a.Percent
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return int(math.Round(math.Min(MaxScore, math.Max(0, p))))
}

// CountExtras counts the non-blank comma-separated segments of s.
func CountExtras(s string) int {
	n := 0
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

// Tier is the user-facing verdict shown after logging.
type Tier struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Feedback returns the verdict for a score.
func Feedback(score int) Tier {
	switch {
	case score >= 90:
		return Tier{"Excelente!", "Você seguiu o plano perfeitamente. Continue assim!"}
	case score >= 70:
		return Tier{"Muito Bem!", "Boa escolha, mas pequenos ajustes podem melhorar ainda mais."}
	default:
		return Tier{"Atenção", "Essa refeição fugiu um pouco do plano. Não desanime, a próxima será melhor!"}
	}
}
