// Package planner turns interpreted diet plans into canonical weekly plans and
// owns the current plan state.
package planner

import (
	"fmt"
	"strings"

	"github.com/plano-ai/plano/internal/domain"
)

// ItemSeparator joins the fragments of one option group into a single item name.
const ItemSeparator = " • "

// DefaultMealName is used when an entry has neither a name nor a time.
const DefaultMealName = "Refeição"

// dayLabels maps each canonical day to the labels the interpretation
// service uses for it. The first label is the primary one.
var dayLabels = map[domain.DayKey][]string{
	domain.Monday:    {"Seg"},
	domain.Tuesday:   {"Ter"},
	domain.Wednesday: {"Qua"},
	domain.Thursday:  {"Qui"},
	domain.Friday:    {"Sex"},
	domain.Saturday:  {"Sab", "Sáb"},
	domain.Sunday:    {"Dom"},
}

// DayLabel returns the external label of a canonical day ("Seg" for monday).
func DayLabel(day domain.DayKey) string {
	if labels := dayLabels[day]; len(labels) > 0 {
		return labels[0]
	}
	return string(day)
}

// Normalize converts an interpreted plan into a complete WeekPlan.
// It never fails: missing days become empty meal lists and malformed
// entries fall back to placeholder values.
func Normalize(raw domain.RawDietPlan) domain.WeekPlan {
	plan := make(domain.WeekPlan, len(domain.DayKeys))

	for _, day := range domain.DayKeys {
		entries := lookupDay(raw.Diet, day)
		meals := make([]domain.Meal, 0, len(entries))
		for mealIndex, entry := range entries {
			meals = append(meals, normalizeMeal(day, mealIndex, entry))
		}
		plan[day] = domain.DayPlan{Day: day, Meals: meals}
	}
	return plan
}

func lookupDay(diet map[string][]domain.RawMeal, day domain.DayKey) []domain.RawMeal {
	for _, label := range dayLabels[day] {
		if entries, ok := diet[label]; ok {
			return entries
		}
	}
	return nil
}

func normalizeMeal(day domain.DayKey, mealIndex int, entry domain.RawMeal) domain.Meal {
	name := entry.Name
	if name == "" {
		name = entry.Time
	}
	if name == "" {
		name = DefaultMealName
	}

	mealID := fmt.Sprintf("%s-meal-%d", day, mealIndex)
	items := make([]domain.MealItem, 0, len(entry.Options))
	for optionIndex, group := range entry.Options {
		items = append(items, domain.MealItem{
			ID:   fmt.Sprintf("%s-option-%d", mealID, optionIndex),
			Name: JoinItemText(group),
		})
	}

	return domain.Meal{
		ID:    mealID,
		Name:  name,
		Time:  entry.Time,
		Items: items,
	}
}

// JoinItemText joins the non-empty fragments of an option group.
func JoinItemText(fragments []string) string {
	kept := make([]string, 0, len(fragments))
	for _, f := range fragments {
		if f != "" {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, ItemSeparator)
}

// SplitItemText reverses JoinItemText: split on the separator's bullet,
// trim, and drop empty parts.
func SplitItemText(name string) []string {
	bullet := strings.TrimSpace(ItemSeparator)
	parts := strings.Split(name, bullet)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MultilineItemText renders a joined item name one fragment per line.
func MultilineItemText(name string) string {
	return strings.Join(SplitItemText(name), "\n")
}
