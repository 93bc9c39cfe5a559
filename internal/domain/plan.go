// Package domain holds the pure data model shared by every layer of plano.
// Nothing in this package performs I/O.
package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ─── Weekly Plan ────────────────────────────────────────────────────────────

// DayKey is one of the seven canonical day keys of a WeekPlan.
type DayKey string

const (
	Sunday    DayKey = "sunday"
	Monday    DayKey = "monday"
	Tuesday   DayKey = "tuesday"
	Wednesday DayKey = "wednesday"
	Thursday  DayKey = "thursday"
	Friday    DayKey = "friday"
	Saturday  DayKey = "saturday"
)

// DayKeys lists the canonical keys in time.Weekday order (Sunday first).
var DayKeys = []DayKey{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// DayKeyFor returns the canonical key for a weekday.
func DayKeyFor(d time.Weekday) DayKey {
	return DayKeys[int(d)%len(DayKeys)]
}

// ParseDayKey accepts a canonical key in any case.
func ParseDayKey(s string) (DayKey, bool) {
	k := DayKey(strings.ToLower(strings.TrimSpace(s)))
	for _, d := range DayKeys {
		if d == k {
			return d, true
		}
	}
	return "", false
}

// MealItem is a single planned item (or option group) of a meal.
type MealItem struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Meal is one scheduled meal of a day. Time is "HH:MM" by convention only.
type Meal struct {
	ID    string     `json:"id" yaml:"id"`
	Name  string     `json:"name" yaml:"name"`
	Time  string     `json:"time" yaml:"time"`
	Items []MealItem `json:"items" yaml:"items"`
}

// Clone returns a deep copy of the meal.
func (m Meal) Clone() Meal {
	out := m
	out.Items = append([]MealItem(nil), m.Items...)
	if out.Items == nil {
		out.Items = []MealItem{}
	}
	return out
}

// DayPlan is the list of meals planned for one day.
type DayPlan struct {
	Day   DayKey `json:"day" yaml:"day"`
	Meals []Meal `json:"meals" yaml:"meals"`
}

// Clone returns a deep copy of the day plan.
func (d DayPlan) Clone() DayPlan {
	out := DayPlan{Day: d.Day, Meals: make([]Meal, len(d.Meals))}
	for i, m := range d.Meals {
		out.Meals[i] = m.Clone()
	}
	return out
}

// FindMeal returns the meal with the given id.
func (d DayPlan) FindMeal(id string) (Meal, bool) {
	for _, m := range d.Meals {
		if m.ID == id {
			return m, true
		}
	}
	return Meal{}, false
}

// WeekPlan maps canonical day keys to day plans.
// A WeekPlan is either empty or holds all seven keys.
type WeekPlan map[DayKey]DayPlan

// IsEmpty reports whether no plan is configured.
func (w WeekPlan) IsEmpty() bool { return len(w) == 0 }

// IsComplete reports whether all seven canonical keys are present.
func (w WeekPlan) IsComplete() bool {
	for _, d := range DayKeys {
		if _, ok := w[d]; !ok {
			return false
		}
	}
	return true
}

// Clone returns a deep copy, so callers can edit a draft without aliasing.
func (w WeekPlan) Clone() WeekPlan {
	if w == nil {
		return WeekPlan{}
	}
	out := make(WeekPlan, len(w))
	for k, d := range w {
		out[k] = d.Clone()
	}
	return out
}

// WithDay returns a copy of the plan with one day replaced.
// Missing days are filled with empty meal lists so the result stays complete.
func (w WeekPlan) WithDay(day DayKey, plan DayPlan) WeekPlan {
	out := w.Clone()
	for _, d := range DayKeys {
		if _, ok := out[d]; !ok {
			out[d] = DayPlan{Day: d, Meals: []Meal{}}
		}
	}
	plan = plan.Clone()
	plan.Day = day
	out[day] = plan
	return out
}

// ─── External Diet Plan (interpretation service output) ─────────────────────

// RawDietPlan is the loosely structured plan returned by the interpretation
// service: {"diet": {"Seg": [{time, name, options}], ...}}.
type RawDietPlan struct {
	Diet map[string][]RawMeal `json:"diet"`
}

// RawMeal is one meal entry of a RawDietPlan.
type RawMeal struct {
	Time    string     `json:"time"`
	Name    string     `json:"name"`
	Options [][]string `json:"options"`
}

// UnmarshalJSON decodes leniently: a missing, null or non-object "diet"
// yields an empty plan, and day values that are not lists are dropped.
func (p *RawDietPlan) UnmarshalJSON(data []byte) error {
	p.Diet = map[string][]RawMeal{}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		// Not an object at all: nothing usable, but not an error either.
		return nil
	}

	var days map[string]json.RawMessage
	if err := json.Unmarshal(top["diet"], &days); err != nil {
		return nil
	}

	for label, raw := range days {
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			continue
		}
		meals := make([]RawMeal, 0, len(entries))
		for _, e := range entries {
			var m RawMeal
			_ = json.Unmarshal(e, &m)
			meals = append(meals, m)
		}
		p.Diet[label] = meals
	}
	return nil
}

// UnmarshalJSON decodes a meal entry, degrading malformed fields to zero values.
func (m *RawMeal) UnmarshalJSON(data []byte) error {
	*m = RawMeal{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	m.Time = looseString(fields["time"])
	m.Name = looseString(fields["name"])

	var groups []json.RawMessage
	if err := json.Unmarshal(fields["options"], &groups); err != nil {
		return nil
	}
	for _, g := range groups {
		var fragments []json.RawMessage
		if err := json.Unmarshal(g, &fragments); err != nil {
			// A bare string is a single-fragment group.
			if s := looseString(g); s != "" {
				m.Options = append(m.Options, []string{s})
			}
			continue
		}
		group := make([]string, 0, len(fragments))
		for _, f := range fragments {
			group = append(group, looseString(f))
		}
		m.Options = append(m.Options, group)
	}
	return nil
}

// looseString returns a JSON string or number as text, anything else as "".
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// ParseHour extracts the hour from an "HH:MM" string.
// Returns false when the value carries no usable hour.
func ParseHour(hhmm string) (int, bool) {
	head, _, _ := strings.Cut(strings.TrimSpace(hhmm), ":")
	h, err := strconv.Atoi(strings.TrimSpace(head))
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}
