package engagement

import (
	"math"
	"time"

	"github.com/plano-ai/plano/internal/domain"
)

// DaySummary is the dashboard view of one day.
type DaySummary struct {
	Day      domain.DayKey `json:"day"`
	Planned  int           `json:"planned"`
	Logged   int           `json:"logged"`
	Progress int           `json:"progress"`
	NextMeal *domain.Meal  `json:"nextMeal,omitempty"`
}

// DailySummary counts today's logs against today's plan and picks the next
// meal: the first unlogged meal whose hour is not yet past, or else the
// first unlogged meal. Meals with an unreadable time are only reachable by
// the fallback.
func DailySummary(plan domain.DayPlan, logs []domain.MealLog, now time.Time, loc *time.Location) DaySummary {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	loggedMeals := make(map[string]bool)
	logged := 0
	for _, l := range logs {
		if SameDay(l.Date, now, loc) {
			logged++
			loggedMeals[l.MealID] = true
		}
	}

	s := DaySummary{Day: plan.Day, Planned: len(plan.Meals), Logged: logged}
	if s.Planned > 0 {
		s.Progress = int(math.Round(math.Min(100, float64(logged)/float64(s.Planned)*100)))
	}

	hour := now.Hour()
	for i, m := range plan.Meals {
		if loggedMeals[m.ID] {
			continue
		}
		if h, ok := domain.ParseHour(m.Time); ok && h >= hour {
			s.NextMeal = &plan.Meals[i]
			return s
		}
	}
	for i, m := range plan.Meals {
		if !loggedMeals[m.ID] {
			s.NextMeal = &plan.Meals[i]
			break
		}
	}
	return s
}

// DayScore is one bar of the weekly chart.
type DayScore struct {
	Date  string `json:"date"`
	Label string `json:"label"`
	Score int    `json:"score"`
	Logs  int    `json:"logs"`
}

// weekdayLabels are the short pt-BR weekday names used by the chart.
var weekdayLabels = [...]string{"dom", "seg", "ter", "qua", "qui", "sex", "sáb"}

// WeeklyScores returns the last seven calendar days ending today, oldest
// first, each with the rounded average score of that day's logs.
func WeeklyScores(logs []domain.MealLog, now time.Time, loc *time.Location) []DayScore {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)

	out := make([]DayScore, 7)
	for i := range out {
		day := now.AddDate(0, 0, i-6)
		sum, n := 0, 0
		for _, l := range logs {
			if SameDay(l.Date, day, loc) {
				sum += l.Score
				n++
			}
		}
		avg := 0
		if n > 0 {
			avg = int(math.Round(float64(sum) / float64(n)))
		}
		out[i] = DayScore{
			Date:  day.Format("2006-01-02"),
			Label: weekdayLabels[day.Weekday()],
			Score: avg,
			Logs:  n,
		}
	}
	return out
}
