package engagement

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/plano-ai/plano/internal/domain"
	"github.com/plano-ai/plano/internal/infra/metrics"
	"github.com/plano-ai/plano/internal/logger"
)

// Store keys owned by the progress service.
const (
	KeyLogs   = "plano-user-logs"
	KeyStats  = "plano-user-stats"
	KeyBadges = "plano-user-badges"
)

// ProgressConfig tunes the progress service.
type ProgressConfig struct {
	// Location defines calendar days for streaks and summaries. Nil means time.Local.
	Location *time.Location

	// PerfectDay enables the perfect-day badge rule. DayPlan must be set too.
	PerfectDay bool

	// DayPlan returns the planned meals of a day, for the perfect-day rule.
	DayPlan func(domain.DayKey) domain.DayPlan
}

// AddResult is the outcome of a successful AddLog.
type AddResult struct {
	Log      domain.MealLog   `json:"log"`
	Stats    domain.UserStats `json:"stats"`
	Unlocked []domain.Badge   `json:"unlocked"`
}

// ProgressService is the only writer of the log history, stats and badges.
// Each mutation persists the three keys together and swaps the in-memory
// state only after the write succeeded.
type ProgressService struct {
	mu       sync.Mutex
	store    domain.KVStore
	notifier domain.Notifier
	cfg      ProgressConfig
	log      *zap.Logger
	state    domain.ProgressState
}

// NewProgressService loads the persisted progress state.
// Missing keys start from defaults; missing stats are rebuilt from the logs.
func NewProgressService(store domain.KVStore, notifier domain.Notifier, cfg ProgressConfig) (*ProgressService, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	p := &ProgressService{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		log:      logger.Named("progress"),
	}
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ProgressService) load() error {
	state := domain.ProgressState{Logs: []domain.MealLog{}, Badges: DefaultBadges()}

	if data, ok, err := p.store.Get(KeyLogs); err != nil {
		return fmt.Errorf("load logs: %w", err)
	} else if ok {
		if err := json.Unmarshal(data, &state.Logs); err != nil {
			return fmt.Errorf("decode logs: %w", err)
		}
	}

	data, ok, err := p.store.Get(KeyStats)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	if ok {
		if err := json.Unmarshal(data, &state.Stats); err != nil {
			return fmt.Errorf("decode stats: %w", err)
		}
	} else {
		state.Stats = RecomputeStats(state.Logs, p.cfg.Location)
	}

	if data, ok, err := p.store.Get(KeyBadges); err != nil {
		return fmt.Errorf("load badges: %w", err)
	} else if ok {
		var stored []domain.Badge
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("decode badges: %w", err)
		}
		state.Badges = MergeCatalog(stored)
	}

	if state.Logs == nil {
		state.Logs = []domain.MealLog{}
	}
	p.state = state
	return nil
}

// AddLog appends an already scored log to the head of the history, updates
// stats, streaks and badges, and persists all three as one unit.
// A log whose id is already in the history is rejected with ErrDuplicateLog.
func (p *ProgressService) AddLog(entry domain.MealLog) (AddResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, l := range p.state.Logs {
		if l.ID == entry.ID {
			metrics.MealLogsRejected.WithLabelValues("duplicate").Inc()
			return AddResult{}, fmt.Errorf("%w: %s", domain.ErrDuplicateLog, entry.ID)
		}
	}

	var prev *time.Time
	if len(p.state.Logs) > 0 {
		d := p.state.Logs[0].Date
		prev = &d
	}

	logs := make([]domain.MealLog, 0, len(p.state.Logs)+1)
	logs = append(logs, entry)
	logs = append(logs, p.state.Logs...)

	stats := p.state.Stats
	stats.TotalPoints += entry.Score
	stats.TotalLogs++
	streak := NextStreak(StreakState{stats.CurrentStreak, stats.BestStreak}, prev, entry.Date, p.cfg.Location)
	stats.CurrentStreak, stats.BestStreak = streak.Current, streak.Best

	input := BadgeInput{PriorLogs: len(p.state.Logs), Stats: stats}
	if p.cfg.PerfectDay && p.cfg.DayPlan != nil {
		day := domain.DayKeyFor(entry.Date.In(p.cfg.Location).Weekday())
		input.PerfectDay = IsPerfectDay(p.cfg.DayPlan(day), logs, entry.Date, p.cfg.Location)
	}
	badges, unlocked := EvaluateBadges(p.state.Badges, input, entry.Date)

	next := domain.ProgressState{Logs: logs, Stats: stats, Badges: badges}
	if err := p.persist(next); err != nil {
		return AddResult{}, err
	}
	p.state = next

	metrics.MealScore.Observe(float64(entry.Score))
	metrics.TotalPoints.Set(float64(stats.TotalPoints))
	metrics.CurrentStreak.Set(float64(stats.CurrentStreak))
	p.log.Info("meal log recorded",
		zap.String("id", entry.ID),
		zap.String("meal", entry.MealID),
		zap.Int("score", entry.Score),
		zap.Int("streak", stats.CurrentStreak),
		zap.Int("points", stats.TotalPoints),
	)

	for _, b := range unlocked {
		metrics.BadgesUnlocked.WithLabelValues(string(b.ID)).Inc()
		p.log.Info("badge unlocked", zap.String("badge", string(b.ID)))
		p.notify(domain.NotifyBadgeUnlocked, "Nova Conquista!", "Você desbloqueou: "+b.Name)
	}

	return AddResult{Log: entry, Stats: stats, Unlocked: unlocked}, nil
}

// ClearData resets logs, stats and badges to their defaults.
func (p *ProgressService) ClearData() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := domain.ProgressState{Logs: []domain.MealLog{}, Badges: DefaultBadges()}
	if err := p.persist(next); err != nil {
		return err
	}
	p.state = next

	metrics.TotalPoints.Set(0)
	metrics.CurrentStreak.Set(0)
	p.log.Info("progress data cleared")
	p.notify(domain.NotifyDataCleared, "Dados limpos", "Seu progresso foi reiniciado.")
	return nil
}

// Snapshot returns a copy of the whole progress state.
func (p *ProgressService) Snapshot() domain.ProgressState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.ProgressState{
		Logs:   slices.Clone(p.state.Logs),
		Stats:  p.state.Stats,
		Badges: slices.Clone(p.state.Badges),
	}
}

// HasLog reports whether a log with the given id is already in the history.
func (p *ProgressService) HasLog(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, l := range p.state.Logs {
		if l.ID == id {
			return true
		}
	}
	return false
}

// Logs returns the history, most recent first.
func (p *ProgressService) Logs() []domain.MealLog {
	return p.Snapshot().Logs
}

// Stats returns the current stats.
func (p *ProgressService) Stats() domain.UserStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Stats
}

// Badges returns the badge catalog with unlock state.
func (p *ProgressService) Badges() []domain.Badge {
	return p.Snapshot().Badges
}

// Location returns the calendar location used for day arithmetic.
func (p *ProgressService) Location() *time.Location {
	return p.cfg.Location
}

func (p *ProgressService) persist(s domain.ProgressState) error {
	logs, err := json.Marshal(s.Logs)
	if err != nil {
		return fmt.Errorf("encode logs: %w", err)
	}
	stats, err := json.Marshal(s.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	badges, err := json.Marshal(s.Badges)
	if err != nil {
		return fmt.Errorf("encode badges: %w", err)
	}
	if err := p.store.SetMany(map[string][]byte{KeyLogs: logs, KeyStats: stats, KeyBadges: badges}); err != nil {
		p.log.Error("persist progress failed", zap.Error(err))
		return fmt.Errorf("%w: persist progress: %v", domain.ErrStore, err)
	}
	return nil
}

func (p *ProgressService) notify(typ domain.NotificationType, title, body string) {
	if p.notifier == nil {
		return
	}
	p.notifier.Notify(domain.Notification{Type: typ, Title: title, Body: body, CreatedAt: time.Now()})
}

// RecomputeStats rebuilds stats from a most-recent-first history by
// replaying it oldest first.
func RecomputeStats(logs []domain.MealLog, loc *time.Location) domain.UserStats {
	var stats domain.UserStats
	var streak StreakState
	var prev *time.Time
	for i := len(logs) - 1; i >= 0; i-- {
		l := logs[i]
		stats.TotalPoints += l.Score
		stats.TotalLogs++
		streak = NextStreak(streak, prev, l.Date, loc)
		d := l.Date
		prev = &d
	}
	stats.CurrentStreak, stats.BestStreak = streak.Current, streak.Best
	return stats
}

// IsPerfectDay reports whether every planned meal of plan has a log scoring
// 100 on the calendar day of at. A day with no planned meals is never perfect.
func IsPerfectDay(plan domain.DayPlan, logs []domain.MealLog, at time.Time, loc *time.Location) bool {
	if len(plan.Meals) == 0 {
		return false
	}
	perfect := make(map[string]bool)
	for _, l := range logs {
		if l.Score >= 100 && SameDay(l.Date, at, loc) {
			perfect[l.MealID] = true
		}
	}
	for _, m := range plan.Meals {
		if !perfect[m.ID] {
			return false
		}
	}
	return true
}
