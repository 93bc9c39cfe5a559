package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/plano-ai/plano/internal/domain"
	"github.com/plano-ai/plano/internal/infra/metrics"
	"github.com/plano-ai/plano/internal/logger"
)

// Store keys owned by the plan service.
const (
	KeyPlan    = "plano-user-plan"
	KeyRawPlan = "plano-user-dietplan-raw"
)

// PlanService owns the current WeekPlan. Reads return copies; every write
// persists first and only then replaces the in-memory plan.
type PlanService struct {
	mu          sync.Mutex
	store       domain.KVStore
	interpreter domain.PlanInterpreter
	notifier    domain.Notifier
	log         *zap.Logger
	plan        domain.WeekPlan
}

// NewPlanService loads the persisted plan (if any) from the store.
// interpreter may be nil when plan import is not needed.
func NewPlanService(store domain.KVStore, interpreter domain.PlanInterpreter, notifier domain.Notifier) (*PlanService, error) {
	s := &PlanService{
		store:       store,
		interpreter: interpreter,
		notifier:    notifier,
		log:         logger.Named("planner"),
		plan:        domain.WeekPlan{},
	}

	data, ok, err := store.Get(KeyPlan)
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if ok && len(data) > 0 {
		var plan domain.WeekPlan
		if err := json.Unmarshal(data, &plan); err != nil {
			return nil, fmt.Errorf("decode stored plan: %w", err)
		}
		s.plan = complete(plan)
	}
	return s, nil
}

// Plan returns a copy of the current plan (empty if none is configured).
func (s *PlanService) Plan() domain.WeekPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan.Clone()
}

// HasPlan reports whether a plan is configured.
func (s *PlanService) HasPlan() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.plan.IsEmpty()
}

// Day returns the plan of one canonical day.
func (s *PlanService) Day(day domain.DayKey) domain.DayPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.plan[day]; ok {
		return d.Clone()
	}
	return domain.DayPlan{Day: day, Meals: []domain.Meal{}}
}

// Today returns the plan for now's weekday. When a plan exists but lacks
// that day, monday is used as the fallback.
func (s *PlanService) Today(now time.Time) domain.DayPlan {
	key := domain.DayKeyFor(now.Weekday())

	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.plan[key]; ok {
		return d.Clone()
	}
	if !s.plan.IsEmpty() {
		if d, ok := s.plan[domain.Monday]; ok {
			return d.Clone()
		}
	}
	return domain.DayPlan{Day: key, Meals: []domain.Meal{}}
}

// Save replaces the whole plan. Days missing from the input are stored as
// empty days so the persisted plan is always complete.
func (s *PlanService) Save(plan domain.WeekPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(plan)
}

// UpdateDay replaces one day of the plan and saves the result.
func (s *PlanService) UpdateDay(day domain.DayKey, plan domain.DayPlan) error {
	if _, ok := dayLabels[day]; !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownDay, day)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(s.plan.WithDay(day, plan))
}

// saveLocked persists plan and swaps it in. s.mu must be held.
func (s *PlanService) saveLocked(plan domain.WeekPlan) error {
	plan = complete(plan)
	data, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	if err := s.store.Set(KeyPlan, data); err != nil {
		s.notifySaveFailed(err)
		return fmt.Errorf("%w: save plan: %v", domain.ErrStore, err)
	}
	s.plan = plan
	s.log.Info("plan saved", zap.Int("meals", mealCount(plan)))
	s.notify(domain.NotifyPlanSaved, "Plano salvo!", "Seu plano alimentar foi atualizado com sucesso.")
	return nil
}

// Reset removes the plan and the raw interpreted document.
func (s *PlanService) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Remove(KeyPlan, KeyRawPlan); err != nil {
		return fmt.Errorf("%w: reset plan: %v", domain.ErrStore, err)
	}
	s.plan = domain.WeekPlan{}
	s.log.Info("plan cleared")
	s.notify(domain.NotifyPlanCleared, "Plano removido", "Todos os dados do plano foram apagados.")
	return nil
}

// Import sends a document to the interpretation service, normalizes the
// result, and stores both the raw response and the plan as one unit.
// On any failure the current plan is left untouched.
func (s *PlanService) Import(ctx context.Context, doc domain.Document) (domain.WeekPlan, error) {
	if s.interpreter == nil {
		return nil, fmt.Errorf("%w: no plan interpreter configured", domain.ErrServiceUnavailable)
	}

	start := time.Now()
	raw, err := s.interpreter.InterpretPlan(ctx, doc)
	if err != nil {
		metrics.PlanImports.WithLabelValues("failed").Inc()
		s.log.Warn("plan interpretation failed", zap.String("document", doc.Name), zap.Error(err))
		return nil, err
	}

	plan := Normalize(raw)
	rawData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode raw plan: %w", err)
	}
	planData, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SetMany(map[string][]byte{KeyPlan: planData, KeyRawPlan: rawData}); err != nil {
		metrics.PlanImports.WithLabelValues("failed").Inc()
		s.notifySaveFailed(err)
		return nil, fmt.Errorf("%w: save imported plan: %v", domain.ErrStore, err)
	}
	s.plan = plan
	metrics.PlanImports.WithLabelValues("ok").Inc()
	s.log.Info("plan imported",
		zap.String("document", doc.Name),
		zap.Int("meals", mealCount(plan)),
		zap.Duration("took", time.Since(start)),
	)
	s.notify(domain.NotifyPlanSaved, "Plano salvo!", "Seu plano alimentar foi atualizado com sucesso.")
	return plan.Clone(), nil
}

// RawPlan returns the last interpreted document, if any.
func (s *PlanService) RawPlan() (domain.RawDietPlan, bool, error) {
	data, ok, err := s.store.Get(KeyRawPlan)
	if err != nil || !ok {
		return domain.RawDietPlan{}, false, err
	}
	var raw domain.RawDietPlan
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.RawDietPlan{}, false, fmt.Errorf("decode raw plan: %w", err)
	}
	return raw, true, nil
}

func (s *PlanService) notifySaveFailed(err error) {
	s.log.Error("plan save failed", zap.Error(err))
	s.notify(domain.NotifyPlanSaveFailed, "Erro ao salvar", "Não foi possível salvar o plano alimentar.")
}

func (s *PlanService) notify(typ domain.NotificationType, title, body string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(domain.Notification{Type: typ, Title: title, Body: body, CreatedAt: time.Now()})
}

// complete re-keys case variants ("Monday") under their canonical key,
// drops unknown keys and fills in missing days. An empty plan stays empty.
func complete(plan domain.WeekPlan) domain.WeekPlan {
	if plan.IsEmpty() {
		return domain.WeekPlan{}
	}
	out := plan.Clone()
	for key, d := range plan {
		canon, ok := domain.ParseDayKey(string(key))
		if !ok || canon == key {
			continue
		}
		delete(out, key)
		if _, taken := plan[canon]; !taken {
			out[canon] = d.Clone()
		}
	}
	for _, day := range domain.DayKeys {
		d, ok := out[day]
		if !ok {
			d = domain.DayPlan{Day: day}
		}
		d.Day = day
		if d.Meals == nil {
			d.Meals = []domain.Meal{}
		}
		out[day] = d
	}
	for key := range out {
		if _, ok := dayLabels[key]; !ok {
			delete(out, key)
		}
	}
	return out
}

func mealCount(plan domain.WeekPlan) int {
	n := 0
	for _, d := range plan {
		n += len(d.Meals)
	}
	return n
}
