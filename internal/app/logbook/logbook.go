// Package logbook turns a user's meal report into a scored MealLog and hands
// it to the progress service.
package logbook

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/plano-ai/plano/internal/app/engagement"
	"github.com/plano-ai/plano/internal/app/planner"
	"github.com/plano-ai/plano/internal/app/scoring"
	"github.com/plano-ai/plano/internal/domain"
	"github.com/plano-ai/plano/internal/infra/metrics"
	"github.com/plano-ai/plano/internal/logger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LogRequest is what the user submits for one meal.
type LogRequest struct {
	MealID string `json:"mealId" validate:"required,max=200"`
	// Day selects the plan day; empty means today.
	Day          string   `json:"day,omitempty" validate:"omitempty,oneof=sunday monday tuesday wednesday thursday friday saturday"`
	CheckedItems []string `json:"itemsEaten" validate:"max=200,dive,required"`
	Extras       string   `json:"extras" validate:"max=1000"`
	Feedback     string   `json:"feedback" validate:"max=2000"`
	// Photos are data URLs ("data:image/jpeg;base64,...").
	Photos  []string `json:"photos" validate:"max=10,dive,datauri"`
	Analyze bool     `json:"analyze"`
	// IdempotencyKey becomes the log id when set.
	IdempotencyKey string `json:"idempotencyKey,omitempty" validate:"omitempty,max=128,printascii"`
}

// RecordResult is returned after a log was accepted.
type RecordResult struct {
	Log      domain.MealLog   `json:"log"`
	Stats    domain.UserStats `json:"stats"`
	Unlocked []domain.Badge   `json:"unlocked"`
	Verdict  scoring.Tier     `json:"verdict"`
}

// PlanSource is the read side of the plan service.
type PlanSource interface {
	Today(now time.Time) domain.DayPlan
	Day(day domain.DayKey) domain.DayPlan
}

// ProgressRecorder is the write side of the progress service.
type ProgressRecorder interface {
	HasLog(id string) bool
	AddLog(entry domain.MealLog) (engagement.AddResult, error)
}

// Config tunes request validation.
type Config struct {
	// RequirePhotos rejects requests without at least one photo.
	RequirePhotos bool
	// Location picks "today" for requests without an explicit day.
	Location *time.Location
}

// Logbook records meal logs.
type Logbook struct {
	plans    PlanSource
	progress ProgressRecorder
	analyzer domain.MealAnalyzer
	cfg      Config
	group    singleflight.Group
	log      *zap.Logger

	now   func() time.Time
	newID func() string
}

// New creates a logbook. analyzer may be nil; photo analysis then fails
// with ErrServiceUnavailable.
func New(plans PlanSource, progress ProgressRecorder, analyzer domain.MealAnalyzer, cfg Config) *Logbook {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Logbook{
		plans:    plans,
		progress: progress,
		analyzer: analyzer,
		cfg:      cfg,
		log:      logger.Named("logbook"),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// Record validates, scores and stores one meal log. Nothing is stored when
// validation, analysis or persistence fails.
func (b *Logbook) Record(ctx context.Context, req LogRequest) (RecordResult, error) {
	if err := b.check(req); err != nil {
		metrics.MealLogsRejected.WithLabelValues("validation").Inc()
		return RecordResult{}, err
	}
	// A replayed key must not cost another analyzer call.
	if req.IdempotencyKey != "" && b.progress.HasLog(req.IdempotencyKey) {
		metrics.MealLogsRejected.WithLabelValues("duplicate").Inc()
		return RecordResult{}, fmt.Errorf("%w: %s", domain.ErrDuplicateLog, req.IdempotencyKey)
	}

	now := b.now()
	var day domain.DayPlan
	if req.Day != "" {
		key, _ := domain.ParseDayKey(req.Day)
		day = b.plans.Day(key)
	} else {
		day = b.plans.Today(now.In(b.cfg.Location))
	}
	meal, ok := day.FindMeal(req.MealID)
	if !ok {
		metrics.MealLogsRejected.WithLabelValues("meal_not_found").Inc()
		return RecordResult{}, fmt.Errorf("%w: %q on %s", domain.ErrMealNotFound, req.MealID, day.Day)
	}

	eaten := plannedIDs(meal, req.CheckedItems)
	entry := domain.MealLog{
		ID:         req.IdempotencyKey,
		Date:       now,
		MealID:     meal.ID,
		MealName:   meal.Name,
		ItemsEaten: eaten,
		Feedback:   FeedbackText(req.Feedback, req.Extras),
	}
	if entry.ID == "" {
		entry.ID = b.newID()
	}
	if len(req.Photos) > 0 {
		entry.PhotoURL = req.Photos[0]
		entry.Photos = append([]string(nil), req.Photos...)
	}

	mode := "checklist"
	if req.Analyze {
		mode = "photo"
		analysis, err := b.analyze(ctx, day.Day, meal, req.Photos)
		if err != nil {
			metrics.MealLogsRejected.WithLabelValues("analysis").Inc()
			return RecordResult{}, err
		}
		entry.Analysis = &analysis
		entry.Score = scoring.FromAnalysis(analysis)
	} else {
		entry.Score = scoring.Checklist(scoring.ChecklistInput{
			PlannedItems: len(meal.Items),
			CheckedItems: len(eaten),
			Extras:       req.Extras,
			Photos:       len(req.Photos),
		})
	}

	res, err := b.progress.AddLog(entry)
	if err != nil {
		return RecordResult{}, err
	}
	metrics.MealLogsRecorded.WithLabelValues(mode).Inc()

	return RecordResult{
		Log:      res.Log,
		Stats:    res.Stats,
		Unlocked: res.Unlocked,
		Verdict:  scoring.Feedback(res.Log.Score),
	}, nil
}

func (b *Logbook) check(req LogRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, describe(err))
	}
	if (req.Analyze || b.cfg.RequirePhotos) && len(req.Photos) == 0 {
		return fmt.Errorf("%w: %w", domain.ErrValidation, domain.ErrNoPhotos)
	}
	return nil
}

// analyze calls the analyzer once per distinct (meal, photos) request;
// concurrent identical submissions share the result.
func (b *Logbook) analyze(ctx context.Context, day domain.DayKey, meal domain.Meal, dataURLs []string) (domain.MealAnalysis, error) {
	if b.analyzer == nil {
		return domain.MealAnalysis{}, fmt.Errorf("%w: no meal analyzer configured", domain.ErrServiceUnavailable)
	}

	photos := make([]domain.Photo, 0, len(dataURLs))
	h := sha256.New()
	h.Write([]byte(meal.ID))
	for i, u := range dataURLs {
		p, err := DecodeDataURL(u)
		if err != nil {
			return domain.MealAnalysis{}, fmt.Errorf("%w: photo %d: %v", domain.ErrValidation, i, err)
		}
		p.Name = fmt.Sprintf("photo-%d", i)
		photos = append(photos, p)
		h.Write(p.Data)
	}
	key := hex.EncodeToString(h.Sum(nil))

	v, err, shared := b.group.Do(key, func() (interface{}, error) {
		return b.analyzer.AnalyzeMeal(ctx, domain.AnalysisRequest{
			DayLabel: planner.DayLabel(day),
			Meal:     meal,
			Photos:   photos,
		})
	})
	if shared {
		b.log.Debug("analysis shared with concurrent request", zap.String("meal", meal.ID))
	}
	if err != nil {
		b.log.Warn("meal analysis failed", zap.String("meal", meal.ID), zap.Error(err))
		return domain.MealAnalysis{}, err
	}
	return v.(domain.MealAnalysis), nil
}

// FeedbackText appends the extras to the user's note, as " (Extras: ...)".
func FeedbackText(note, extras string) string {
	if extras == "" {
		return note
	}
	return note + " (Extras: " + extras + ")"
}

// plannedIDs keeps the checked ids that belong to meal, first occurrence
// only, in submission order.
func plannedIDs(meal domain.Meal, checked []string) []string {
	planned := make(map[string]bool, len(meal.Items))
	for _, it := range meal.Items {
		planned[it.ID] = true
	}
	out := make([]string, 0, len(checked))
	seen := make(map[string]bool, len(checked))
	for _, id := range checked {
		if planned[id] && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// DecodeDataURL decodes a base64 "data:<mime>;base64,<payload>" URL.
func DecodeDataURL(u string) (domain.Photo, error) {
	rest, ok := strings.CutPrefix(u, "data:")
	if !ok {
		return domain.Photo{}, errors.New("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return domain.Photo{}, errors.New("data URL has no payload")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return domain.Photo{}, errors.New("data URL is not base64 encoded")
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return domain.Photo{}, fmt.Errorf("decode data URL: %w", err)
	}
	return domain.Photo{MIMEType: mime, Data: data}, nil
}

// describe flattens validator errors into "field: rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}
