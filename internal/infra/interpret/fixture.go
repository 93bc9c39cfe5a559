package interpret

import (
	"context"
	_ "embed"
	"fmt"
	"math"
	"time"

	"github.com/plano-ai/plano/internal/domain"
)

//go:embed sample_plan.json
var samplePlanJSON []byte

// SamplePlanJSON returns the raw plan served by the fixture backend.
func SamplePlanJSON() []byte { return append([]byte(nil), samplePlanJSON...) }

// Fixture is an offline backend with deterministic answers: every document
// interprets to the embedded sample plan, and analysis improves with the
// number of photos.
type Fixture struct{}

// InterpretPlan returns the embedded sample plan.
func (Fixture) InterpretPlan(ctx context.Context, doc domain.Document) (domain.RawDietPlan, error) {
	if err := ctx.Err(); err != nil {
		return domain.RawDietPlan{}, err
	}
	return DecodePlan(samplePlanJSON)
}

// AnalyzeMeal returns MockAnalysis for the request.
func (Fixture) AnalyzeMeal(ctx context.Context, req domain.AnalysisRequest) (domain.MealAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return domain.MealAnalysis{}, err
	}
	if len(req.Photos) == 0 {
		return domain.MealAnalysis{}, domain.ErrNoPhotos
	}
	return MockAnalysis(req.DayLabel, req.Meal.Name, len(req.Photos)), nil
}

// MockAnalysis is the fixture verdict: percentual min(100, 65+8*photos),
// points percentual/10, adherence Alta from 85, Média from 70, else Baixa.
func MockAnalysis(dayLabel, mealName string, photos int) domain.MealAnalysis {
	percent := math.Min(100, float64(65+8*photos))
	points := math.Max(0, math.Min(10, math.Round(percent/10)))

	adherence := "Baixa"
	switch {
	case percent >= 85:
		adherence = "Alta"
	case percent >= 70:
		adherence = "Média"
	}
	return domain.MealAnalysis{
		Adherence:   adherence,
		Percent:     percent,
		Points:      points,
		Description: fmt.Sprintf("Simulação de análise automática para %s em %s.", mealName, dayLabel),
		Nutrients: domain.NutrientEstimate{
			Calories: float64(450 + 40*photos),
			Protein:  25,
			Carbs:    55,
			Fat:      18,
		},
	}
}

// ─── Backend Selection ──────────────────────────────────────────────────────

// Backend is both halves of the external service boundary.
type Backend interface {
	domain.PlanInterpreter
	domain.MealAnalyzer
}

// Config selects and configures a backend.
type Config struct {
	Backend           string
	BaseURL           string
	Timeout           time.Duration
	Token             string
	RequestsPerMinute int
	OpenAIKey         string
	OpenAIModel       string
	OpenAIBaseURL     string
	// Retry applies to the http and openai backends.
	Retry RetryConfig
}

// New builds the configured backend.
func New(cfg Config) (Backend, error) {
	limiter := NewLimiter(cfg.RequestsPerMinute)
	switch cfg.Backend {
	case BackendHTTP, "":
		c := &HTTPClient{BaseURL: cfg.BaseURL, Token: cfg.Token, Limiter: limiter}
		if cfg.Timeout > 0 {
			c.HTTPClient = newHTTPClient(cfg.Timeout)
		}
		return WithRetry(c, cfg.Retry), nil
	case BackendOpenAI:
		c, err := NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.OpenAIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Limiter: limiter,
		})
		if err != nil {
			return nil, err
		}
		return WithRetry(c, cfg.Retry), nil
	case BackendFixture:
		return Fixture{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrBackendUnknown, cfg.Backend)
	}
}
