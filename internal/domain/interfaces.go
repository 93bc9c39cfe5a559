package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// KVStore is the persisted key-value state store.
// SetMany and Remove apply all keys as one unit or none of them.
type KVStore interface {
	// Get returns the value and whether the key exists.
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	SetMany(entries map[string][]byte) error
	Remove(keys ...string) error
	Ping() error
	Close() error
}

// Document is an uploaded diet-plan file.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Photo is an image of a consumed meal.
type Photo struct {
	Name     string
	MIMEType string
	Data     []byte
}

// PlanInterpreter converts a diet-plan document into a loosely structured plan.
// Implemented by infra/interpret (HTTP service, OpenAI, fixture).
type PlanInterpreter interface {
	InterpretPlan(ctx context.Context, doc Document) (RawDietPlan, error)
}

// AnalysisRequest is the input of a photo analysis.
type AnalysisRequest struct {
	DayLabel string
	Meal     Meal
	Photos   []Photo
}

// MealAnalyzer judges meal photos against the planned meal.
type MealAnalyzer interface {
	AnalyzeMeal(ctx context.Context, req AnalysisRequest) (MealAnalysis, error)
}

// Notifier receives user-visible events. Delivery is best-effort;
// Notify never blocks the caller on failure.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }
