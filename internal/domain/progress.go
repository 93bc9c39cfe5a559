package domain

import "time"

// ─── Meal Logs ──────────────────────────────────────────────────────────────

// MealLog is one immutable record of a consumed meal and its score.
// Logs are append-only: the only removal is a full history clear.
type MealLog struct {
	ID         string        `json:"id"`
	Date       time.Time     `json:"date"`
	MealID     string        `json:"mealId"`
	MealName   string        `json:"mealName"`
	Score      int           `json:"score"`
	ItemsEaten []string      `json:"itemsEaten"`
	PhotoURL   string        `json:"photoUrl,omitempty"`
	Photos     []string      `json:"photos,omitempty"`
	Feedback   string        `json:"feedback"`
	Analysis   *MealAnalysis `json:"analysis,omitempty"`
}

// NutrientEstimate is the rough macro breakdown returned by photo analysis.
type NutrientEstimate struct {
	Calories float64 `json:"calorias"`
	Protein  float64 `json:"proteinas"`
	Carbs    float64 `json:"carboidratos"`
	Fat      float64 `json:"gorduras"`
}

// MealAnalysis is produced by the external photo-analysis service.
// Field names follow the service payload.
type MealAnalysis struct {
	Adherence   string           `json:"aderencia"`
	Percent     float64          `json:"percentual"`
	Points      float64          `json:"pontuacao"`
	Description string           `json:"descricao"`
	Nutrients   NutrientEstimate `json:"nutrientes_estimados"`
}

// ─── Stats & Badges ─────────────────────────────────────────────────────────

// UserStats is derived from the log history; the stored copy is a cache.
type UserStats struct {
	TotalPoints   int `json:"totalPoints"`
	CurrentStreak int `json:"currentStreak"`
	BestStreak    int `json:"bestStreak"`
	TotalLogs     int `json:"totalLogs"`
}

// BadgeID identifies an entry of the fixed badge catalog.
type BadgeID string

const (
	BadgeFirstMeal  BadgeID = "first-meal"
	BadgePerfectDay BadgeID = "perfect-day"
	BadgeStreak3    BadgeID = "streak-3"
	BadgeMaster     BadgeID = "master"
)

// Badge is a one-way achievement flag. Once Unlocked it stays unlocked
// until a full data clear.
type Badge struct {
	ID          BadgeID    `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Unlocked    bool       `json:"unlocked"`
	UnlockedAt  *time.Time `json:"unlockedAt,omitempty"`
}

// ProgressState is the logs/stats/badges unit owned by the progress service.
type ProgressState struct {
	Logs   []MealLog `json:"logs"`
	Stats  UserStats `json:"stats"`
	Badges []Badge   `json:"badges"`
}

// ─── Notifications ──────────────────────────────────────────────────────────

// NotificationType categorizes user-visible events.
type NotificationType string

const (
	NotifyPlanSaved      NotificationType = "plan_saved"
	NotifyPlanSaveFailed NotificationType = "plan_save_failed"
	NotifyPlanCleared    NotificationType = "plan_cleared"
	NotifyBadgeUnlocked  NotificationType = "badge_unlocked"
	NotifyDataCleared    NotificationType = "data_cleared"
)

// Notification is a fire-and-forget, user-facing message.
type Notification struct {
	ID        int64            `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"created_at"`
	Shown     bool             `json:"shown"`
}
