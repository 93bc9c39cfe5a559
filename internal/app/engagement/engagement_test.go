package engagement_test

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/plano-ai/plano/internal/app/engagement"
	"github.com/plano-ai/plano/internal/domain"
	"github.com/plano-ai/plano/internal/infra/sqlite"
)

// testDB creates a temporary SQLite database for testing.
func testDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sqlite.Open(dir)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// recorder collects notifications.
type recorder struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (r *recorder) Notify(n domain.Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

func (r *recorder) count(typ domain.NotificationType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Type == typ {
			n++
		}
	}
	return n
}

// brokenStore fails every write.
type brokenStore struct {
	*sqlite.DB
}

func (brokenStore) Set(string, []byte) error        { return errors.New("disk full") }
func (brokenStore) SetMany(map[string][]byte) error { return errors.New("disk full") }
func (brokenStore) Remove(...string) error          { return errors.New("disk full") }

var base = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func mealLog(id string, score int, at time.Time) domain.MealLog {
	return domain.MealLog{
		ID: id, Date: at, MealID: "monday-meal-0", MealName: "Café",
		Score: score, ItemsEaten: []string{}, Feedback: "ok",
	}
}

func newProgress(t *testing.T, store domain.KVStore, n domain.Notifier) *engagement.ProgressService {
	t.Helper()
	svc, err := engagement.NewProgressService(store, n, engagement.ProgressConfig{Location: time.UTC})
	if err != nil {
		t.Fatalf("new progress: %v", err)
	}
	return svc
}

func findBadge(badges []domain.Badge, id domain.BadgeID) domain.Badge {
	for _, b := range badges {
		if b.ID == id {
			return b
		}
	}
	return domain.Badge{}
}

// ═══════════════════════════════════════════════════════════════════════════
// Streak Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestStreak_FirstLog(t *testing.T) {
	s := engagement.NextStreak(engagement.StreakState{}, nil, base, time.UTC)
	if s.Current != 1 || s.Best != 1 {
		t.Errorf("first log streak = %+v, want 1/1", s)
	}
}

func streakSequence(days []int) ([]int, int) {
	var s engagement.StreakState
	var prev *time.Time
	var seq []int
	for _, d := range days {
		now := base.AddDate(0, 0, d)
		s = engagement.NextStreak(s, prev, now, time.UTC)
		seq = append(seq, s.Current)
		prev = &now
	}
	return seq, s.Best
}

func TestStreak_ConsecutiveDays(t *testing.T) {
	seq, best := streakSequence([]int{0, 1, 2})
	if fmt.Sprint(seq) != "[1 2 3]" || best != 3 {
		t.Errorf("sequence = %v best = %d, want [1 2 3] best 3", seq, best)
	}
}

func TestStreak_Break(t *testing.T) {
	seq, best := streakSequence([]int{0, 1, 4})
	if fmt.Sprint(seq) != "[1 2 1]" || best != 2 {
		t.Errorf("sequence = %v best = %d, want [1 2 1] best 2", seq, best)
	}
}

func TestStreak_SameDay(t *testing.T) {
	seq, best := streakSequence([]int{0, 0})
	if fmt.Sprint(seq) != "[1 1]" || best != 1 {
		t.Errorf("sequence = %v best = %d, want [1 1] best 1", seq, best)
	}
}

func TestStreak_SameDayFromZero(t *testing.T) {
	prev := base.Add(-time.Hour)
	s := engagement.NextStreak(engagement.StreakState{}, &prev, base, time.UTC)
	if s.Current != 1 {
		t.Errorf("current = %d, want 1", s.Current)
	}
}

func TestStreak_FuturePreviousCountsAsSameDay(t *testing.T) {
	prev := base.AddDate(0, 0, 3)
	s := engagement.NextStreak(engagement.StreakState{Current: 4, Best: 6}, &prev, base, time.UTC)
	if s.Current != 4 || s.Best != 6 {
		t.Errorf("streak = %+v, want unchanged 4/6", s)
	}
}

func TestCalendarDaysBetween_Location(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	prev := time.Date(2025, 7, 1, 23, 30, 0, 0, saoPaulo)
	now := time.Date(2025, 7, 2, 0, 30, 0, 0, saoPaulo)

	if got := engagement.CalendarDaysBetween(prev, now, saoPaulo); got != 1 {
		t.Errorf("local days = %d, want 1", got)
	}
	if got := engagement.CalendarDaysBetween(prev, now, time.UTC); got != 0 {
		t.Errorf("UTC days = %d, want 0", got)
	}
}

func TestCalendarDaysBetween_IgnoresHours(t *testing.T) {
	from := time.Date(2025, 7, 1, 0, 5, 0, 0, time.UTC)
	to := time.Date(2025, 7, 3, 23, 55, 0, 0, time.UTC)
	if got := engagement.CalendarDaysBetween(from, to, time.UTC); got != 2 {
		t.Errorf("days = %d, want 2", got)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Badge Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestDefaultBadges_Locked(t *testing.T) {
	badges := engagement.DefaultBadges()
	if len(badges) != 4 {
		t.Fatalf("catalog size = %d, want 4", len(badges))
	}
	for _, b := range badges {
		if b.Unlocked || b.UnlockedAt != nil {
			t.Errorf("%s should start locked", b.ID)
		}
		if b.Name == "" || b.Icon == "" {
			t.Errorf("%s missing display fields", b.ID)
		}
	}
}

func TestEvaluateBadges_FirstMeal(t *testing.T) {
	badges, unlocked := engagement.EvaluateBadges(engagement.DefaultBadges(),
		engagement.BadgeInput{PriorLogs: 0, Stats: domain.UserStats{TotalPoints: 80, CurrentStreak: 1, TotalLogs: 1}}, base)

	if len(unlocked) != 1 || unlocked[0].ID != domain.BadgeFirstMeal {
		t.Fatalf("unlocked = %+v, want first-meal", unlocked)
	}
	b := findBadge(badges, domain.BadgeFirstMeal)
	if !b.Unlocked || b.UnlockedAt == nil || !b.UnlockedAt.Equal(base) {
		t.Errorf("first-meal = %+v", b)
	}

	_, again := engagement.EvaluateBadges(badges,
		engagement.BadgeInput{PriorLogs: 0, Stats: domain.UserStats{TotalLogs: 1}}, base.Add(time.Hour))
	if len(again) != 0 {
		t.Errorf("already unlocked badge re-emitted: %+v", again)
	}
}

func TestEvaluateBadges_MasterAndStreak(t *testing.T) {
	in := engagement.BadgeInput{PriorLogs: 12, Stats: domain.UserStats{TotalPoints: 1000, CurrentStreak: 3}}
	_, unlocked := engagement.EvaluateBadges(engagement.DefaultBadges(), in, base)
	if len(unlocked) != 2 || unlocked[0].ID != domain.BadgeMaster || unlocked[1].ID != domain.BadgeStreak3 {
		t.Errorf("unlocked = %+v, want master then streak-3", unlocked)
	}

	in.Stats = domain.UserStats{TotalPoints: 999, CurrentStreak: 2}
	if _, unlocked := engagement.EvaluateBadges(engagement.DefaultBadges(), in, base); len(unlocked) != 0 {
		t.Errorf("below thresholds unlocked %+v", unlocked)
	}
}

func TestEvaluateBadges_NeverRelocks(t *testing.T) {
	at := base.Add(-24 * time.Hour)
	stored := engagement.DefaultBadges()
	for i := range stored {
		if stored[i].ID == domain.BadgeStreak3 {
			stored[i].Unlocked = true
			stored[i].UnlockedAt = &at
		}
	}
	badges, _ := engagement.EvaluateBadges(stored, engagement.BadgeInput{PriorLogs: 5}, base)
	b := findBadge(badges, domain.BadgeStreak3)
	if !b.Unlocked || !b.UnlockedAt.Equal(at) {
		t.Errorf("streak-3 = %+v, want unlocked at %v", b, at)
	}
}

func TestMergeCatalog_FillsMissingBadges(t *testing.T) {
	stored := []domain.Badge{{ID: domain.BadgeMaster, Unlocked: true}, {ID: "retired", Unlocked: true}}
	got := engagement.MergeCatalog(stored)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	if !findBadge(got, domain.BadgeMaster).Unlocked {
		t.Error("master unlock state lost")
	}
	if findBadge(got, domain.BadgeMaster).Name != "Mestre da Dieta" {
		t.Error("catalog name should be restored")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Aggregator Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestProgress_AddLog(t *testing.T) {
	svc := newProgress(t, testDB(t), nil)

	res, err := svc.AddLog(mealLog("a", 80, base))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.Stats.TotalLogs != 1 || res.Stats.TotalPoints != 80 || res.Stats.CurrentStreak != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}

	svc.AddLog(mealLog("b", 60, base.Add(2*time.Hour)))
	logs := svc.Logs()
	if len(logs) != 2 || logs[0].ID != "b" {
		t.Errorf("newest log should be first, got %v", logs)
	}
	if st := svc.Stats(); st.TotalLogs != 2 || st.TotalPoints != 140 || st.CurrentStreak != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestProgress_StreakAcrossDays(t *testing.T) {
	svc := newProgress(t, testDB(t), nil)
	for i, d := range []int{0, 1, 4, 5, 6} {
		if _, err := svc.AddLog(mealLog(fmt.Sprint(i), 50, base.AddDate(0, 0, d))); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	st := svc.Stats()
	if st.CurrentStreak != 3 || st.BestStreak != 3 {
		t.Errorf("streak = %d/%d, want 3/3", st.CurrentStreak, st.BestStreak)
	}
	if !findBadge(svc.Badges(), domain.BadgeStreak3).Unlocked {
		t.Error("streak-3 should be unlocked")
	}
}

func TestProgress_FirstMealNotifiesOnce(t *testing.T) {
	rec := &recorder{}
	svc := newProgress(t, testDB(t), rec)

	res, _ := svc.AddLog(mealLog("a", 10, base))
	if len(res.Unlocked) != 1 || res.Unlocked[0].ID != domain.BadgeFirstMeal {
		t.Errorf("unlocked = %+v", res.Unlocked)
	}
	svc.AddLog(mealLog("b", 10, base.Add(time.Minute)))
	svc.AddLog(mealLog("c", 10, base.Add(2*time.Minute)))

	if got := rec.count(domain.NotifyBadgeUnlocked); got != 1 {
		t.Errorf("badge notifications = %d, want 1", got)
	}
}

func TestProgress_MasterThenClearRelocks(t *testing.T) {
	rec := &recorder{}
	svc := newProgress(t, testDB(t), rec)
	for i := 0; i < 10; i++ {
		svc.AddLog(mealLog(fmt.Sprint(i), 100, base.Add(time.Duration(i)*time.Minute)))
	}
	if !findBadge(svc.Badges(), domain.BadgeMaster).Unlocked {
		t.Fatal("master should unlock at 1000 points")
	}

	if err := svc.ClearData(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	snap := svc.Snapshot()
	if len(snap.Logs) != 0 || snap.Stats != (domain.UserStats{}) {
		t.Errorf("after clear: logs=%d stats=%+v", len(snap.Logs), snap.Stats)
	}
	for _, b := range snap.Badges {
		if b.Unlocked {
			t.Errorf("%s still unlocked after clear", b.ID)
		}
	}
	if rec.count(domain.NotifyDataCleared) != 1 {
		t.Error("data cleared notification missing")
	}

	// first-meal unlocks again on the first log after a clear.
	res, _ := svc.AddLog(mealLog("fresh", 50, base.AddDate(0, 0, 1)))
	if len(res.Unlocked) != 1 || res.Unlocked[0].ID != domain.BadgeFirstMeal {
		t.Errorf("unlocked after clear = %+v", res.Unlocked)
	}
}

func TestProgress_DuplicateRejected(t *testing.T) {
	svc := newProgress(t, testDB(t), nil)
	if svc.HasLog("same") {
		t.Error("HasLog before add = true")
	}
	svc.AddLog(mealLog("same", 70, base))
	if !svc.HasLog("same") || svc.HasLog("other") {
		t.Error("HasLog does not match history")
	}

	_, err := svc.AddLog(mealLog("same", 70, base.Add(time.Second)))
	if !errors.Is(err, domain.ErrDuplicateLog) {
		t.Fatalf("err = %v, want ErrDuplicateLog", err)
	}
	if st := svc.Stats(); st.TotalLogs != 1 || st.TotalPoints != 70 {
		t.Errorf("duplicate changed stats: %+v", st)
	}
}

func TestProgress_PersistFailureKeepsState(t *testing.T) {
	db := testDB(t)
	good := newProgress(t, db, nil)
	good.AddLog(mealLog("a", 40, base))

	rec := &recorder{}
	svc := newProgress(t, brokenStore{db}, rec)
	_, err := svc.AddLog(mealLog("b", 90, base.AddDate(0, 0, 1)))
	if !errors.Is(err, domain.ErrStore) {
		t.Fatalf("err = %v, want ErrStore", err)
	}
	if st := svc.Stats(); st.TotalLogs != 1 || st.TotalPoints != 40 {
		t.Errorf("failed add changed stats: %+v", st)
	}
	if len(svc.Logs()) != 1 {
		t.Error("failed add changed history")
	}
	if rec.count(domain.NotifyBadgeUnlocked) != 0 {
		t.Error("no badge notifications on failure")
	}
	if err := svc.ClearData(); !errors.Is(err, domain.ErrStore) {
		t.Errorf("clear err = %v", err)
	}
	if len(svc.Logs()) != 1 {
		t.Error("failed clear changed history")
	}
}

func TestProgress_ReloadAndRecompute(t *testing.T) {
	db := testDB(t)
	svc := newProgress(t, db, nil)
	for i, d := range []int{0, 1, 1, 2, 5} {
		svc.AddLog(mealLog(fmt.Sprint(i), 30+i*10, base.AddDate(0, 0, d)))
	}

	reloaded := newProgress(t, db, nil)
	if reloaded.Stats() != svc.Stats() {
		t.Errorf("reloaded stats = %+v, want %+v", reloaded.Stats(), svc.Stats())
	}
	if got := engagement.RecomputeStats(reloaded.Logs(), time.UTC); got != svc.Stats() {
		t.Errorf("RecomputeStats = %+v, want %+v", got, svc.Stats())
	}
	if !findBadge(reloaded.Badges(), domain.BadgeFirstMeal).Unlocked {
		t.Error("badge state should persist")
	}
}

func TestProgress_StatsRebuiltWhenMissing(t *testing.T) {
	db := testDB(t)
	svc := newProgress(t, db, nil)
	svc.AddLog(mealLog("a", 20, base))
	svc.AddLog(mealLog("b", 30, base.AddDate(0, 0, 1)))
	db.Remove(engagement.KeyStats)

	reloaded := newProgress(t, db, nil)
	want := domain.UserStats{TotalPoints: 50, CurrentStreak: 2, BestStreak: 2, TotalLogs: 2}
	if reloaded.Stats() != want {
		t.Errorf("stats = %+v, want %+v", reloaded.Stats(), want)
	}
}

func TestProgress_PerfectDay(t *testing.T) {
	plan := domain.DayPlan{Day: domain.Tuesday, Meals: []domain.Meal{{ID: "t0"}, {ID: "t1"}}}
	svc, err := engagement.NewProgressService(testDB(t), nil, engagement.ProgressConfig{
		Location:   time.UTC,
		PerfectDay: true,
		DayPlan:    func(domain.DayKey) domain.DayPlan { return plan },
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	first := mealLog("a", 100, base)
	first.MealID = "t0"
	svc.AddLog(first)
	if findBadge(svc.Badges(), domain.BadgePerfectDay).Unlocked {
		t.Fatal("one of two meals is not a perfect day")
	}

	second := mealLog("b", 100, base.Add(time.Hour))
	second.MealID = "t1"
	res, _ := svc.AddLog(second)
	if len(res.Unlocked) != 1 || res.Unlocked[0].ID != domain.BadgePerfectDay {
		t.Errorf("unlocked = %+v, want perfect-day", res.Unlocked)
	}
}

func TestProgress_PerfectDayDisabledByDefault(t *testing.T) {
	svc := newProgress(t, testDB(t), nil)
	l := mealLog("a", 100, base)
	svc.AddLog(l)
	if findBadge(svc.Badges(), domain.BadgePerfectDay).Unlocked {
		t.Error("perfect-day must stay locked when the rule is off")
	}
}

func TestIsPerfectDay(t *testing.T) {
	plan := domain.DayPlan{Meals: []domain.Meal{{ID: "x"}}}
	logs := []domain.MealLog{{MealID: "x", Score: 100, Date: base.AddDate(0, 0, -1)}}
	if engagement.IsPerfectDay(plan, logs, base, time.UTC) {
		t.Error("yesterday's log must not count")
	}
	if engagement.IsPerfectDay(domain.DayPlan{}, logs, base, time.UTC) {
		t.Error("empty day is never perfect")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Summary Tests
// ═══════════════════════════════════════════════════════════════════════════

func summaryPlan() domain.DayPlan {
	return domain.DayPlan{Day: domain.Tuesday, Meals: []domain.Meal{
		{ID: "m1", Name: "Café", Time: "07:00"},
		{ID: "m2", Name: "Lanche", Time: "de manhã"},
		{ID: "m3", Name: "Almoço", Time: "12:00"},
		{ID: "m4", Name: "Jantar", Time: "19:00"},
	}}
}

func TestDailySummary_NextMeal(t *testing.T) {
	now := time.Date(2025, 7, 1, 10, 15, 0, 0, time.UTC)
	logs := []domain.MealLog{{MealID: "m1", Date: now.Add(-3 * time.Hour), Score: 90}}

	s := engagement.DailySummary(summaryPlan(), logs, now, time.UTC)
	if s.Planned != 4 || s.Logged != 1 || s.Progress != 25 {
		t.Errorf("summary = %+v", s)
	}
	if s.NextMeal == nil || s.NextMeal.ID != "m3" {
		t.Errorf("next meal = %+v, want m3", s.NextMeal)
	}
}

func TestDailySummary_FallbackToFirstUnlogged(t *testing.T) {
	now := time.Date(2025, 7, 1, 21, 0, 0, 0, time.UTC)
	logs := []domain.MealLog{
		{MealID: "m1", Date: now}, {MealID: "m3", Date: now}, {MealID: "m4", Date: now},
	}
	s := engagement.DailySummary(summaryPlan(), logs, now, time.UTC)
	if s.NextMeal == nil || s.NextMeal.ID != "m2" {
		t.Errorf("next meal = %+v, want m2 via fallback", s.NextMeal)
	}
}

func TestDailySummary_AllLoggedAndEmptyPlan(t *testing.T) {
	now := time.Date(2025, 7, 1, 21, 0, 0, 0, time.UTC)
	var logs []domain.MealLog
	for _, m := range summaryPlan().Meals {
		logs = append(logs, domain.MealLog{MealID: m.ID, Date: now}, domain.MealLog{MealID: m.ID, Date: now})
	}
	s := engagement.DailySummary(summaryPlan(), logs, now, time.UTC)
	if s.NextMeal != nil || s.Progress != 100 {
		t.Errorf("summary = %+v, want no next meal and progress capped at 100", s)
	}

	empty := engagement.DailySummary(domain.DayPlan{}, nil, now, time.UTC)
	if empty.Progress != 0 || empty.NextMeal != nil {
		t.Errorf("empty summary = %+v", empty)
	}
}

func TestWeeklyScores(t *testing.T) {
	now := time.Date(2025, 7, 7, 9, 0, 0, 0, time.UTC) // monday
	logs := []domain.MealLog{
		{Score: 100, Date: now},
		{Score: 51, Date: now.Add(-time.Hour)},
		{Score: 40, Date: now.AddDate(0, 0, -6)},
		{Score: 99, Date: now.AddDate(0, 0, -7)},
	}
	got := engagement.WeeklyScores(logs, now, time.UTC)
	if len(got) != 7 {
		t.Fatalf("len = %d, want 7", len(got))
	}
	if got[0].Date != "2025-07-01" || got[0].Score != 40 || got[0].Label != "ter" {
		t.Errorf("first day = %+v", got[0])
	}
	if got[6].Date != "2025-07-07" || got[6].Score != 76 || got[6].Logs != 2 || got[6].Label != "seg" {
		t.Errorf("today = %+v", got[6])
	}
	if got[3].Score != 0 || got[3].Logs != 0 {
		t.Errorf("empty day = %+v", got[3])
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Notification Tests
// ═══════════════════════════════════════════════════════════════════════════

func TestNotification_RecordsAndFansOut(t *testing.T) {
	db := testDB(t)
	svc := engagement.NewNotificationService(db)
	rec := &recorder{}
	svc.Subscribe(rec)

	svc.Notify(domain.Notification{Type: domain.NotifyPlanSaved, Title: "Plano salvo!", Body: "ok"})

	if rec.count(domain.NotifyPlanSaved) != 1 {
		t.Error("sink did not receive notification")
	}
	if rec.items[0].ID == 0 {
		t.Error("sink should see the recorded id")
	}
	list, err := svc.List(10, true)
	if err != nil || len(list) != 1 {
		t.Fatalf("List() = %v, %v", list, err)
	}

	if err := svc.MarkShown(list[0].ID); err != nil {
		t.Fatalf("MarkShown: %v", err)
	}
	pending, _ := svc.List(10, true)
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
	if err := svc.MarkShown(424242); !errors.Is(err, domain.ErrNotificationNotFound) {
		t.Errorf("unknown id err = %v", err)
	}
}

func TestNotification_MemoryFallback(t *testing.T) {
	svc := engagement.NewNotificationService(nil)
	svc.Notify(domain.Notification{Type: domain.NotifyPlanSaved, Title: "a"})
	svc.Notify(domain.Notification{Type: domain.NotifyPlanCleared, Title: "b"})

	list, _ := svc.List(10, false)
	if len(list) != 2 || list[0].Title != "b" {
		t.Fatalf("list = %+v, want newest first", list)
	}
	if err := svc.MarkShown(list[1].ID); err != nil {
		t.Fatalf("MarkShown: %v", err)
	}
	pending, _ := svc.List(10, true)
	if len(pending) != 1 || pending[0].Title != "b" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestNotification_PanickingSinkIsContained(t *testing.T) {
	svc := engagement.NewNotificationService(nil)
	rec := &recorder{}
	svc.Subscribe(domain.NotifierFunc(func(domain.Notification) { panic("boom") }))
	svc.Subscribe(rec)

	svc.Notify(domain.Notification{Type: domain.NotifyDataCleared, Title: "Dados limpos"})
	if rec.count(domain.NotifyDataCleared) != 1 {
		t.Error("later sinks must still be called")
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
