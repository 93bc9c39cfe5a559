package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/plano-ai/plano/internal/app/engagement"
	"github.com/plano-ai/plano/internal/app/logbook"
	"github.com/plano-ai/plano/internal/app/planner"
	"github.com/plano-ai/plano/internal/daemon"
	"github.com/plano-ai/plano/internal/domain"
	"github.com/plano-ai/plano/internal/infra/document"
)

// maxPhotoSize caps each photo attached from the command line.
const maxPhotoSize = 10 << 20

// openDaemon loads config and wires services, printing notifications raised
// during the command to stderr.
func openDaemon(cmd *cobra.Command) (*daemon.Daemon, error) {
	d, err := daemon.New()
	if err != nil {
		return nil, err
	}
	errOut := cmd.ErrOrStderr()
	d.Notifications.Subscribe(domain.NotifierFunc(func(n domain.Notification) {
		renderToast(errOut, n)
	}))
	return d, nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// photoDataURL reads an image file and encodes it as a base64 data URL.
func photoDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) > maxPhotoSize {
		return "", fmt.Errorf("%w: %s is larger than %d MB", domain.ErrValidation, filepath.Base(path), maxPhotoSize>>20)
	}
	mime := document.DetectMIME(filepath.Base(path), data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: %s is not an image (%s)", domain.ErrValidation, filepath.Base(path), mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// ─── Rendering ──────────────────────────────────────────────────────────────

func renderToast(w io.Writer, n domain.Notification) {
	icon := "•"
	switch n.Type {
	case domain.NotifyBadgeUnlocked:
		icon = "★"
	case domain.NotifyPlanSaveFailed:
		icon = "✗"
	case domain.NotifyPlanSaved, domain.NotifyPlanCleared, domain.NotifyDataCleared:
		icon = "✓"
	}
	if n.Body == "" {
		fmt.Fprintf(w, "%s %s\n", icon, paint(styles.Bold, n.Title))
		return
	}
	fmt.Fprintf(w, "%s %s %s\n", icon, paint(styles.Bold, n.Title), paint(styles.Muted, n.Body))
}

var dayTitles = map[domain.DayKey]string{
	domain.Sunday:    "Domingo",
	domain.Monday:    "Segunda-feira",
	domain.Tuesday:   "Terça-feira",
	domain.Wednesday: "Quarta-feira",
	domain.Thursday:  "Quinta-feira",
	domain.Friday:    "Sexta-feira",
	domain.Saturday:  "Sábado",
}

func dayTitle(day domain.DayKey) string {
	if t, ok := dayTitles[day]; ok {
		return t
	}
	return planner.DayLabel(day)
}

// renderDay prints one plan day. Meals present in logged get a check mark.
func renderDay(w io.Writer, day domain.DayPlan, logged map[string]bool) {
	heading(w, dayTitle(day.Day))
	if len(day.Meals) == 0 {
		fmt.Fprintln(w, paint(styles.Muted, "  Nenhuma refeição planejada."))
		return
	}
	for _, m := range day.Meals {
		mark := "○"
		if logged[m.ID] {
			mark = paint(styles.Good, "✓")
		}
		when := m.Time
		if when == "" {
			when = "--:--"
		}
		fmt.Fprintf(w, "  %s %s  %s %s\n", mark, paint(styles.Muted, when), paint(styles.Bold, m.Name), paint(styles.Muted, "("+m.ID+")"))
		for _, it := range m.Items {
			fmt.Fprintf(w, "      - %s %s\n", it.Name, paint(styles.Muted, "["+it.ID+"]"))
		}
	}
}

// loggedToday returns the meal ids with a log on now's calendar day.
func loggedToday(logs []domain.MealLog, now time.Time, loc *time.Location) map[string]bool {
	out := make(map[string]bool)
	for _, l := range logs {
		if engagement.SameDay(l.Date, now, loc) {
			out[l.MealID] = true
		}
	}
	return out
}

func renderSummary(w io.Writer, s engagement.DaySummary) {
	fmt.Fprintf(w, "Hoje    %s %3d%%  (%d/%d refeições)\n", bar(s.Progress), s.Progress, s.Logged, s.Planned)
	if s.NextMeal != nil {
		fmt.Fprintf(w, "Próxima %s às %s\n", paint(styles.Bold, s.NextMeal.Name), s.NextMeal.Time)
	} else if s.Planned > 0 {
		fmt.Fprintln(w, paint(styles.Good, "Todas as refeições de hoje foram registradas."))
	}
}

func renderStats(w io.Writer, s domain.UserStats) {
	fmt.Fprintf(w, "Pontos      %d\n", s.TotalPoints)
	fmt.Fprintf(w, "Sequência   %d dia(s) (melhor: %d)\n", s.CurrentStreak, s.BestStreak)
	fmt.Fprintf(w, "Registros   %d\n", s.TotalLogs)
}

func renderBadges(w io.Writer, badges []domain.Badge) {
	for _, b := range badges {
		if b.Unlocked {
			when := ""
			if b.UnlockedAt != nil {
				when = " " + paint(styles.Muted, b.UnlockedAt.Format("2006-01-02"))
			}
			fmt.Fprintf(w, "  %s %s %s — %s%s\n", paint(styles.Good, "✓"), b.Icon, paint(styles.Bold, b.Name), b.Description, when)
			continue
		}
		fmt.Fprintf(w, "  ○ %s %s\n", paint(styles.Muted, b.Name), paint(styles.Muted, "— "+b.Description))
	}
}

func renderWeekly(w io.Writer, days []engagement.DayScore) {
	for _, d := range days {
		score := fmt.Sprintf("%3d", d.Score)
		if d.Logs > 0 {
			score = paint(scoreStyle(d.Score), score)
		}
		fmt.Fprintf(w, "%-4s %s %s %s (%d)\n", d.Label, d.Date, bar(d.Score), score, d.Logs)
	}
}

func renderLogs(w io.Writer, logs []domain.MealLog, loc *time.Location) error {
	if len(logs) == 0 {
		fmt.Fprintln(w, "Nenhum registro ainda. Use 'plano log <meal-id>' para registrar uma refeição.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tMEAL\tSCORE\tMODE\tFEEDBACK")
	for _, l := range logs {
		mode := "checklist"
		if l.Analysis != nil {
			mode = "photo"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			l.Date.In(loc).Format("2006-01-02 15:04"),
			l.MealName,
			l.Score,
			mode,
			truncate(l.Feedback, 40),
		)
	}
	return tw.Flush()
}

func renderResult(w io.Writer, res logbook.RecordResult) {
	score := paint(scoreStyle(res.Log.Score), fmt.Sprintf("%d/100", res.Log.Score))
	msg := fmt.Sprintf("%s  %s\n%s\n%s", paint(styles.Title, res.Verdict.Title), score, res.Verdict.Message, bar(res.Log.Score))
	if a := res.Log.Analysis; a != nil {
		msg += fmt.Sprintf("\n\nAderência: %s (%.0f%%)\n%s\n~%.0f kcal · P %.0fg · C %.0fg · G %.0fg",
			a.Adherence, a.Percent, a.Description,
			a.Nutrients.Calories, a.Nutrients.Protein, a.Nutrients.Carbs, a.Nutrients.Fat)
	}
	fmt.Fprintln(w, box(msg))
	fmt.Fprintf(w, "Pontos: %d · Sequência: %d dia(s)\n", res.Stats.TotalPoints, res.Stats.CurrentStreak)
}

func renderNotifications(w io.Writer, list []domain.Notification) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "Nenhuma notificação.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tTYPE\tTITLE\tSHOWN")
	for _, n := range list {
		shown := "no"
		if n.Shown {
			shown = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", n.ID, n.CreatedAt.Format("2006-01-02 15:04"), n.Type, n.Title, shown)
	}
	return tw.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
