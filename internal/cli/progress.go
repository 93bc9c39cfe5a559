package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/plano-ai/plano/internal/app/engagement"
)

func init() {
	progressHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of logs to show (0 = all)")
	progressClearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Confirm deleting all logs, stats and badges")
	progressCmd.AddCommand(progressWeeklyCmd, progressHistoryCmd, progressClearCmd)
	rootCmd.AddCommand(progressCmd)
}

var (
	historyLimit int
	clearYes     bool
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show points, streaks, badges and today's progress",
	Args:  cobra.NoArgs,
	RunE:  runProgress,
}

var progressWeeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "Average score for each of the last seven days",
	Args:  cobra.NoArgs,
	RunE:  runProgressWeekly,
}

var progressHistoryCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"logs"},
	Short:   "List logged meals, most recent first",
	Args:    cobra.NoArgs,
	RunE:    runProgressHistory,
}

var progressClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all logs, stats and badges",
	Args:  cobra.NoArgs,
	RunE:  runProgressClear,
}

func runProgress(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	now := time.Now().In(d.Location)
	snap := d.Progress.Snapshot()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, paint(styles.Title, "Seu progresso"))
	renderStats(out, snap.Stats)
	fmt.Fprintln(out)
	if d.Plans.HasPlan() {
		renderSummary(out, engagement.DailySummary(d.Plans.Today(now), snap.Logs, now, d.Location))
		fmt.Fprintln(out)
	}
	heading(out, "Conquistas")
	renderBadges(out, snap.Badges)
	return nil
}

func runProgressWeekly(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	renderWeekly(cmd.OutOrStdout(), engagement.WeeklyScores(d.Progress.Logs(), time.Now(), d.Location))
	return nil
}

func runProgressHistory(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	logs := d.Progress.Logs()
	if historyLimit > 0 && len(logs) > historyLimit {
		logs = logs[:historyLimit]
	}
	return renderLogs(cmd.OutOrStdout(), logs, d.Location)
}

func runProgressClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		return fmt.Errorf("this deletes every log, stat and badge; rerun with --yes to confirm")
	}
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Progress.ClearData()
}
