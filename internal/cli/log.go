package cli

import (
	"github.com/spf13/cobra"

	"github.com/plano-ai/plano/internal/app/logbook"
	"github.com/plano-ai/plano/internal/domain"
)

func init() {
	f := logCmd.Flags()
	f.StringSliceVarP(&logChecked, "check", "c", nil, "Planned item id that was eaten (repeatable)")
	f.StringVarP(&logExtras, "extras", "e", "", "Unplanned items, comma separated")
	f.StringArrayVarP(&logPhotos, "photo", "p", nil, "Photo of the meal (repeatable)")
	f.BoolVar(&logAnalyze, "analyze", false, "Score from photo analysis instead of the checklist")
	f.StringVar(&logFeedback, "feedback", "", "Free-text note")
	f.StringVar(&logDay, "day", "", "Plan day the meal belongs to (default today)")
	f.StringVar(&logKey, "key", "", "Idempotency key; retrying with the same key is rejected as a duplicate")
	rootCmd.AddCommand(logCmd)
}

var (
	logChecked  []string
	logExtras   string
	logPhotos   []string
	logAnalyze  bool
	logFeedback string
	logDay      string
	logKey      string
)

var logCmd = &cobra.Command{
	Use:   "log <meal-id>",
	Short: "Record a meal and get its score",
	Long: `Record a meal from today's plan (or --day).

Checklist mode scores the ticked items, extras and photo evidence.
With --analyze the attached photos are judged by the analysis service.`,
	Example: `  plano log monday-meal-0 --check monday-meal-0-option-0 --extras "café"
  plano log monday-meal-1 --photo lunch.jpg --analyze`,
	Args: cobra.ExactArgs(1),
	RunE: runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	req, err := buildLogRequest(args[0])
	if err != nil {
		return err
	}

	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.Logbook.Record(cmdContext(cmd), req)
	if err != nil {
		return err
	}
	renderResult(cmd.OutOrStdout(), res)
	return nil
}

func buildLogRequest(mealID string) (logbook.LogRequest, error) {
	req := logbook.LogRequest{
		MealID:         mealID,
		Day:            logDay,
		CheckedItems:   logChecked,
		Extras:         logExtras,
		Feedback:       logFeedback,
		Analyze:        logAnalyze,
		IdempotencyKey: logKey,
	}
	if key, ok := domain.ParseDayKey(logDay); ok {
		req.Day = string(key)
	}
	for _, path := range logPhotos {
		u, err := photoDataURL(path)
		if err != nil {
			return logbook.LogRequest{}, err
		}
		req.Photos = append(req.Photos, u)
	}
	return req, nil
}
