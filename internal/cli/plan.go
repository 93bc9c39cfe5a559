package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/plano-ai/plano/internal/app/engagement"
	"github.com/plano-ai/plano/internal/app/planner"
	"github.com/plano-ai/plano/internal/domain"
	"github.com/plano-ai/plano/internal/infra/document"
)

func init() {
	planExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "yaml", "Output format: json or yaml")
	planCmd.AddCommand(planImportCmd, planShowCmd, planTodayCmd, planResetCmd, planSampleCmd, planExportCmd, planLoadCmd)
	rootCmd.AddCommand(planCmd)
}

var exportFormat string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Manage the weekly diet plan",
}

var planImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Interpret a diet-plan PDF or photo and save it",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanImport,
}

var planShowCmd = &cobra.Command{
	Use:   "show [day]",
	Short: "Show the whole week or one day",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPlanShow,
}

var planTodayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's meals and progress",
	Args:  cobra.NoArgs,
	RunE:  runPlanToday,
}

var planResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove the plan",
	Args:  cobra.NoArgs,
	RunE:  runPlanReset,
}

var planSampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Save the built-in sample plan",
	Args:  cobra.NoArgs,
	RunE:  runPlanSample,
}

var planExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the plan as JSON or YAML",
	Args:  cobra.NoArgs,
	RunE:  runPlanExport,
}

var planLoadCmd = &cobra.Command{
	Use:   "load <file>",
	Short: "Save a plan previously written by 'plan export'",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlanLoad,
}

func runPlanImport(cmd *cobra.Command, args []string) error {
	doc, err := document.Load(args[0])
	if err != nil {
		return err
	}

	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Interpretando %s...\n", doc.Name)
	plan, err := d.Plans.Import(cmdContext(cmd), doc)
	if err != nil {
		return err
	}
	renderWeek(out, plan)
	return nil
}

func runPlanShow(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	out := cmd.OutOrStdout()
	if !d.Plans.HasPlan() {
		fmt.Fprintln(out, "Nenhum plano configurado. Use 'plano plan import <arquivo>' ou 'plano plan sample'.")
		return nil
	}
	if len(args) == 1 {
		key, ok := domain.ParseDayKey(args[0])
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrUnknownDay, args[0])
		}
		renderDay(out, d.Plans.Day(key), nil)
		return nil
	}
	renderWeek(out, d.Plans.Plan())
	return nil
}

func runPlanToday(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	now := time.Now().In(d.Location)
	day := d.Plans.Today(now)
	logs := d.Progress.Logs()

	out := cmd.OutOrStdout()
	renderDay(out, day, loggedToday(logs, now, d.Location))
	fmt.Fprintln(out)
	renderSummary(out, engagement.DailySummary(day, logs, now, d.Location))
	return nil
}

func runPlanReset(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Plans.Reset()
}

func runPlanSample(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Plans.Save(planner.SamplePlan())
}

func runPlanExport(cmd *cobra.Command, args []string) error {
	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()

	if !d.Plans.HasPlan() {
		return fmt.Errorf("%w: nothing to export", domain.ErrNoPlan)
	}
	return writePlan(cmd.OutOrStdout(), d.Plans.Plan(), exportFormat)
}

func runPlanLoad(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	plan, err := readPlan(data)
	if err != nil {
		return err
	}

	d, err := openDaemon(cmd)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Plans.Save(plan)
}

func renderWeek(w io.Writer, plan domain.WeekPlan) {
	for i, key := range domain.DayKeys {
		if i > 0 {
			fmt.Fprintln(w)
		}
		day, ok := plan[key]
		if !ok {
			day = domain.DayPlan{Day: key}
		}
		renderDay(w, day, nil)
	}
}

// writePlan emits the days in week order, sunday first.
func writePlan(w io.Writer, plan domain.WeekPlan, format string) error {
	days := make([]domain.DayPlan, 0, len(domain.DayKeys))
	for _, key := range domain.DayKeys {
		day, ok := plan[key]
		if !ok {
			day = domain.DayPlan{Day: key, Meals: []domain.Meal{}}
		}
		days = append(days, day)
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(days)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(days); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: unknown format %q (want json or yaml)", domain.ErrValidation, format)
	}
}

// readPlan parses the output of writePlan. JSON input is accepted as YAML.
func readPlan(data []byte) (domain.WeekPlan, error) {
	var days []domain.DayPlan
	if err := yaml.Unmarshal(data, &days); err != nil {
		return nil, fmt.Errorf("%w: parse plan: %v", domain.ErrValidation, err)
	}
	plan := make(domain.WeekPlan, len(days))
	for _, day := range days {
		key, ok := domain.ParseDayKey(string(day.Day))
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDay, day.Day)
		}
		day.Day = key
		if day.Meals == nil {
			day.Meals = []domain.Meal{}
		}
		plan[key] = day
	}
	return plan, nil
}
