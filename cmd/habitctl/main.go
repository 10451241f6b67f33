package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/habitflow/internal/config"
	"github.com/habitflow/internal/datekey"
	"github.com/habitflow/internal/db"
	"github.com/habitflow/internal/locale"
	"github.com/habitflow/internal/service"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	tracker *service.Tracker
	balance config.Balance
}

type rootFlags struct {
	dbPath      string
	balanceFile string
	lang        string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "habitctl",
		Short:         "Inspect and update the habit tracker from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.dbPath, "db", envOr("DATABASE_PATH", db.DefaultPath), "sqlite database path")
	root.PersistentFlags().StringVar(&flags.balanceFile, "balance", os.Getenv("BALANCE_FILE"), "balance yaml file")
	root.PersistentFlags().StringVar(&flags.lang, "lang", locale.LanguageChinese, "label language: zh|en")

	root.AddCommand(newHabitsCmd(flags))
	root.AddCommand(newToggleCmd(flags))
	root.AddCommand(newProgressCmd(flags))
	root.AddCommand(newStatsCmd(flags))
	root.AddCommand(newProfileCmd(flags))
	root.AddCommand(newResetCmd(flags))
	return root
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func loadApp(ctx context.Context, flags *rootFlags) (*app, error) {
	balance, err := config.LoadBalance(flags.balanceFile)
	if err != nil {
		return nil, err
	}
	gdb, err := db.Open(flags.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	tracker, err := service.NewTracker(ctx, service.NewGormBlobStore(gdb), service.OptionsFromBalance(balance, datekey.SystemClock{}))
	if err != nil {
		return nil, err
	}
	return &app{tracker: tracker, balance: balance}, nil
}

func newHabitsCmd(flags *rootFlags) *cobra.Command {
	habits := &cobra.Command{Use: "habits", Short: "Manage habits"}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List habits with streaks and today's progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			state := a.tracker.Snapshot()
			summaries := service.SummarizeHabits(state.Habits, state.Logs, a.tracker.Today(), a.tracker.Streaks())
			printHabits(cmd.OutOrStdout(), summaries)
			return nil
		},
	}

	var draft service.HabitDraft
	addCmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			draft.Name = args[0]
			habit, ok, err := a.tracker.CreateHabit(cmd.Context(), draft)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("habit name is required")
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", habit.Icon, habit.Name, habit.ID)
			return nil
		},
	}
	addCmd.Flags().StringVar(&draft.Description, "description", "", "short description")
	addCmd.Flags().StringVar(&draft.Icon, "icon", "", "emoji icon")
	addCmd.Flags().StringVar(&draft.Color, "color", "", "colour class, e.g. bg-blue-500")
	addCmd.Flags().StringVar(&draft.Type, "type", "check", "completion type: check|count|timer")
	addCmd.Flags().IntVar(&draft.Goal, "goal", 1, "daily goal for count/timer habits")
	addCmd.Flags().StringVar(&draft.Unit, "unit", "", "goal unit")
	addCmd.Flags().StringVar(&draft.Frequency, "frequency", "daily", "daily|weekly")

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a habit and all of its logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			removed, err := a.tracker.DeleteHabit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("habit %s not found", args[0])
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	habits.AddCommand(listCmd, addCmd, deleteCmd)
	return habits
}

func newToggleCmd(flags *rootFlags) *cobra.Command {
	var increment int
	cmd := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Toggle today's completion for a habit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			result, err := a.tracker.Toggle(cmd.Context(), args[0], increment)
			if err != nil {
				return err
			}
			printToggle(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().IntVar(&increment, "increment", 0, "amount to log for count/timer habits (defaults to the goal)")
	return cmd
}

func newProgressCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <amount>",
		Short: "Add progress to a count or timer habit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[1])
			}
			a, err := loadApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			result, err := a.tracker.LogProgress(cmd.Context(), args[0], amount)
			if err != nil {
				return err
			}
			printToggle(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	stats := &cobra.Command{Use: "stats", Short: "Show statistics"}

	weeklyCmd := &cobra.Command{
		Use:   "weekly",
		Short: "Completion rate for the last seven days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			state := a.tracker.Snapshot()
			for _, day := range service.TrendStats(state.Logs, len(state.Habits), a.tracker.Today(), a.balance.Stats.WeeklyDays, flags.lang) {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %-4s %3d%% %s\n", day.Date, day.Label, day.CompletionRate, strings.Repeat("#", day.CompletionRate/10))
			}
			return nil
		},
	}

	var days int
	heatmapCmd := &cobra.Command{
		Use:   "heatmap",
		Short: "Activity heatmap, one row per week",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			window := days
			if window <= 0 {
				window = a.balance.Stats.HeatmapWindowDays
			}
			printHeatmap(cmd.OutOrStdout(), service.Heatmap(a.tracker.Snapshot().Logs, a.tracker.Today(), window))
			return nil
		},
	}
	heatmapCmd.Flags().IntVar(&days, "days", 0, "window size in days (defaults to the balance file)")

	stats.AddCommand(weeklyCmd, heatmapCmd)
	return stats
}

func newProfileCmd(flags *rootFlags) *cobra.Command {
	var rename string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show level progress, optionally renaming the profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			profile := a.tracker.Snapshot().User
			if strings.TrimSpace(rename) != "" {
				if profile, err = a.tracker.RenameProfile(cmd.Context(), rename); err != nil {
					return err
				}
			}
			progress := a.tracker.Progression().Describe(profile)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  Lv.%d  %d/%d xp (%.0f%%)\n", profile.Name, progress.Level, progress.XP, progress.NextThreshold, progress.Percent)
			return nil
		},
	}
	cmd.Flags().StringVar(&rename, "rename", "", "new display name")
	return cmd
}

func newResetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore the default habits and clear all progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if err := a.tracker.Reset(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "state reset to defaults")
			return nil
		},
	}
}

func printHabits(w io.Writer, summaries []service.HabitSummary) {
	if len(summaries) == 0 {
		_, _ = fmt.Fprintln(w, "no habits")
		return
	}
	for _, s := range summaries {
		mark := " "
		if s.CompletedToday {
			mark = "x"
		}
		_, _ = fmt.Fprintf(w, "[%s] %-38s %s %s  %d/%d %s  streak=%d best=%d\n",
			mark, s.Habit.ID, s.Habit.Icon, s.Habit.Name, s.TodayProgress, s.Habit.Goal, s.Habit.Unit, s.CurrentStreak, s.LongestStreak)
	}
}

func printToggle(w io.Writer, result service.ToggleResult) {
	state := "undone"
	if result.Completed {
		state = "done"
	}
	_, _ = fmt.Fprintf(w, "%s %s: %s (xp %+d, streak %d)\n", result.Habit.Icon, result.Habit.Name, state, result.XPDelta, result.Streak)
	if result.LeveledUp {
		_, _ = fmt.Fprintf(w, "level up! now Lv.%d\n", result.Profile.Level)
	}
}

var heatmapShades = []string{"·", "░", "▒", "▓", "█"}

func printHeatmap(w io.Writer, cells []service.HeatmapCell) {
	for i := 0; i < len(cells); i += 7 {
		end := min(i+7, len(cells))
		var row strings.Builder
		for _, cell := range cells[i:end] {
			row.WriteString(heatmapShades[cell.Intensity])
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", cells[i].Date, row.String())
	}
}
