package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/breakwater/breakwater/internal/state"
	"github.com/breakwater/breakwater/pkg/store"
	"github.com/breakwater/breakwater/pkg/types"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show live runs",
		Long:  `Display the runs whose state files are present, including wave progress and whether the owning process is still alive.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func newListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent finished runs",
		Long:  `List recently finished runs with their outcome, step counts, and duration.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")

	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one finished run in detail",
		Long:  `Display the steps of a finished run with their status, exit codes, and the stderr of failed steps.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(args[0])
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently executed commands",
		Long:  `Display the command history across runs, most recent first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")

	return cmd
}

func newCleanCmd() *cobra.Command {
	var maxLogAge time.Duration

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove stale run state and old logs",
		Long:  `Remove state files of runs whose process is gone and log files older than the retention window.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(maxLogAge)
		},
	}

	cmd.Flags().DurationVar(&maxLogAge, "max-log-age", 30*24*time.Hour, "remove run logs older than this")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Breakwater",
		Long:  `Print the version number of Breakwater`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("🌊 Breakwater v%s\n", version)
		},
	}
}

// Implementation functions

func runStatus() error {
	dir, err := resolveStateDir()
	if err != nil {
		return err
	}

	sm := state.NewManager(store.RunStateDir(dir), cliLogger(nil))
	runs, err := sm.DiscoverRuns()
	if err != nil {
		return fmt.Errorf("failed to discover runs: %w", err)
	}

	if len(runs) == 0 {
		printInfo("No live runs")
		return nil
	}

	ids := make([]string, 0, len(runs))
	for id := range runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tWAVE\tSTEPS\tSTARTED\tINSTRUCTION")
	fmt.Fprintln(w, "--\t------\t----\t-----\t-------\t-----------")

	for _, id := range ids {
		run := runs[id]

		status := string(run.Status)
		if active, err := sm.IsActive(id); err == nil && !active && !run.Status.IsTerminal() {
			status = "stale"
		}

		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d/%d\t%s\t%s\n",
			run.ProcessID,
			colorStatus(status),
			run.CurrentWave,
			run.TotalWaves,
			run.StepsDone,
			run.TotalSteps,
			run.StartedAt.Format("15:04:05"),
			truncate(run.Instruction, 40),
		)
	}

	w.Flush()
	return nil
}

func runList(limit int) error {
	dir, err := resolveStateDir()
	if err != nil {
		return err
	}

	records, err := store.NewProcessLog(store.ProcessesPath(dir)).List(limit)
	if err != nil {
		return fmt.Errorf("failed to read runs: %w", err)
	}

	if len(records) == 0 {
		printInfo("No finished runs yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSTEPS\tDURATION\tFINISHED\tINSTRUCTION")
	fmt.Fprintln(w, "--\t------\t-----\t--------\t--------\t-----------")

	for _, record := range records {
		counts := record.CountByStatus()
		finished := "-"
		if record.FinishedAt != nil {
			finished = record.FinishedAt.Format("Jan 02 15:04")
		}

		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\t%s\n",
			record.ID,
			colorStatus(string(record.Status)),
			counts[types.StepStatusSucceeded],
			len(record.Steps),
			formatDuration(record.TotalDuration),
			finished,
			truncate(record.Instruction, 40),
		)
	}

	w.Flush()
	return nil
}

func runShow(id string) error {
	dir, err := resolveStateDir()
	if err != nil {
		return err
	}

	record, err := store.NewProcessLog(store.ProcessesPath(dir)).Get(id)
	if err != nil {
		if errors.Is(err, store.ErrProcessNotFound) {
			return fmt.Errorf("no finished run with id %s", id)
		}
		return err
	}

	printInfo(fmt.Sprintf("Run %s: %s", record.ID, record.Instruction))
	if record.Provider != "" {
		fmt.Printf("  planned by %s\n", record.Provider)
	}
	fmt.Printf("  %s in %s\n\n", colorStatus(string(record.Status)), formatDuration(record.TotalDuration))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSTATUS\tEXIT\tDURATION\tCOMMAND")
	fmt.Fprintln(w, "----\t------\t----\t--------\t-------")

	for _, step := range record.Steps {
		exit := "-"
		if step.ExitCode != nil {
			exit = fmt.Sprintf("%d", *step.ExitCode)
		}
		if step.TimedOut {
			exit = "timeout"
		}

		fmt.Fprintf(w, "%d\t%s %s\t%s\t%s\t%s\n",
			step.ID,
			stepIcon(step.Status),
			step.Status,
			exit,
			formatDuration(step.Duration),
			truncate(step.Command, 60),
		)
	}
	w.Flush()

	// Failed output is the first thing anyone asks for.
	for _, step := range record.Steps {
		if step.Status != types.StepStatusFailed || strings.TrimSpace(step.Stderr) == "" {
			continue
		}
		fmt.Printf("\nstderr of step %d:\n", step.ID)
		for _, line := range lastLines(step.Stderr, 10) {
			fmt.Printf("  %s\n", line)
		}
	}

	return nil
}

func runHistory(limit int) error {
	dir, err := resolveStateDir()
	if err != nil {
		return err
	}

	entries, err := store.NewHistoryLog(store.HistoryPath(dir)).List(limit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tOK\tCWD\tCOMMAND")
	fmt.Fprintln(w, "----\t--\t---\t-------")

	for _, entry := range entries {
		ok := "?"
		if entry.Success != nil {
			if *entry.Success {
				ok = color.GreenString("✓")
			} else {
				ok = color.RedString("✗")
			}
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			entry.Timestamp.Format("Jan 02 15:04"),
			ok,
			truncate(entry.Cwd, 30),
			truncate(entry.Command, 60),
		)
	}

	w.Flush()
	return nil
}

func runClean(maxLogAge time.Duration) error {
	dir, err := resolveStateDir()
	if err != nil {
		return err
	}

	log := cliLogger(nil)
	sm := state.NewManager(store.RunStateDir(dir), log)

	runs, err := sm.DiscoverRuns()
	if err != nil {
		return fmt.Errorf("failed to discover runs: %w", err)
	}

	removedStates := 0
	for id := range runs {
		active, err := sm.IsActive(id)
		if err != nil || active {
			continue
		}
		if err := sm.RemoveRun(id); err == nil {
			removedStates++
		}
	}

	removedLogs := 0
	cutoff := time.Now().Add(-maxLogAge)
	logEntries, err := os.ReadDir(store.LogsDir(dir))
	if err == nil {
		for _, entry := range logEntries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(filepath.Join(store.LogsDir(dir), entry.Name())); err == nil {
				removedLogs++
			}
		}
	}

	printSuccess(fmt.Sprintf("Removed %d stale run state(s) and %d old log(s)", removedStates, removedLogs))
	return nil
}

// Rendering helpers

func colorStatus(status string) string {
	switch status {
	case "succeeded":
		return color.GreenString(status)
	case "failed", "stale":
		return color.RedString(status)
	case "partial_failure", "running":
		return color.YellowString(status)
	case "cancelled":
		return color.New(color.Faint).Sprint(status)
	}
	return status
}

func stepIcon(status types.StepStatus) string {
	switch status {
	case types.StepStatusSucceeded:
		return color.GreenString("✓")
	case types.StepStatusFailed:
		return color.RedString("✗")
	case types.StepStatusSkipped:
		return color.New(color.Faint).Sprint("⊘")
	case types.StepStatusRunning:
		return color.YellowString("●")
	}
	return "·"
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func lastLines(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
