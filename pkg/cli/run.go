package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/breakwater/breakwater/internal/engine"
	"github.com/breakwater/breakwater/pkg/config"
	"github.com/breakwater/breakwater/pkg/interfaces"
	"github.com/breakwater/breakwater/pkg/logger"
	"github.com/breakwater/breakwater/pkg/planner"
	"github.com/breakwater/breakwater/pkg/process"
	"github.com/breakwater/breakwater/pkg/session"
	"github.com/breakwater/breakwater/pkg/store"
	"github.com/breakwater/breakwater/pkg/types"
)

func newRunCmd() *cobra.Command {
	var dryRun bool
	var yes bool

	cmd := &cobra.Command{
		Use:   "run <plan-file>",
		Short: "Execute a YAML or JSON plan file",
		Long: `Execute a plan file. Steps reference each other by id through
dependsOn; steps that end up in the same wave run in parallel once the
trust policy has cleared their commands.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := planner.LoadPlanFile(args[0])
			if err != nil {
				return err
			}

			instruction := pf.Instruction
			if instruction == "" {
				instruction = "plan: " + filepath.Base(args[0])
			}

			return runPlan(planner.NewFilePlanner(args[0]), instruction, dryRun, yes)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan and exit without executing")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the plan confirmation")

	return cmd
}

func newExecCmd() *cobra.Command {
	var dryRun bool
	var yes bool

	cmd := &cobra.Command{
		Use:   "exec <command>...",
		Short: "Execute a single command through the trust gate",
		Long: `Execute one shell command as a single-step plan. The command still
passes the trust policy: built-in safe commands run immediately,
allow-listed commands run without prompting, everything else prompts.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := strings.Join(args, " ")
			return runPlan(planner.NewCommandPlanner(command), command, dryRun, yes)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan and exit without executing")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the plan confirmation")

	return cmd
}

func runPlan(p interfaces.Planner, instruction string, dryRun, yes bool) error {
	dir, err := resolveStateDir()
	if err != nil {
		return err
	}
	if err := store.EnsureLayout(dir); err != nil {
		return err
	}

	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	log := cliLogger(cfg)

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}

	factory := engine.NewDependencyFactory(dir, log, cfg)
	deps := factory.CreateWithOverrides(interfaces.Dependencies{Planner: p})

	b := engine.New(cfg, workDir, log, deps, dir)
	b.AttachSession(session.Collect())
	b.SetOutput(os.Stdout)

	// Signals cancel the context; running steps wind down per the
	// cancel policy instead of being killed mid-write.
	procMgr := process.NewManager(log)
	procMgr.RegisterShutdownHandler(func() {
		printWarning("Interrupted, waiting for running steps...")
	})
	ctx := procMgr.Start(context.Background())
	defer procMgr.Stop()

	plan, err := b.Plan(ctx, instruction)
	if err != nil {
		return err
	}

	printPlanPreview(os.Stdout, plan)

	if dryRun {
		return nil
	}
	if !yes && !confirmPlan(os.Stdin, os.Stdout) {
		printInfo("Cancelled")
		return nil
	}

	stopWatchers := startReloadWatchers(dir, cfg, log, deps)
	defer stopWatchers()

	record, err := b.ExecutePlan(ctx, plan)
	if err != nil {
		return err
	}

	printRunSummary(record)

	switch record.Status {
	case types.ProcessStatusSucceeded, types.ProcessStatusCancelled:
		return nil
	default:
		return fmt.Errorf("run %s finished: %s", record.ID, record.Status)
	}
}

// startReloadWatchers wires the hot reloads for the duration of a run:
// allow-list entries appended by other sessions become visible to the
// trust gate, and log level edits in the config file take effect.
func startReloadWatchers(dir string, cfg *types.BreakwaterConfig, log logger.Logger, deps interfaces.Dependencies) func() {
	var watchers []*config.ReloadManager

	if gate, ok := deps.TrustGate.(*engine.TrustGate); ok {
		w := config.NewReloadManager(store.AllowListPath(dir), log)
		w.AddCallback(func(ev config.ReloadEvent) {
			if ev.EventType != config.ReloadEventTypeModified && ev.EventType != config.ReloadEventTypeCreated {
				return
			}
			if err := gate.ReloadAllowList(); err != nil {
				log.Warn("Failed to reload allow list", logger.WithField("error", err))
			}
		})
		if err := w.StartWatching(); err == nil {
			watchers = append(watchers, w)
		}
	}

	if sl, ok := log.(*logger.ScopeLogger); ok {
		cfgPath := getConfigPath(dir)
		w := config.NewReloadManager(cfgPath, log)
		w.AddCallback(func(ev config.ReloadEvent) {
			if ev.EventType != config.ReloadEventTypeModified {
				return
			}
			fresh, err := config.NewManager().LoadConfig(cfgPath)
			if err != nil {
				log.Warn("Ignoring config edit", logger.WithField("error", err))
				return
			}
			sl.SetLevel(string(fresh.GetLogLevel()))
		})
		if err := w.StartWatching(); err == nil {
			watchers = append(watchers, w)
		}
	}

	return func() {
		for _, w := range watchers {
			w.StopWatching()
		}
	}
}

// printPlanPreview renders the waves of a plan before execution.
func printPlanPreview(w io.Writer, plan *types.Plan) {
	border := color.New(color.FgCyan)
	faint := color.New(color.Faint)

	border.Fprintln(w, "  ┌─ Plan ─────────────────────────────────")
	border.Fprint(w, "  │  ")
	fmt.Fprintln(w, plan.Instruction)
	border.Fprint(w, "  │  ")
	faint.Fprintf(w, "%d steps in %d waves", len(plan.Steps), len(plan.Waves))
	if plan.Provider != "" {
		faint.Fprintf(w, ", planned by %s", plan.Provider)
	}
	fmt.Fprintln(w)

	for _, wave := range plan.Waves {
		border.Fprintln(w, "  │")
		border.Fprint(w, "  │  ")
		fmt.Fprintf(w, "Wave %d\n", wave.Index+1)
		for _, id := range wave.StepIDs {
			step := plan.StepByID(id)
			if step == nil {
				continue
			}
			border.Fprint(w, "  │  ")
			fmt.Fprintf(w, "  [%d] %s", step.ID, step.Command)
			if note := stepNote(step, wave); note != "" {
				faint.Fprintf(w, "  %s", note)
			}
			fmt.Fprintln(w)
		}
	}
	border.Fprintln(w, "  └────────────────────────────────────────")
}

func stepNote(step *types.Step, wave types.Wave) string {
	if len(step.DependsOn) > 0 {
		ids := make([]string, len(step.DependsOn))
		for i, dep := range step.DependsOn {
			ids[i] = strconv.Itoa(dep)
		}
		return "(after: " + strings.Join(ids, ", ") + ")"
	}
	if len(wave.StepIDs) > 1 {
		return "(parallel)"
	}
	return ""
}

func confirmPlan(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, "\n  Execute? [y/N] ")
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func printRunSummary(record *types.ProcessRecord) {
	counts := record.CountByStatus()
	line := fmt.Sprintf("%d succeeded, %d failed, %d skipped in %s",
		counts[types.StepStatusSucceeded],
		counts[types.StepStatusFailed],
		counts[types.StepStatusSkipped],
		formatDuration(record.TotalDuration))

	switch record.Status {
	case types.ProcessStatusSucceeded:
		printSuccess(line)
	case types.ProcessStatusCancelled:
		printInfo(line)
	default:
		printError(line)
	}
}
