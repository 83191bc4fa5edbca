package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/breakwater/breakwater/internal/state"
	"github.com/breakwater/breakwater/pkg/store"
	"github.com/breakwater/breakwater/pkg/types"
)

func newWaitCmd() *cobra.Command {
	var timeout int
	var pollInterval int

	cmd := &cobra.Command{
		Use:   "wait <id>",
		Short: "Wait for a run to finish",
		Long: `Block until the run with the given id reaches a terminal status.
Useful in scripts that start a run in one terminal and gate on its
outcome in another.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWait(args[0], timeout, pollInterval)
		},
	}

	cmd.Flags().IntVarP(&timeout, "timeout", "t", 300, "timeout in seconds (0 waits forever)")
	cmd.Flags().IntVar(&pollInterval, "poll-interval", 2, "polling interval in seconds")

	return cmd
}

// runWait polls the run's state file until it reports a terminal status,
// the owning process dies, or the timeout expires.
func runWait(processID string, timeoutSec, pollIntervalSec int) error {
	dir, err := resolveStateDir()
	if err != nil {
		return err
	}

	sm := state.NewManager(store.RunStateDir(dir), cliLogger(nil))
	processLog := store.NewProcessLog(store.ProcessesPath(dir))

	ctx := context.Background()
	if timeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
		defer cancel()
	}

	printInfo(fmt.Sprintf("Waiting for run %s", processID))

	ticker := time.NewTicker(time.Duration(pollIntervalSec) * time.Second)
	defer ticker.Stop()

	var lastStatus types.ProcessStatus
	var lastWave int

	for {
		status, done, err := checkRun(sm, processLog, processID)
		if err != nil {
			return err
		}
		if done {
			return reportFinalStatus(processID, status)
		}

		run, err := sm.ReadRun(processID)
		if err == nil && (run.Status != lastStatus || run.CurrentWave != lastWave) {
			printInfo(fmt.Sprintf("Run %s: %s (wave %d/%d, steps %d/%d)",
				processID, run.Status, run.CurrentWave, run.TotalWaves, run.StepsDone, run.TotalSteps))
			lastStatus = run.Status
			lastWave = run.CurrentWave
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for run %s", processID)
		case <-ticker.C:
		}
	}
}

// checkRun reads the live state once. done is true when a terminal
// status was reached or the run can no longer make progress.
func checkRun(sm *state.Manager, processLog *store.ProcessLog, processID string) (types.ProcessStatus, bool, error) {
	run, err := sm.ReadRun(processID)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", false, err
		}

		// No state file: either the run was cleaned after finishing or
		// the id is unknown. The process log settles which.
		record, recErr := processLog.Get(processID)
		if recErr != nil {
			if errors.Is(recErr, store.ErrProcessNotFound) {
				return "", false, fmt.Errorf("no run with id %s", processID)
			}
			return "", false, recErr
		}
		return record.Status, true, nil
	}

	if run.Status.IsTerminal() {
		return run.Status, true, nil
	}

	if active, err := sm.IsActive(processID); err == nil && !active {
		return "", false, fmt.Errorf("run %s is stale: its process is gone (last status %s)", processID, run.Status)
	}

	return run.Status, false, nil
}

func reportFinalStatus(processID string, status types.ProcessStatus) error {
	switch status {
	case types.ProcessStatusSucceeded:
		printSuccess(fmt.Sprintf("Run %s succeeded", processID))
		return nil
	case types.ProcessStatusCancelled:
		printInfo(fmt.Sprintf("Run %s was cancelled", processID))
		return nil
	default:
		printError(fmt.Sprintf("Run %s finished: %s", processID, status))
		return fmt.Errorf("run %s finished: %s", processID, status)
	}
}
