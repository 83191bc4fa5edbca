package cli

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/breakwater/breakwater/pkg/store"
)

func newLogsCmd() *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs <id>",
		Short: "Show the output log of a run",
		Long:  `Display the captured step output of a run. Every run writes its output to <state-dir>/logs/<id>.log.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(args[0], follow, lines)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to show")

	return cmd
}

func runLogs(processID string, follow bool, lines int) error {
	dir, err := resolveStateDir()
	if err != nil {
		return err
	}

	logFile := store.RunLogPath(dir, processID)
	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return fmt.Errorf("no log for run %s", processID)
	}

	if follow {
		// Use tail -f for following logs
		cmd := exec.Command("tail", "-f", "-n", fmt.Sprintf("%d", lines), logFile)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		// Handle interrupt gracefully
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt)
		go func() {
			<-sigChan
			if cmd.Process != nil {
				cmd.Process.Kill()
			}
		}()

		return cmd.Run()
	}

	content, err := readLastNLines(logFile, lines)
	if err != nil {
		return err
	}
	fmt.Print(content)
	return nil
}

func readLastNLines(filename string, n int) (string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer file.Close()

	// Read all lines
	var allLines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return "", err
	}

	// Get last N lines
	start := 0
	if len(allLines) > n {
		start = len(allLines) - n
	}

	lastLinesOut := allLines[start:]
	return strings.Join(lastLinesOut, "\n") + "\n", nil
}
