package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/breakwater/breakwater/pkg/config"
	"github.com/breakwater/breakwater/pkg/store"
)

func newInitCmd() *cobra.Command {
	var force bool
	var examplePlan bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Breakwater state directory",
		Long: `Create the state directory layout and write a default configuration.
The config file carries every knob: parallelism, step timeout, cancel
policy, notification and safety toggles.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force, examplePlan)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")
	cmd.Flags().BoolVar(&examplePlan, "example-plan", false, "also write breakwater.plan.yaml in the current directory")

	return cmd
}

func runInit(force, examplePlan bool) error {
	dir, err := resolveStateDir()
	if err != nil {
		return err
	}
	if err := store.EnsureLayout(dir); err != nil {
		return err
	}

	configPath := getConfigPath(dir)

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration already exists at %s. Use --force to overwrite", configPath)
	}

	manager := config.NewManager()
	if err := manager.SaveConfig(configPath, manager.GetDefaultConfig()); err != nil {
		return err
	}

	printSuccess(fmt.Sprintf("Created configuration at %s", configPath))

	if examplePlan {
		if err := writeExamplePlan("breakwater.plan.yaml", force); err != nil {
			return err
		}
		printSuccess("Created breakwater.plan.yaml")
		printInfo("Preview it with: breakwater run breakwater.plan.yaml --dry-run")
	}

	return nil
}

func writeExamplePlan(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", path)
	}

	plan := `instruction: check out the repository state
steps:
  - id: 1
    cmd: git status
    desc: working tree summary
  - id: 2
    cmd: git log --oneline -5
    desc: recent commits
  - id: 3
    cmd: git diff --stat
    desc: pending changes
    needs: [1]
`
	return os.WriteFile(path, []byte(plan), 0644)
}
