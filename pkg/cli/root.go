// Package cli provides the command-line interface for Breakwater
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/breakwater/breakwater/pkg/config"
	"github.com/breakwater/breakwater/pkg/logger"
	"github.com/breakwater/breakwater/pkg/store"
	"github.com/breakwater/breakwater/pkg/types"
)

var (
	cfgFile   string
	stateDir  string
	verbosity string
	version   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "breakwater",
	Short: "Runs decomposed tasks as safely ordered shell waves",
	Long: `🌊 Breakwater - trust-gated parallel execution of decomposed tasks

Breakwater takes a plan of shell steps, orders them into dependency waves,
and runs each wave in parallel once the trust policy has cleared every
command. Dangerous commands are stopped at the gate before anything runs.`,

	Run: func(cmd *cobra.Command, args []string) {
		// Check if version flag is set
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("🌊 Breakwater v%s\n", version)
			return
		}
		// If no subcommand, show help
		cmd.Help()
	},
}

// Execute runs the CLI
func Execute(v string) error {
	version = v

	// Initialize the root command explicitly (avoiding init())
	initializeRootCommand()

	return rootCmd.Execute()
}

// initializeRootCommand sets up the root command and its flags.
// This replaces the init() function to make initialization explicit and testable.
func initializeRootCommand() {
	cobra.OnInitialize(initEnv)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: <state-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "state directory (default: ~/.breakwater)")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")

	// Add version flag
	rootCmd.Flags().Bool("version", false, "Print version information and quit")

	// Add subcommands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newExecCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newAllowCmd())
	rootCmd.AddCommand(newLogsCmd())
	rootCmd.AddCommand(newWaitCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newCleanCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initEnv() {
	// Read in environment variables (BREAKWATER_STATE_DIR, ...)
	viper.SetEnvPrefix("BREAKWATER")
	viper.AutomaticEnv()
}

// Helper functions

func printSuccess(message string) {
	fmt.Printf("🌊 %s %s\n", color.GreenString("[Breakwater]"), message)
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "🌊 %s %s\n", color.RedString("[Breakwater]"), message)
}

func printInfo(message string) {
	fmt.Printf("🌊 %s %s\n", color.CyanString("[Breakwater]"), message)
}

func printWarning(message string) {
	fmt.Printf("🌊 %s %s\n", color.YellowString("[Breakwater]"), message)
}

// resolveStateDir picks the state directory: flag, then environment,
// then ~/.breakwater.
func resolveStateDir() (string, error) {
	if stateDir != "" {
		return stateDir, nil
	}
	if env := viper.GetString("STATE_DIR"); env != "" {
		return env, nil
	}
	return store.DefaultStateDir()
}

func getConfigPath(dir string) string {
	if cfgFile != "" {
		return cfgFile
	}
	return store.ConfigPath(dir)
}

func loadConfig(dir string) (*types.BreakwaterConfig, error) {
	cfg, err := config.NewManager().LoadOrDefault(getConfigPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// cliLogger builds the logger for one invocation. An explicit -v flag
// wins over the configured level.
func cliLogger(cfg *types.BreakwaterConfig) logger.Logger {
	level := verbosity
	if level == "info" && cfg != nil {
		level = string(cfg.GetLogLevel())
	}
	return logger.CreateLogger(level)
}
