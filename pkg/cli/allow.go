package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/breakwater/breakwater/pkg/allowlist"
	"github.com/breakwater/breakwater/pkg/store"
)

func newAllowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allow",
		Short: "Manage the command allow list",
		Long: `Inspect and edit the permanent allow list. Allowed patterns run
without prompting. Changes are appended to the allow-list log, so a
removal is recorded as a tombstone rather than rewriting the file.`,
	}

	cmd.AddCommand(newAllowListCmd())
	cmd.AddCommand(newAllowAddCmd())
	cmd.AddCommand(newAllowRemoveCmd())

	return cmd
}

func newAllowListCmd() *cobra.Command {
	var showBuiltins bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List allowed patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAllowList(showBuiltins)
		},
	}

	cmd.Flags().BoolVar(&showBuiltins, "builtins", false, "include the built-in safe prefixes")

	return cmd
}

func newAllowAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <pattern>...",
		Short: "Allow a command pattern permanently",
		Long: `Add a pattern to the permanent allow list. Commands matching the
pattern at a word boundary run without prompting ("git push" covers
"git push origin main"). Session-scoped allows are made from the run
prompt and last until the run exits.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAllowAdd(strings.Join(args, " "))
		},
	}
}

func newAllowRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <pattern>...",
		Short: "Revoke an allowed pattern",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAllowRemove(strings.Join(args, " "))
		},
	}
}

func runAllowList(showBuiltins bool) error {
	dir, err := resolveStateDir()
	if err != nil {
		return err
	}

	permanent, err := openPermanentStore(dir)
	if err != nil {
		return err
	}

	patterns := permanent.List()
	if len(patterns) == 0 {
		printInfo("No allowed patterns")
	} else {
		printInfo(fmt.Sprintf("%d allowed pattern(s):", len(patterns)))
		for _, pattern := range patterns {
			fmt.Printf("  %s\n", pattern)
		}
	}

	if !showBuiltins {
		return nil
	}

	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}

	builtins := allowlist.NewBuiltins()
	builtins.ApplyConfig(cfg.Safety)

	fmt.Println()
	printInfo("Built-in safe prefixes:")
	for _, prefix := range builtins.Prefixes() {
		fmt.Printf("  %s\n", prefix)
	}

	if cfg.Safety != nil && len(cfg.Safety.DisabledBuiltins) > 0 {
		fmt.Println()
		printWarning("Disabled by config:")
		for _, prefix := range cfg.Safety.DisabledBuiltins {
			fmt.Printf("  %s\n", prefix)
		}
	}

	return nil
}

func runAllowAdd(pattern string) error {
	normalized := allowlist.Normalize(pattern)
	if normalized == "" {
		return fmt.Errorf("empty pattern")
	}

	dir, err := resolveStateDir()
	if err != nil {
		return err
	}
	if err := store.EnsureLayout(dir); err != nil {
		return err
	}

	permanent, err := openPermanentStore(dir)
	if err != nil {
		return err
	}

	if err := permanent.Add(normalized); err != nil {
		return err
	}

	printSuccess(fmt.Sprintf("Allowed: %s", normalized))
	return nil
}

func runAllowRemove(pattern string) error {
	dir, err := resolveStateDir()
	if err != nil {
		return err
	}

	permanent, err := openPermanentStore(dir)
	if err != nil {
		return err
	}

	removed, err := permanent.Remove(pattern)
	if err != nil {
		return err
	}
	if !removed {
		printWarning(fmt.Sprintf("Not in the allow list: %s", allowlist.Normalize(pattern)))
		return nil
	}

	printSuccess(fmt.Sprintf("Removed: %s", allowlist.Normalize(pattern)))
	return nil
}

func openPermanentStore(dir string) (*allowlist.PermanentStore, error) {
	return allowlist.NewPermanentStore(store.NewAllowLog(store.AllowListPath(dir)))
}
