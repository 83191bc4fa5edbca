// Package safety screens shell commands against a table of known
// destructive patterns and grades the matches by severity.
//
// Patterns use word boundaries and anchoring for precise matching, so
// `rm -rf /tmp/cache` is flagged as a recursive delete without being
// escalated to the root-delete rule.
package safety

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fatih/color"

	"github.com/breakwater/breakwater/pkg/types"
)

// ConfirmToken must be typed verbatim to authorize a critical command.
// Critical commands never qualify for allow-list or auto-approve shortcuts.
const ConfirmToken = "execute"

type rule struct {
	pattern  *regexp.Regexp
	severity types.Severity
	reason   string
}

// Rules are matched in order against the full command string.
// Multiple rules may fire for one command; duplicates are collapsed by reason.
var rules = []rule{
	// File / directory deletion
	{regexp.MustCompile(`(?i)\brm\s+(-\w*f\w*\s+)*-\w*r\w*\s+/\s*$|\brm\s+(-\w*r\w*\s+)*-\w*f\w*\s+/\s*$`),
		types.SeverityCritical, "Recursive delete from root — will destroy your system"},
	{regexp.MustCompile(`(?i)\brm\s+.*-r.*-f|\brm\s+.*-f.*-r|\brm\s+-rf\b`),
		types.SeverityHigh, "Recursive forced delete"},
	{regexp.MustCompile(`(?i)\brm\s+.*-r\b`),
		types.SeverityHigh, "Recursive delete"},
	{regexp.MustCompile(`(?i)\brm\s`),
		types.SeverityMedium, "File deletion"},
	{regexp.MustCompile(`(?i)\brmdir\b`),
		types.SeverityMedium, "Directory removal"},
	{regexp.MustCompile(`(?i)\bfind\b.*-delete\b`),
		types.SeverityHigh, "Bulk file deletion via find"},
	{regexp.MustCompile(`(?i)\bfind\b.*-exec\s+rm\b`),
		types.SeverityHigh, "Bulk file deletion via find -exec"},
	{regexp.MustCompile(`(?i)\bxargs\s+rm\b`),
		types.SeverityHigh, "Piped mass file deletion"},

	// Disk / filesystem
	{regexp.MustCompile(`(?i)\bmkfs\b`),
		types.SeverityCritical, "Filesystem format — will erase a disk"},
	{regexp.MustCompile(`(?i)\bdd\s`),
		types.SeverityCritical, "Low-level disk write"},
	{regexp.MustCompile(`(?i)>\s*/dev/sd|>\s*/dev/nvm|>\s*/dev/disk`),
		types.SeverityCritical, "Direct write to block device"},
	{regexp.MustCompile(`(?i)\bfdisk\b`),
		types.SeverityCritical, "Disk partitioning"},
	{regexp.MustCompile(`(?i)\bparted\b`),
		types.SeverityCritical, "Disk partitioning"},
	{regexp.MustCompile(`(?i)\bwipefs\b`),
		types.SeverityCritical, "Wiping filesystem signatures"},
	{regexp.MustCompile(`(?i)\bdiskutil\s+(erase|partitionDisk|eraseDisk)\b`),
		types.SeverityCritical, "macOS disk operation — data loss"},
	{regexp.MustCompile(`(?i)cat\s+/dev/(urandom|zero)\s*>`),
		types.SeverityCritical, "Overwriting with random/zero data"},

	// Permissions / ownership
	{regexp.MustCompile(`(?i)\bchmod\s+-R\s+0?777\b`),
		types.SeverityHigh, "Recursive world-writable permissions"},
	{regexp.MustCompile(`(?i)\bchmod\s+0?777\b`),
		types.SeverityMedium, "World-writable permissions"},
	{regexp.MustCompile(`(?i)\bchmod\s+(-R\s+)?0?000\b`),
		types.SeverityHigh, "Removing all file permissions"},
	{regexp.MustCompile(`(?i)\bchown\s+-R\b`),
		types.SeverityMedium, "Recursive ownership change"},

	// System control
	{regexp.MustCompile(`(?i)\bshutdown\b`),
		types.SeverityHigh, "System shutdown"},
	{regexp.MustCompile(`(?i)\breboot\b`),
		types.SeverityHigh, "System reboot"},
	{regexp.MustCompile(`(?i)\bpoweroff\b`),
		types.SeverityHigh, "System poweroff"},
	{regexp.MustCompile(`(?i)\binit\s+0\b`),
		types.SeverityHigh, "System halt"},
	{regexp.MustCompile(`(?i)\bhalt\b`),
		types.SeverityHigh, "System halt"},
	{regexp.MustCompile(`(?i)\bsystemctl\s+(stop|disable|mask)\b`),
		types.SeverityMedium, "Stopping/disabling a system service"},
	{regexp.MustCompile(`(?i)\blaunchctl\s+(unload|remove)\b`),
		types.SeverityMedium, "Removing a macOS service"},

	// Process management
	{regexp.MustCompile(`(?i)\bkill\s+-9\b`),
		types.SeverityMedium, "Force-killing a process"},
	{regexp.MustCompile(`(?i)\bkillall\b`),
		types.SeverityMedium, "Killing processes by name"},
	{regexp.MustCompile(`(?i)\bpkill\b`),
		types.SeverityMedium, "Killing processes by pattern"},

	// Privilege escalation
	{regexp.MustCompile(`(?i)\bsudo\b`),
		types.SeverityMedium, "Running with elevated privileges (sudo)"},

	// Dangerous moves / overwrites
	{regexp.MustCompile(`(?i)\bmv\s+/\s`),
		types.SeverityHigh, "Moving from root filesystem"},
	{regexp.MustCompile(`(?i)>\s*/etc/`),
		types.SeverityHigh, "Overwriting system config"},
	{regexp.MustCompile(`(?i)\btruncate\b`),
		types.SeverityMedium, "Truncating a file"},
	{regexp.MustCompile(`(?i)\bshred\b`),
		types.SeverityHigh, "Securely erasing a file (unrecoverable)"},

	// Remote script execution
	{regexp.MustCompile(`(?i)\bcurl\b.*\|\s*(ba)?sh\b`),
		types.SeverityHigh, "Piping remote script to shell"},
	{regexp.MustCompile(`(?i)\bwget\b.*\|\s*(ba)?sh\b`),
		types.SeverityHigh, "Piping remote script to shell"},
	{regexp.MustCompile(`(?i)\bcurl\b.*\|\s*sudo\b`),
		types.SeverityCritical, "Piping remote script to sudo"},
	{regexp.MustCompile(`(?i)\bwget\b.*\|\s*sudo\b`),
		types.SeverityCritical, "Piping remote script to sudo"},

	// Git destructive operations
	{regexp.MustCompile(`(?i)\bgit\s+push\s+.*--force\b|\bgit\s+push\s+-f\b`),
		types.SeverityHigh, "Force-pushing — can destroy remote history"},
	{regexp.MustCompile(`(?i)\bgit\s+reset\s+--hard\b`),
		types.SeverityHigh, "Hard reset — discards uncommitted changes"},
	{regexp.MustCompile(`(?i)\bgit\s+clean\s+.*-f`),
		types.SeverityMedium, "Removing untracked files"},

	// Cron / scheduled tasks
	{regexp.MustCompile(`(?i)\bcrontab\s+-r\b`),
		types.SeverityHigh, "Deleting all cron jobs"},

	// Firewall / network
	{regexp.MustCompile(`(?i)\biptables\s+-F\b`),
		types.SeverityHigh, "Flushing all firewall rules"},
	{regexp.MustCompile(`(?i)\bufw\s+disable\b`),
		types.SeverityHigh, "Disabling firewall"},

	// Docker cleanup
	{regexp.MustCompile(`(?i)\bdocker\s+system\s+prune\b`),
		types.SeverityMedium, "Removing unused Docker data"},
	{regexp.MustCompile(`(?i)\bdocker\s+rm\b`),
		types.SeverityMedium, "Removing Docker containers"},
	{regexp.MustCompile(`(?i)\bdocker\s+rmi\b`),
		types.SeverityMedium, "Removing Docker images"},

	// Sync with deletion
	{regexp.MustCompile(`(?i)\brsync\b.*--delete\b`),
		types.SeverityMedium, "Syncing with file deletion at destination"},

	// Environment sabotage
	{regexp.MustCompile(`(?i)\bexport\s+PATH\s*=\s*$|\bexport\s+PATH\s*=\s*['"]?\s*['"]?\s*$`),
		types.SeverityHigh, "Clearing PATH — will break the shell"},
	{regexp.MustCompile(`(?i)\bunset\s+PATH\b`),
		types.SeverityHigh, "Unsetting PATH — will break the shell"},

	// Fork bomb (case-sensitive on purpose)
	{regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
		types.SeverityCritical, "Fork bomb"},

	// Windows (cross-platform builds)
	{regexp.MustCompile(`(?i)\bformat\s+[a-z]:`),
		types.SeverityCritical, "Disk format (Windows)"},
	{regexp.MustCompile(`(?i)\bdel\s+/s\b`),
		types.SeverityHigh, "Recursive file deletion (Windows)"},
	{regexp.MustCompile(`(?i)\brd\s+/s\b`),
		types.SeverityHigh, "Recursive directory removal (Windows)"},
}

// Check returns the safety warnings for a command.
// An empty slice means no known dangerous pattern matched.
// When several rules share a reason, only the first match is reported.
func Check(command string) []types.Warning {
	cmd := strings.TrimSpace(command)

	var warnings []types.Warning
	seenReasons := make(map[string]bool)

	for _, r := range rules {
		if r.pattern.MatchString(cmd) && !seenReasons[r.reason] {
			warnings = append(warnings, types.Warning{Severity: r.severity, Reason: r.reason})
			seenReasons[r.reason] = true
		}
	}

	return warnings
}

// IsDestructive reports whether any rule matches the command.
func IsDestructive(command string) bool {
	return len(Check(command)) > 0
}

// HasCritical reports whether any warning carries critical severity.
func HasCritical(warnings []types.Warning) bool {
	for _, w := range warnings {
		if w.Severity == types.SeverityCritical {
			return true
		}
	}
	return false
}

// MaxSeverity returns the highest severity among the warnings.
// The second return value is false when the slice is empty.
func MaxSeverity(warnings []types.Warning) (types.Severity, bool) {
	var max types.Severity
	found := false
	for _, w := range warnings {
		if !found || w.Severity.Rank() > max.Rank() {
			max = w.Severity
			found = true
		}
	}
	return max, found
}

// FormatWarnings renders warnings as an indented, colored block.
func FormatWarnings(warnings []types.Warning) string {
	header := color.New(color.FgRed, color.Bold)
	critical := color.New(color.FgRed, color.Bold)
	high := color.New(color.FgRed)
	medium := color.New(color.FgYellow)

	lines := []string{"  " + header.Sprint("⚠  Safety warnings:")}
	for _, w := range warnings {
		c := medium
		switch w.Severity {
		case types.SeverityCritical:
			c = critical
		case types.SeverityHigh:
			c = high
		}
		tag := strings.ToUpper(string(w.Severity))
		lines = append(lines, fmt.Sprintf("     %s %s", c.Sprintf("[%s]", tag), w.Reason))
	}
	return strings.Join(lines, "\n")
}
