package allowlist

import (
	"sort"
	"strings"
	"sync"

	"github.com/breakwater/breakwater/pkg/types"
)

// safePrefixes are commands that are inherently read-only or harmless.
// Matched against the start of the command at a word boundary.
var safePrefixes = map[string]bool{
	// filesystem inspection
	"ls": true, "ll": true, "la": true, "exa": true, "eza": true,
	"tree": true, "find": true, "locate": true,
	"stat": true, "file": true, "wc": true, "du": true, "df": true,

	// reading
	"cat": true, "head": true, "tail": true, "less": true, "more": true,
	"bat": true, "batcat": true,

	// text processing (read-only)
	"grep": true, "rg": true, "ripgrep": true, "ag": true, "ack": true,
	"sed": true, "awk": true, "sort": true, "uniq": true, "cut": true,
	"tr": true, "diff": true, "comm": true, "jq": true, "yq": true,

	// system info
	"pwd": true, "whoami": true, "id": true, "hostname": true,
	"uname": true, "uptime": true, "date": true, "cal": true,
	"env": true, "printenv": true, "echo": true, "printf": true,
	"which": true, "where": true, "type": true, "command": true,
	"top": true, "htop": true, "btop": true, "ps": true, "pgrep": true,
	"lsof": true, "free": true, "vmstat": true, "iostat": true,
	"nproc": true, "arch": true, "sw_vers": true,

	// network inspection
	"ping": true, "dig": true, "nslookup": true, "host": true,
	"traceroute": true, "mtr": true, "ifconfig": true, "ip": true,
	"ss": true, "netstat": true, "curl": true, "wget": true,
	"httpie": true,

	// git (read-only)
	"git status": true, "git log": true, "git diff": true,
	"git show": true, "git branch": true, "git tag": true,
	"git remote": true, "git stash list": true, "git shortlog": true,
	"git blame": true, "git ls-files": true, "git ls-tree": true,

	// package info
	"brew list": true, "brew info": true, "brew search": true,
	"pip list": true, "pip show": true, "pip freeze": true,
	"npm list": true, "npm ls": true, "npm info": true,
	"npm outdated": true,
	"cargo --version": true, "rustc --version": true, "go version": true,
	"node --version": true, "python --version": true, "java -version": true,

	// docker (read-only)
	"docker ps": true, "docker images": true, "docker stats": true,
	"docker logs": true, "docker inspect": true, "docker version": true,

	// misc
	"man": true, "tldr": true, "history": true,
}

// Builtins answers whether a command is covered by the built-in safe
// table, honoring per-prefix disables and user-supplied extra prefixes.
type Builtins struct {
	mu       sync.RWMutex
	disabled map[string]bool
	extra    map[string]bool
}

// NewBuiltins creates the built-in tier with the default table active.
func NewBuiltins() *Builtins {
	return &Builtins{
		disabled: make(map[string]bool),
		extra:    make(map[string]bool),
	}
}

// ApplyConfig disables and adds prefixes per the safety configuration.
func (b *Builtins) ApplyConfig(cfg *types.SafetyConfig) {
	if cfg == nil {
		return
	}
	for _, prefix := range cfg.DisabledBuiltins {
		b.Disable(prefix)
	}
	for _, prefix := range cfg.ExtraSafePrefixes {
		b.AddPrefix(prefix)
	}
}

// IsSafe reports whether the command starts with an active safe prefix.
func (b *Builtins) IsSafe(command string) bool {
	cmd := strings.ToLower(Normalize(command))
	if cmd == "" {
		return false
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for prefix := range safePrefixes {
		if b.disabled[prefix] {
			continue
		}
		if cmd == prefix || strings.HasPrefix(cmd, prefix+" ") {
			return true
		}
	}
	for prefix := range b.extra {
		if cmd == prefix || strings.HasPrefix(cmd, prefix+" ") {
			return true
		}
	}
	return false
}

// Disable removes a built-in prefix from consideration.
func (b *Builtins) Disable(prefix string) {
	key := strings.ToLower(Normalize(prefix))
	if key == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disabled[key] = true
}

// Enable restores a previously disabled built-in prefix.
func (b *Builtins) Enable(prefix string) {
	key := strings.ToLower(Normalize(prefix))
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.disabled, key)
}

// AddPrefix registers an additional safe prefix.
func (b *Builtins) AddPrefix(prefix string) {
	key := strings.ToLower(Normalize(prefix))
	if key == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.extra[key] = true
}

// Prefixes returns the active safe prefixes in sorted order.
func (b *Builtins) Prefixes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var prefixes []string
	for prefix := range safePrefixes {
		if !b.disabled[prefix] {
			prefixes = append(prefixes, prefix)
		}
	}
	for prefix := range b.extra {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)
	return prefixes
}
