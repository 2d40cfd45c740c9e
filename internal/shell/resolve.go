package shell

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
)

// Resolver finds and caches the shell binary used to run commands. It
// is resolved once per process: the first successful lookup is kept
// for the lifetime of the Resolver.
type Resolver struct {
	mu       sync.Mutex
	resolved string
	err      error
	done     bool

	// override, if set, is tried first and must be an absolute path to
	// an executable file.
	override string
}

// NewResolver creates a shell resolver. override is typically sourced
// from user configuration; pass "" to use the default search order.
func NewResolver(override string) *Resolver {
	return &Resolver{override: override}
}

// Resolve returns the cached shell path, computing it on first call.
func (r *Resolver) Resolve() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return r.resolved, r.err
	}

	r.resolved, r.err = r.resolve()
	r.done = true
	return r.resolved, r.err
}

func (r *Resolver) resolve() (string, error) {
	if r.override != "" {
		if isExecutableFile(r.override) {
			return r.override, nil
		}
		return "", fmt.Errorf("configured shell %q is not executable", r.override)
	}

	if runtime.GOOS == "windows" {
		return resolveWindowsShell()
	}
	return resolvePosixShell()
}

func resolvePosixShell() (string, error) {
	if envShell := os.Getenv("SHELL"); envShell != "" && isExecutableFile(envShell) {
		return envShell, nil
	}
	if path, err := exec.LookPath("bash"); err == nil {
		return path, nil
	}
	if path, err := exec.LookPath("sh"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("no POSIX shell found: $SHELL is unset or invalid, and neither bash nor sh is on PATH")
}

func resolveWindowsShell() (string, error) {
	candidates := []string{
		`C:\Program Files\Git\bin\bash.exe`,
		`C:\Program Files (x86)\Git\bin\bash.exe`,
	}
	for _, candidate := range candidates {
		if isExecutableFile(candidate) {
			return candidate, nil
		}
	}
	if path, err := exec.LookPath("bash.exe"); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("no bash found: install Git for Windows (https://git-scm.com/download/win) to get Git Bash, or add bash.exe to PATH")
}

func isExecutableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode()&0o111 != 0
}
