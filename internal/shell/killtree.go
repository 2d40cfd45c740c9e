package shell

import "time"

// DefaultGracePeriod is the delay between SIGTERM and SIGKILL when a
// caller does not specify one.
const DefaultGracePeriod = 5 * time.Second

// KillProcessTree terminates pid and every descendant it can discover.
// It is idempotent: a missing pid, an already-exited process, or a
// pid with no OS-level kill support are all treated as success. The
// function never returns an error a caller needs to act on; failures
// are swallowed because by the time a caller wants a tree dead, there
// is nothing meaningful left to do about a kill that didn't land.
func KillProcessTree(pid int, gracePeriod time.Duration) {
	if pid <= 0 {
		return
	}
	if gracePeriod < 0 {
		gracePeriod = 0
	}
	killProcessTree(pid, gracePeriod)
}
