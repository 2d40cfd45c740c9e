//go:build windows

package agent

import "fmt"

// loadToolPlugin always fails on platforms without Go-plugin support.
// The caller treats this as a collected loader error, not a panic.
func loadToolPlugin(path string) (Tool, error) {
	return nil, fmt.Errorf("dynamic tool plugins are not supported on this platform: %s", path)
}
