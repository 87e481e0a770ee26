package containerproxy

import (
	"context"
	"fmt"
	"runtime"
)

// spawner runs a single request/response round-trip: it starts the
// agent container/process, writes requestLine (already newline
// terminated) to its stdin, closes stdin, and collects everything the
// process writes to stdout until it exits or ctx is cancelled.
type spawner interface {
	spawn(ctx context.Context, cfg Config, requestLine string) (stdout string, err error)
}

// resolveBackend turns a configured Backend into a concrete spawner,
// resolving BackendAuto per spec: prefer the native runtime on macOS,
// fall back to Docker elsewhere. Returns a configuration error rather
// than a runtime one so an unavailable backend is caught before any
// inbound message is consumed.
func resolveBackend(cfg Config) (spawner, error) {
	switch cfg.Backend {
	case BackendDocker:
		return newDockerSpawner()
	case BackendApple:
		return newAppleSpawner()
	case BackendAuto, "":
		if runtime.GOOS == "darwin" {
			if s, err := newAppleSpawner(); err == nil {
				return s, nil
			}
		}
		return newDockerSpawner()
	default:
		return nil, fmt.Errorf("containerproxy: unknown backend %q", cfg.Backend)
	}
}
