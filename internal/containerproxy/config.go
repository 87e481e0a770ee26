package containerproxy

import "time"

// Backend selects which container runtime spawns the agent subprocess.
type Backend string

const (
	// BackendAuto prefers the native runtime on macOS and falls back to
	// Docker everywhere else.
	BackendAuto Backend = "auto"
	// BackendDocker spawns the agent via the Docker Engine API.
	BackendDocker Backend = "docker"
	// BackendApple spawns the agent via macOS's native `container` CLI.
	BackendApple Backend = "apple"
)

// Config configures a Proxy. Mirrors the shape of the teacher's sandbox
// isolation config (internal/config.PluginIsolationConfig) generalized
// to the three-way Docker/Apple/Auto backend selection required here.
type Config struct {
	Backend Backend `yaml:"backend"`
	Image   string  `yaml:"image"`

	WorkspaceDir string `yaml:"workspace_dir"`
	SessionDir   string `yaml:"session_dir"`

	Timeout time.Duration `yaml:"timeout"`

	// Env carries provider credentials and other secrets passed into
	// the container. Never logged.
	Env map[string]string `yaml:"-"`
}

// DefaultTimeout is used when Config.Timeout is unset.
const DefaultTimeout = 120 * time.Second
