package plugins

import (
	"fmt"
	"regexp"
	"strings"
)

// nameCharset matches the characters allowed in a plugin or tool name:
// letters, digits, dash, underscore. Grounded on
// internal/plugins/discovery.go's path-traversal check, extended with
// the charset validation spec §4.3 names for plugin/tool names.
var nameCharset = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// dangerousShellPatterns are the shell metacharacters spec §4.3 calls
// out by name: chaining (&&, ||, ;), piping (|), and command
// substitution (backtick). Any one of these in a command template
// rejects the whole plugin.
var dangerousShellPatterns = []string{"&&", "||", ";", "|", "`"}

// validateName checks a plugin or tool name against the allowed
// charset.
func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s name is required", kind)
	}
	if !nameCharset.MatchString(name) {
		return fmt.Errorf("%s name %q contains characters outside [A-Za-z0-9_-]", kind, name)
	}
	return nil
}

// validateVersion checks that a version string is present. Spec §4.3
// only requires "non-empty", not a specific format (e.g. semver) — a
// plugin author's versioning scheme is their own business.
func validateVersion(version string) error {
	if strings.TrimSpace(version) == "" {
		return fmt.Errorf("version is required")
	}
	return nil
}

// validateCommandTemplate rejects a command template containing any
// shell metacharacter a subprocess invocation could use to escape the
// intended command (spec §4.3: "&& || ; | backtick"). This is the
// security-critical check: a single violating tool rejects the entire
// plugin, not just that one tool.
func validateCommandTemplate(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command template is required")
	}
	for _, pattern := range dangerousShellPatterns {
		if strings.Contains(command, pattern) {
			return fmt.Errorf("command template contains disallowed shell metacharacter %q", pattern)
		}
	}
	return nil
}

// validateToolManifest validates every field spec §4.3 names: the
// plugin name and version, and for every tool definition its name
// charset and command template.
func validateToolManifest(m *ToolManifest) error {
	if err := validateName("plugin", m.Name); err != nil {
		return err
	}
	if err := validateVersion(m.Version); err != nil {
		return err
	}
	if len(m.Tools) == 0 {
		return fmt.Errorf("plugin %q declares no tools", m.Name)
	}
	seen := make(map[string]struct{}, len(m.Tools))
	for _, t := range m.Tools {
		if err := validateName("tool", t.Name); err != nil {
			return fmt.Errorf("plugin %q: %w", m.Name, err)
		}
		if _, dup := seen[t.Name]; dup {
			return fmt.Errorf("plugin %q declares tool %q more than once", m.Name, t.Name)
		}
		seen[t.Name] = struct{}{}
		if err := validateCommandTemplate(t.Command); err != nil {
			return fmt.Errorf("plugin %q tool %q: %w", m.Name, t.Name, err)
		}
	}
	return nil
}

// validateChannelManifest validates a channel plugin's name, version,
// and binary path. The binary must not contain parent-directory
// components (spec §4.3) so a malicious manifest can't escape its own
// plugin directory.
func validateChannelManifest(m *ChannelManifest) error {
	if err := validateName("plugin", m.Name); err != nil {
		return err
	}
	if err := validateVersion(m.Version); err != nil {
		return err
	}
	if strings.TrimSpace(m.Binary) == "" {
		return fmt.Errorf("plugin %q: binary is required", m.Name)
	}
	if containsParentDirComponent(m.Binary) {
		return fmt.Errorf("plugin %q: binary %q must not contain parent-directory components", m.Name, m.Binary)
	}
	return nil
}

func containsParentDirComponent(path string) bool {
	for _, seg := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}
