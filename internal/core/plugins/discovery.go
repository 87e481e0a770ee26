package plugins

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/haasonsaas/nexus/internal/zerrors"
)

// ToolPluginInfo pairs a validated ToolManifest with the directory it
// was discovered in.
type ToolPluginInfo struct {
	Manifest ToolManifest
	Dir      string
}

// ChannelPluginInfo pairs a validated ChannelManifest with the
// directory it was discovered in and the binary's resolved absolute
// path.
type ChannelPluginInfo struct {
	Manifest   ChannelManifest
	Dir        string
	BinaryPath string
}

// DiscoverToolPlugins walks each root in paths looking for
// ToolManifestFilename, one directory level deep (a plugin is one
// directory containing exactly one manifest — spec §4.3 describes no
// nested-plugin discovery). Each manifest is validated in full;
// a validation failure rejects that plugin only and is returned
// alongside whatever plugins did validate, so one broken plugin
// directory doesn't take down every other plugin on the same path.
func DiscoverToolPlugins(paths []string) ([]ToolPluginInfo, []error) {
	var infos []ToolPluginInfo
	var errs []error

	for _, root := range normalizeRoots(paths) {
		entries, err := os.ReadDir(root)
		if err != nil {
			if !os.IsNotExist(err) {
				errs = append(errs, fmt.Errorf("read plugin root %s: %w", root, err))
			}
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(root, entry.Name())
			manifestPath := filepath.Join(dir, ToolManifestFilename)
			if !fileExists(manifestPath) {
				continue
			}
			m, err := decodeToolManifest(manifestPath)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := validateToolManifest(m); err != nil {
				errs = append(errs, zerrors.Wrap(zerrors.SecurityViolation, "rejected plugin "+dir, err))
				continue
			}
			infos = append(infos, ToolPluginInfo{Manifest: *m, Dir: dir})
		}
	}
	return infos, errs
}

// DiscoverChannelPlugins is DiscoverToolPlugins's counterpart for
// channel plugins.
func DiscoverChannelPlugins(paths []string) ([]ChannelPluginInfo, []error) {
	var infos []ChannelPluginInfo
	var errs []error

	for _, root := range normalizeRoots(paths) {
		entries, err := os.ReadDir(root)
		if err != nil {
			if !os.IsNotExist(err) {
				errs = append(errs, fmt.Errorf("read plugin root %s: %w", root, err))
			}
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(root, entry.Name())
			manifestPath := filepath.Join(dir, ChannelManifestFilename)
			if !fileExists(manifestPath) {
				continue
			}
			m, err := decodeChannelManifest(manifestPath)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := validateChannelManifest(m); err != nil {
				errs = append(errs, zerrors.Wrap(zerrors.SecurityViolation, "rejected channel plugin "+dir, err))
				continue
			}
			infos = append(infos, ChannelPluginInfo{
				Manifest:   *m,
				Dir:        dir,
				BinaryPath: filepath.Join(dir, m.Binary),
			})
		}
	}
	return infos, errs
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func normalizeRoots(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(filepath.Clean(p))
		if err != nil {
			continue
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	}
	return out
}
