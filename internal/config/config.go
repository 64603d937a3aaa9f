// Package config loads lspdock's configuration: a TOML file overridden
// by CLI flags, with $CWD/$PARENT/$HOME variable expansion and a
// derived use_docker flag, plus a watcher that republishes a fresh
// immutable snapshot on file change.
//
// Grounded on the teacher's cmd/lsp-proxy/main.go flag wiring and
// lsp/types.go's struct-tag-driven decoding style; the TOML source and
// variable expansion are restored from original_source/src/config/.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"

	"rockerboo/lspdock/internal/logger"
)

// Config is the proxy's resolved, immutable-after-startup
// configuration (spec.md §3).
type Config struct {
	ContainerID            string
	HostWorkspacePath      string
	ContainerWorkspacePath string
	Executable             string
	Pattern                string
	PatchPIDBinaries       []string
	LogLevel               string
	EncodedLocalPath       string

	// UseDocker is derived, never set directly: cwd contains Pattern.
	UseDocker bool
}

// PatchPIDBinariesSet returns PatchPIDBinaries as a lookup set, the
// shape internal/proxy.Config wants.
func (c *Config) PatchPIDBinariesSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.PatchPIDBinaries))
	for _, b := range c.PatchPIDBinaries {
		set[b] = struct{}{}
	}
	return set
}

// fileConfig mirrors the TOML file's shape; toml tags match the
// original Rust source's field names (src/config/provider.rs).
type fileConfig struct {
	ContainerID            string   `toml:"container_id"`
	HostWorkspacePath      string   `toml:"host_workspace_path"`
	ContainerWorkspacePath string   `toml:"container_workspace_path"`
	Executable             string   `toml:"executable"`
	Pattern                string   `toml:"pattern"`
	PatchPIDBinaries       []string `toml:"patch_pid_binaries"`
	LogLevel               string   `toml:"log_level"`
	EncodedLocalPath       string   `toml:"encoded_local_path"`
}

// ResolvePath returns the config file lspdock would load: a
// project-local lspdock.toml in the current working directory, or
// failing that, $HOME/.config/lspdock/lspdock.toml. Returns "" if
// neither exists.
func ResolvePath() string {
	if cwd, err := os.Getwd(); err == nil {
		local := filepath.Join(cwd, "lspdock.toml")
		if _, err := os.Stat(local); err == nil {
			return local
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		global := filepath.Join(home, ".config", "lspdock", "lspdock.toml")
		if _, err := os.Stat(global); err == nil {
			return global
		}
	}
	return ""
}

// Load reads the resolved TOML file (if any), expands $CWD/$PARENT/
// $HOME in every string field, parses the given CLI args over it (args
// win over file values), derives UseDocker, and returns the resolved
// Config plus any trailing arguments after a literal "--" separator,
// which are forwarded verbatim to the child process.
func Load(args []string) (*Config, []string, error) {
	var fc fileConfig
	if path := ResolvePath(); path != "" {
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return nil, nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		logger.Debug("config: loaded file", "path", path)
	}
	expandStrings(&fc)

	cfg := &Config{
		ContainerID:            fc.ContainerID,
		HostWorkspacePath:      fc.HostWorkspacePath,
		ContainerWorkspacePath: fc.ContainerWorkspacePath,
		Executable:             fc.Executable,
		Pattern:                fc.Pattern,
		PatchPIDBinaries:       fc.PatchPIDBinaries,
		LogLevel:               fc.LogLevel,
		EncodedLocalPath:       fc.EncodedLocalPath,
	}

	forwardArgs, err := applyFlags(cfg, args)
	if err != nil {
		return nil, nil, err
	}

	cfg.UseDocker = cfg.Pattern != "" && cwdMatchesPattern(cfg.Pattern)

	return cfg, forwardArgs, nil
}

func cwdMatchesPattern(pattern string) bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}
	return strings.Contains(cwd, pattern)
}

// applyFlags parses args with the standard flag package, overriding
// cfg's fields when set, and returns anything after a bare "--" for
// the child process. Mirrors cmd/lsp-proxy/main.go's flag wiring.
func applyFlags(cfg *Config, args []string) ([]string, error) {
	var childArgs []string
	for i, a := range args {
		if a == "--" {
			childArgs = args[i+1:]
			args = args[:i]
			break
		}
	}

	fs := flag.NewFlagSet("lspdock", flag.ContinueOnError)
	containerID := fs.String("container-id", cfg.ContainerID, "docker container id or name")
	hostPath := fs.String("host-workspace-path", cfg.HostWorkspacePath, "workspace root on the host")
	containerPath := fs.String("container-workspace-path", cfg.ContainerWorkspacePath, "workspace root inside the container")
	executable := fs.String("executable", cfg.Executable, "language server executable")
	pattern := fs.String("pattern", cfg.Pattern, "substring matched against cwd to enable docker mode")
	patchPIDBinaries := fs.String("patch-pid-binaries", strings.Join(cfg.PatchPIDBinaries, ","), "comma-separated executable basenames needing pid patch")
	logLevel := fs.String("log-level", cfg.LogLevel, "trace|debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parse flags: %w", err)
	}

	cfg.ContainerID = *containerID
	cfg.HostWorkspacePath = *hostPath
	cfg.ContainerWorkspacePath = *containerPath
	cfg.Executable = *executable
	cfg.Pattern = *pattern
	cfg.LogLevel = *logLevel
	if *patchPIDBinaries != "" {
		cfg.PatchPIDBinaries = strings.Split(*patchPIDBinaries, ",")
	}

	return childArgs, nil
}

// expandVariables replaces $CWD, $PARENT, and $HOME with the current
// working directory, its basename, and the user's home directory.
func expandVariables(s string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	cwd, _ := os.Getwd()
	home, _ := os.UserHomeDir()
	parent := filepath.Base(cwd)
	return strings.NewReplacer(
		"$CWD", cwd,
		"$PARENT", parent,
		"$HOME", home,
	).Replace(s)
}

// expandStrings walks every exported string (and []string) field of
// fc and expands variables in place, so a field added later doesn't
// silently skip expansion.
func expandStrings(fc *fileConfig) {
	v := reflect.ValueOf(fc).Elem()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		switch field.Kind() {
		case reflect.String:
			field.SetString(expandVariables(field.String()))
		case reflect.Slice:
			if field.Type().Elem().Kind() != reflect.String {
				continue
			}
			for j := 0; j < field.Len(); j++ {
				elem := field.Index(j)
				elem.SetString(expandVariables(elem.String()))
			}
		}
	}
}
