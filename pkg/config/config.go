// Package config loads and saves the persisted configuration file used by
// the covtrace command line tool.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".covtrace"
	configFile string = "config.yml"
)

// WildcardRule is a single include/exclude wildcard pattern.
type WildcardRule struct {
	Pattern string `yaml:"pattern"`
	Exclude bool   `yaml:"exclude,omitempty"`
}

// UnifiedDiffRule describes one --input-diff/--diff-root pairing that
// scopes coverage to the lines touched by a unified diff file.
type UnifiedDiffRule struct {
	DiffPath string `yaml:"diff-path"`
	RootDir  string `yaml:"root-dir,omitempty"`
}

// Config defines all configuration options available to be set through the
// config file, in addition to whatever is passed on the command line.
type Config struct {
	// ModuleFilters are wildcard rules applied to module (executable/DLL)
	// filenames.
	ModuleFilters []WildcardRule `yaml:"module-filters"`
	// SourceFilters are wildcard rules applied to source file paths.
	SourceFilters []WildcardRule `yaml:"source-filters"`
	// UnifiedDiffs are the diff-scoped filters to intersect with the
	// wildcard filters.
	UnifiedDiffs []UnifiedDiffRule `yaml:"unified-diffs"`

	// CoverChildren mirrors debugloop.Options.CoverChildren.
	CoverChildren bool `yaml:"cover-children"`
	// ContinueAfterCppException mirrors debugloop.Options.ContinueAfterCppException.
	ContinueAfterCppException bool `yaml:"continue-after-cpp-exception"`
	// StopOnAssert mirrors debugloop.Options.StopOnAssert.
	StopOnAssert bool `yaml:"stop-on-assert"`
	// DumpOnCrash mirrors debugloop.Options.DumpOnCrash.
	DumpOnCrash bool `yaml:"dump-on-crash"`
	// DumpDirectory mirrors debugloop.Options.DumpDirectory.
	DumpDirectory string `yaml:"dump-directory"`

	// MaxUnmatchedPathsForWarning bounds how many unmatched diff paths are
	// listed by covfilter.Manager.ComputeWarningMessageLines.
	MaxUnmatchedPathsForWarning int `yaml:"max-unmatched-paths-for-warning"`
}

// LoadConfig attempts to populate a Config object from the config.yml file,
// creating a default one on first run. Errors are reported to stderr and a
// zero-value Config is returned: a missing or unreadable config must never
// prevent the tool from running.
func LoadConfig() *Config {
	if err := createConfigPath(); err != nil {
		fmt.Fprintf(os.Stderr, "Could not create config directory: %v.\n", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to get config file path: %v.\n", err)
		return &Config{}
	}

	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating default config file: %v\n", err)
			return &Config{}
		}
	}
	defer func() {
		if err := f.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Closing config file failed: %v.\n", err)
		}
	}()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Unable to read config data: %v.\n", err)
		return &Config{}
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		fmt.Fprintf(os.Stderr, "Unable to decode config file: %v.\n", err)
		return &Config{}
	}
	return &c
}

// SaveConfig marshals and saves the config struct to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(fullConfigFile)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

func createDefaultConfig(p string) (*os.File, error) {
	f, err := os.Create(p)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	if err := writeDefaultConfig(f); err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for covtrace.
#
# This is the default configuration file. Available options are provided,
# but disabled. Delete the leading hash mark to enable an item.

# Wildcard rules applied to module (executable/DLL) filenames. An empty
# list means "no restriction".
module-filters:
  # - {pattern: "*.dll", exclude: true}

# Wildcard rules applied to source file paths.
source-filters:
  # - {pattern: "*/vendor/*", exclude: true}

# Diff-scoped filters. When present, only files/lines touched by at least
# one of these unified diffs are eligible for coverage.
unified-diffs:
  # - {diff-path: "changes.diff", root-dir: "."}

cover-children: false
continue-after-cpp-exception: false
stop-on-assert: false
dump-on-crash: false
dump-directory: "."

max-unmatched-paths-for-warning: 10
`)
	return err
}

// createConfigPath creates the directory structure at which config files
// are saved.
func createConfigPath() error {
	p, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(p, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	userHomeDir := "."
	if usr, err := user.Current(); err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDir, file), nil
}
