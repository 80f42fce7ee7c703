package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix        = "ASYNCGEN"
	defaultClassName = "AsyncExtensions"
	outputSuffix     = ".AsyncExtensions.cs"
	namespaceSuffix  = ".Extensions"
)

// Options holds everything a generation run needs. Keys match the command
// line flag names so flags, environment and config file share one namespace.
type Options struct {
	Library   string   `yaml:"library" mapstructure:"library"`
	Output    string   `yaml:"out" mapstructure:"out"`
	Doc       string   `yaml:"doc" mapstructure:"doc"`
	DocFile   string   `yaml:"docfile" mapstructure:"docfile"`
	Namespace string   `yaml:"namespace" mapstructure:"namespace"`
	Class     string   `yaml:"class" mapstructure:"class"`
	Probe     []string `yaml:"probe" mapstructure:"probe"`
	NuGet     string   `yaml:"nuget" mapstructure:"nuget"`
	CacheDir  string   `yaml:"cache-dir" mapstructure:"cache-dir"`
	Fixture   string   `yaml:"fixture" mapstructure:"fixture"`
	LogLevel  string   `yaml:"log-level" mapstructure:"log-level"`
	LogFormat string   `yaml:"log-format" mapstructure:"log-format"`
}

// DefaultOptions returns the options used when nothing overrides them. Values
// derived from the library path are filled in by ResolveDefaults.
func DefaultOptions() *Options {
	return &Options{
		Doc:       "yes",
		Class:     defaultClassName,
		Probe:     []string{},
		CacheDir:  defaultCacheDir(),
		LogLevel:  "info",
		LogFormat: "console",
	}
}

// Load merges defaults, the optional config file, ASYNCGEN_* environment
// variables and the changed command line flags, in increasing priority.
func Load(configPath string, flags *pflag.FlagSet) (*Options, error) {
	options := DefaultOptions()

	v := viper.New()
	v.SetDefault("doc", options.Doc)
	v.SetDefault("class", options.Class)
	v.SetDefault("probe", options.Probe)
	v.SetDefault("cache-dir", options.CacheDir)
	v.SetDefault("log-level", options.LogLevel)
	v.SetDefault("log-format", options.LogFormat)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	if err := v.Unmarshal(options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return options, nil
}

// ResolveDefaults fills the options derived from the library path.
func (o *Options) ResolveDefaults() {
	if o.Library == "" {
		return
	}
	if o.Output == "" {
		o.Output = DefaultOutputPath(o.Library)
	}
	if o.DocFile == "" {
		o.DocFile = DefaultDocPath(o.Library)
	}
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace(o.Library)
	}
	if o.Class == "" {
		o.Class = defaultClassName
	}
}

// Validate checks the options of a generation run.
func (o *Options) Validate() error {
	if o.Library == "" && o.NuGet == "" {
		return fmt.Errorf("library path cannot be empty")
	}
	if _, err := ParseYesNo(o.Doc); err != nil {
		return fmt.Errorf("invalid doc option: %w", err)
	}
	if o.LogFormat != "console" && o.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'console' or 'json')", o.LogFormat)
	}
	if o.Namespace == "" || o.Class == "" {
		return fmt.Errorf("namespace and class names cannot be empty")
	}
	return nil
}

// MigrateDocs reports whether documentation should be migrated.
func (o *Options) MigrateDocs() bool {
	enabled, err := ParseYesNo(o.Doc)
	return err == nil && enabled
}

// YAML renders the options as a YAML document.
func (o *Options) YAML() (string, error) {
	data, err := yaml.Marshal(o)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// ParseYesNo accepts yes/no and true/false in any case.
func ParseYesNo(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "true":
		return true, nil
	case "no", "false":
		return false, nil
	default:
		return false, fmt.Errorf("'%s' is neither yes nor no", value)
	}
}

// DefaultOutputPath places the generated file next to the library.
func DefaultOutputPath(libraryPath string) string {
	return filepath.Join(filepath.Dir(libraryPath), libraryName(libraryPath)+outputSuffix)
}

// DefaultDocPath is the library path with its extension replaced by .xml.
func DefaultDocPath(libraryPath string) string {
	return strings.TrimSuffix(libraryPath, filepath.Ext(libraryPath)) + ".xml"
}

func DefaultNamespace(libraryPath string) string {
	return libraryName(libraryPath) + namespaceSuffix
}

func libraryName(libraryPath string) string {
	base := filepath.Base(libraryPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "asyncgen")
	}
	return filepath.Join(dir, "asyncgen")
}
