package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"contxt/pkg/flatten"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ConfigFileName is looked up in the working directory unless --config is
// given.
const ConfigFileName = "contxt"

const envPrefix = "CONTXT"

// settings is the merged configuration of a flatten invocation.
type settings struct {
	InputDir       string   `mapstructure:"input_dir"`
	OutputDir      string   `mapstructure:"output_dir"`
	Include        []string `mapstructure:"include"`
	Exclude        []string `mapstructure:"exclude"`
	IgnoreDirs     []string `mapstructure:"ignore_dirs"`
	MaxFileSize    int64    `mapstructure:"max_file_size"`
	MaxOutputSize  int64    `mapstructure:"max_output_size"`
	FollowSymlinks bool     `mapstructure:"follow_symlinks"`
	IncludeIgnored bool     `mapstructure:"include_ignored"`
	StructureOnly  bool     `mapstructure:"structure_only"`
	Workers        int      `mapstructure:"workers"`
	BaseName       string   `mapstructure:"base_name"`
}

// flagKeys maps flatten flags to their configuration keys.
var flagKeys = map[string]string{
	"include":         "include",
	"exclude":         "exclude",
	"max-file-size":   "max_file_size",
	"max-output-size": "max_output_size",
	"follow-symlinks": "follow_symlinks",
	"include-ignored": "include_ignored",
	"structure-only":  "structure_only",
	"workers":         "workers",
	"base-name":       "base_name",
}

// loadSettings merges, from lowest to highest precedence, the defaults, the
// config file, the selected action table, CONTXT_* environment variables,
// explicitly set flags and the positional directories.
func loadSettings(flags *pflag.FlagSet, configFile, action string, args []string, logger *zap.Logger) (settings, error) {
	var s settings
	v := viper.New()

	v.SetDefault("input_dir", ".")
	v.SetDefault("output_dir", "")
	v.SetDefault("include", []string{})
	v.SetDefault("exclude", []string{})
	v.SetDefault("ignore_dirs", []string{})
	v.SetDefault("max_file_size", flatten.DefaultMaxFileSize)
	v.SetDefault("max_output_size", flatten.DefaultMaxOutputSize)
	v.SetDefault("follow_symlinks", false)
	v.SetDefault("include_ignored", false)
	v.SetDefault("structure_only", false)
	v.SetDefault("workers", 0)
	v.SetDefault("base_name", "")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err == nil {
		logger.Debug("Using config file", zap.String("file", v.ConfigFileUsed()))
	} else {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return s, fmt.Errorf("failed to read config file: %w", err)
		}
		logger.Debug("No config file found, using defaults and flags")
	}

	if action != "" {
		if err := applyAction(v, action); err != nil {
			return s, err
		}
		logger.Debug("Applied action", zap.String("action", action))
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return s, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}
	if len(args) > 0 {
		v.Set("input_dir", args[0])
	}
	if len(args) > 1 {
		v.Set("output_dir", args[1])
	}

	if err := v.Unmarshal(&s); err != nil {
		return s, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return s, nil
}

// applyAction merges the [actions.<name>] table over the config file values.
// Its ignore_dirs extend the base list instead of replacing it.
func applyAction(v *viper.Viper, name string) error {
	sub := v.Sub("actions." + name)
	if sub == nil {
		return fmt.Errorf("unknown action %q", name)
	}
	overrides := sub.AllSettings()
	if sub.IsSet("ignore_dirs") {
		overrides["ignore_dirs"] = append(v.GetStringSlice("ignore_dirs"), sub.GetStringSlice("ignore_dirs")...)
	}
	if err := v.MergeConfigMap(overrides); err != nil {
		return fmt.Errorf("failed to apply action %q: %w", name, err)
	}
	return nil
}

// flattenConfig converts the merged settings into the pipeline options.
// Configured excludes and ignore_dirs add to the default exclude list.
func (s settings) flattenConfig() (flatten.Config, error) {
	root, err := filepath.Abs(s.InputDir)
	if err != nil {
		return flatten.Config{}, fmt.Errorf("failed to resolve input directory: %w", err)
	}
	out := s.OutputDir
	if out == "" {
		out = defaultOutputDir(root)
	}

	cfg := flatten.DefaultConfig(root, out)
	cfg.Include = s.Include
	cfg.Exclude = append(cfg.Exclude, s.Exclude...)
	for _, d := range s.IgnoreDirs {
		if d = strings.Trim(d, "/"); d != "" {
			cfg.Exclude = append(cfg.Exclude, "**/"+d)
		}
	}
	cfg.MaxFileSize = s.MaxFileSize
	cfg.MaxOutputSize = s.MaxOutputSize
	cfg.FollowSymlinks = s.FollowSymlinks
	cfg.RespectIgnoreFiles = !s.IncludeIgnored
	cfg.StructureOnly = s.StructureOnly
	cfg.Workers = s.Workers
	cfg.OutputBaseName = s.BaseName
	return cfg, nil
}

// defaultOutputDir is .local/contxt/<root name> under the working directory.
func defaultOutputDir(root string) string {
	return filepath.Join(".local", "contxt", filepath.Base(root))
}
