package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// envPrefix is the prefix for environment overrides. A double underscore
// separates nesting levels so single underscores survive inside key
// names: WPMIGRATE_LEGACY__HOST -> legacy.host,
// WPMIGRATE_CHUNK_SIZE -> chunk_size.
const envPrefix = "WPMIGRATE_"

// flagKeys maps CLI flag names to config keys. Flags not listed here are
// command-local and never enter the config.
var flagKeys = map[string]string{
	"chunk-size": "chunk_size",
	"state":      "state_path",
	"report-dir": "report_dir",
	"verbose":    "verbose",
}

// configFileUsed records which file the last Load read, for verbose
// output.
var configFileUsed string

// FileUsed returns the path of the config file the last Load read, or
// empty when none was found.
func FileUsed() string { return configFileUsed }

// findConfigFile finds the config file to use.
// Priority: explicit path > wpmigrate.yaml > wpmigrate.yml
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{"wpmigrate.yaml", "wpmigrate.yml"} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load merges configuration from defaults, an optional YAML file,
// WPMIGRATE_ environment variables, and explicitly set CLI flags, in
// ascending precedence.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	configFileUsed = ""

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalidConfig, configFileUsed, err)
		}
	} else if cfgFile != "" {
		return nil, fmt.Errorf("%w: config file %s not found", ErrInvalidConfig, cfgFile)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
