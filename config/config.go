package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"reflect"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
)

// Version is filled at compile time with the git version of cydime
var Version = "undefined"

// ExactVersion is filled at compile time with the git commit of cydime
var ExactVersion = "undefined"

// globalConfigPath is the last place a config file is searched for
const globalConfigPath = "/etc/cydime/config.yaml"

type (
	//Config holds the configuration for the running system
	Config struct {
		R RunningCfg
		S StaticCfg
		T TableCfg
	}
)

// LoadConfig retrieves a configuration in order of precedence: the given
// path, the user's ~/.cydime/config.yaml, then /etc/cydime/config.yaml
func LoadConfig(cfgPath string) (*Config, error) {
	if cfgPath == "" {
		cfgPath = defaultConfigPath()
	}

	cfgFile, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, err
	}

	// an optional .env next to the config file feeds the env expansion
	envPath := filepath.Join(filepath.Dir(cfgPath), ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	return loadConfigBytes(cfgFile)
}

// loadConfigBytes builds a Config from the yaml contents of a config file
func loadConfigBytes(cfgFile []byte) (*Config, error) {
	config := &Config{}

	// Initialize table config to the default values
	if err := defaults.Set(&config.T); err != nil {
		return nil, err
	}

	// Initialize static config to the default values
	if err := defaults.Set(&config.S); err != nil {
		return nil, err
	}

	if err := parseStaticConfig(cfgFile, &config.S); err != nil {
		return nil, err
	}

	// Use the static config to initialize the running config
	if err := initRunningConfig(&config.S, &config.R); err != nil {
		return nil, err
	}

	return config, nil
}

// defaultConfigPath returns the user's config if it exists, otherwise the
// global config path
func defaultConfigPath() string {
	usr, err := user.Current()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not get user info: %s\n", err.Error())
		return globalConfigPath
	}

	userPath := filepath.Join(usr.HomeDir, ".cydime", "config.yaml")
	if _, err := os.Stat(userPath); err == nil {
		return userPath
	}
	return globalConfigPath
}

// expandConfig expands environment variables in config strings
func expandConfig(reflected reflect.Value) {
	for i := 0; i < reflected.NumField(); i++ {
		f := reflected.Field(i)
		// process sub configs
		if f.Kind() == reflect.Struct {
			expandConfig(f)
		} else if f.Kind() == reflect.String {
			f.SetString(os.ExpandEnv(f.String()))
		} else if f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.String {
			strs := f.Interface().([]string)
			for i, str := range strs {
				strs[i] = os.ExpandEnv(str)
			}
			f.Set(reflect.ValueOf(strs))
		}
	}
}
