// Package config loads riskhypo settings from defaults, an optional
// riskhypo.yaml, a .env file and RISKHYPO_ environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"riskhypo/internal/errors"
)

// EnvPrefix is prepended to every environment override, e.g. RISKHYPO_ANALYSIS_ALPHA
const EnvPrefix = "RISKHYPO"

// Config holds the full application configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// AnalysisConfig configures the hypothesis battery.
type AnalysisConfig struct {
	Alpha float64 `yaml:"alpha" mapstructure:"alpha"`
}

// DataConfig locates the input file.
type DataConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	Sheet     string `yaml:"sheet" mapstructure:"sheet"`
}

// ReportConfig selects the output format.
type ReportConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// New returns a viper instance with defaults, file lookup and environment
// binding set up. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetConfigName("riskhypo")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("analysis.alpha", 0.05)
	v.SetDefault("data.path", "")
	v.SetDefault("data.delimiter", "")
	v.SetDefault("data.sheet", "")
	v.SetDefault("report.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	return v
}

// Load reads .env (if present) and the config file (if present) into v and
// returns the validated configuration.
func Load(v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.WithCode(errors.CodeConfigInvalid, eris.Wrap(err, "config: load .env"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.WithCode(errors.CodeConfigInvalid, eris.Wrap(err, "config: read file"))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, eris.Wrap(err, "config: unmarshal"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if err := ValidateAlpha(c.Analysis.Alpha); err != nil {
		return err
	}
	switch strings.ToLower(c.Report.Format) {
	case "text", "json", "yaml":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("report.format must be text, json or yaml, got %q", c.Report.Format))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return errors.ConfigInvalid(fmt.Sprintf("log.format must be json or console, got %q", c.Log.Format))
	}
	return nil
}

// ValidateAlpha requires 0 < alpha < 1.
func ValidateAlpha(alpha float64) error {
	if math.IsNaN(alpha) || alpha <= 0 || alpha >= 1 {
		return errors.ConfigInvalid(fmt.Sprintf("analysis.alpha must satisfy 0 < alpha < 1, got %v", alpha))
	}
	return nil
}

// InitLogger initializes the global zap logger. Logs go to stderr so the
// report on stdout stays clean.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.OutputPaths = []string{"stderr"}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
