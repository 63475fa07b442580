package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gol50/internal/errors"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" validate:"required"`
	Server   ServerConfig   `yaml:"server" validate:"required"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

// AnalysisConfig holds the numeric settings of an L50 run
type AnalysisConfig struct {
	Model     string   `yaml:"model" validate:"required,oneof=glm gam glmm"`
	Target    string   `yaml:"target" validate:"required"`
	Response  string   `yaml:"response" validate:"required"`
	Auxiliary []string `yaml:"auxiliary"`
	Group     string   `yaml:"group"`
	Knots     int      `yaml:"knots" validate:"gte=0,lte=40"`
	Lambda    float64  `yaml:"lambda" validate:"gte=0"`

	Mode      string  `yaml:"mode" validate:"oneof=point_only gaussian bootstrap"`
	Threshold float64 `yaml:"threshold"`
	Lower     float64 `yaml:"lower"`
	Upper     float64 `yaml:"upper" validate:"gtfield=Lower"`

	Tolerance     float64       `yaml:"tolerance" validate:"gt=0"`
	MaxIterations int           `yaml:"max_iterations" validate:"gt=0"`
	SolveTimeout  time.Duration `yaml:"solve_timeout" validate:"gte=0"`

	GaussianSamples        int     `yaml:"gaussian_samples" validate:"gte=2"`
	BootstrapReplicates    int     `yaml:"bootstrap_replicates" validate:"gte=2"`
	UseFittedRandomEffects bool    `yaml:"use_fitted_random_effects"`
	ConfidenceLevel        float64 `yaml:"confidence_level" validate:"gt=0,lt=1"`
	GaussianInterval       string  `yaml:"gaussian_interval" validate:"oneof=normal percentile"`
	BootstrapInterval      string  `yaml:"bootstrap_interval" validate:"oneof=normal percentile"`
	MaxDroppedFraction     float64 `yaml:"max_dropped_fraction" validate:"gte=0,lt=1"`

	BatchTimeout time.Duration `yaml:"batch_timeout" validate:"gte=0"`
	Workers      int           `yaml:"workers" validate:"gt=0"`
	Seed         uint64        `yaml:"seed"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port         string        `yaml:"port" validate:"required"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig holds database connection settings. An empty URL
// disables result persistence.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int    `yaml:"max_idle_conns" validate:"gte=0"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level   string `yaml:"level" validate:"oneof=ERROR WARN INFO DEBUG TRACE"`
	NoColor bool   `yaml:"no_color"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Model:               "glm",
			Target:              "length",
			Response:            "mature",
			Mode:                "point_only",
			Lower:               0,
			Upper:               150,
			Tolerance:           1e-6,
			MaxIterations:       500,
			SolveTimeout:        5 * time.Second,
			GaussianSamples:     1000,
			BootstrapReplicates: 200,
			ConfidenceLevel:     0.95,
			GaussianInterval:    "normal",
			BootstrapInterval:   "percentile",
			MaxDroppedFraction:  0.10,
			BatchTimeout:        10 * time.Minute,
			Workers:             runtime.NumCPU(),
			Seed:                1,
		},
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Log: LogConfig{Level: "INFO"},
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by L50_CONFIG_FILE, then environment variables (a .env file in the working
// directory is loaded first if present). The result is validated.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to read .env file")
	}

	config := Defaults()
	if path := os.Getenv("L50_CONFIG_FILE"); path != "" {
		if err := loadFile(path, config); err != nil {
			return nil, err
		}
	}

	applyAnalysisEnv(&config.Analysis)
	applyServerEnv(&config.Server)
	applyDatabaseEnv(&config.Database)
	config.Log.Level = strings.ToUpper(getEnvOrDefault("LOG_LEVEL", config.Log.Level))
	config.Log.NoColor = getEnvBoolOrDefault("NO_COLOR", config.Log.NoColor)

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

func loadFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(errors.WithCode(errors.CodeConfigInvalid, err), "failed to read config file %s", path)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return errors.Wrapf(errors.WithCode(errors.CodeConfigInvalid, err), "failed to parse config file %s", path)
	}
	return nil
}

var validate = validator.New()

// Validate checks the struct tags of the configuration.
func Validate(config *Config) error {
	if err := validate.Struct(config); err != nil {
		var fieldErrs validator.ValidationErrors
		if stderrors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.ConfigInvalid("configuration validation failed: " + strings.Join(msgs, "; "))
		}
		return errors.Wrap(errors.WithCode(errors.CodeConfigInvalid, err), "configuration validation failed")
	}
	return nil
}

func applyAnalysisEnv(a *AnalysisConfig) {
	a.Model = getEnvOrDefault("L50_MODEL", a.Model)
	a.Target = getEnvOrDefault("L50_TARGET", a.Target)
	a.Response = getEnvOrDefault("L50_RESPONSE", a.Response)
	a.Auxiliary = getEnvListOrDefault("L50_AUXILIARY", a.Auxiliary)
	a.Group = getEnvOrDefault("L50_GROUP", a.Group)
	a.Knots = getEnvIntOrDefault("L50_KNOTS", a.Knots)
	a.Lambda = getEnvFloatOrDefault("L50_LAMBDA", a.Lambda)

	a.Mode = getEnvOrDefault("L50_MODE", a.Mode)
	a.Threshold = getEnvFloatOrDefault("L50_THRESHOLD", a.Threshold)
	a.Lower = getEnvFloatOrDefault("L50_LOWER", a.Lower)
	a.Upper = getEnvFloatOrDefault("L50_UPPER", a.Upper)

	a.Tolerance = getEnvFloatOrDefault("L50_TOLERANCE", a.Tolerance)
	a.MaxIterations = getEnvIntOrDefault("L50_MAX_ITERATIONS", a.MaxIterations)
	a.SolveTimeout = getEnvDurationOrDefault("L50_SOLVE_TIMEOUT", a.SolveTimeout)

	a.GaussianSamples = getEnvIntOrDefault("L50_GAUSSIAN_SAMPLES", a.GaussianSamples)
	a.BootstrapReplicates = getEnvIntOrDefault("L50_BOOTSTRAP_REPLICATES", a.BootstrapReplicates)
	a.UseFittedRandomEffects = getEnvBoolOrDefault("L50_USE_FITTED_RANDOM_EFFECTS", a.UseFittedRandomEffects)
	a.ConfidenceLevel = getEnvFloatOrDefault("L50_CONFIDENCE_LEVEL", a.ConfidenceLevel)
	a.GaussianInterval = getEnvOrDefault("L50_GAUSSIAN_INTERVAL", a.GaussianInterval)
	a.BootstrapInterval = getEnvOrDefault("L50_BOOTSTRAP_INTERVAL", a.BootstrapInterval)
	a.MaxDroppedFraction = getEnvFloatOrDefault("L50_MAX_DROPPED_FRACTION", a.MaxDroppedFraction)

	a.BatchTimeout = getEnvDurationOrDefault("L50_BATCH_TIMEOUT", a.BatchTimeout)
	a.Workers = getEnvIntOrDefault("L50_WORKERS", a.Workers)
	a.Seed = getEnvUintOrDefault("L50_SEED", a.Seed)
}

func applyServerEnv(s *ServerConfig) {
	s.Port = getEnvOrDefault("PORT", s.Port)
	s.ReadTimeout = getEnvDurationOrDefault("SERVER_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDurationOrDefault("SERVER_WRITE_TIMEOUT", s.WriteTimeout)
}

func applyDatabaseEnv(d *DatabaseConfig) {
	d.URL = getEnvOrDefault("DATABASE_URL", d.URL)
	d.MaxOpenConns = getEnvIntOrDefault("DB_MAX_OPEN_CONNS", d.MaxOpenConns)
	d.MaxIdleConns = getEnvIntOrDefault("DB_MAX_IDLE_CONNS", d.MaxIdleConns)
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUintOrDefault(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return uintValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma-separated value
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
