package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"github.com/vytor/recall/internal/srs"
)

// EnvPrefix namespaces environment overrides: RECALL_DB_PATH sets db.path.
const EnvPrefix = "RECALL_"

type Config struct {
	Addr      string          `koanf:"addr" validate:"required"`
	DB        DBConfig        `koanf:"db"`
	Log       LogConfig       `koanf:"log"`
	Timezone  string          `koanf:"timezone" validate:"required"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Stats     StatsConfig     `koanf:"stats"`
	HTTP      HTTPConfig      `koanf:"http"`
}

type DBConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn warning error"`
	Color bool   `koanf:"color"`
}

type SchedulerConfig struct {
	DesiredRetention float64         `koanf:"desired_retention" validate:"gt=0,lte=1"`
	MaximumInterval  int             `koanf:"maximum_interval" validate:"gte=1"`
	LearningSteps    []time.Duration `koanf:"learning_steps"`
	RelearningSteps  []time.Duration `koanf:"relearning_steps"`
	EnableFuzz       bool            `koanf:"enable_fuzz"`
	FuzzSeed         int64           `koanf:"fuzz_seed"`
}

type StatsConfig struct {
	StreakGrace bool `koanf:"streak_grace"`
}

type HTTPConfig struct {
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`
}

// Load layers configuration from flag defaults, an optional YAML file
// (--config), a .env file plus RECALL_* environment variables, and finally
// flags set explicitly on the command line.
func Load(args []string) (Config, error) {
	fs := flagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	k := koanf.New(".")

	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// A missing .env is normal in production.
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	// Unchanged flags only fill keys no earlier layer set.
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return Config{}, fmt.Errorf("load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKey maps RECALL_SCHEDULER_DESIRED_RETENTION to scheduler.desired_retention.
// Only the first underscore after a section name becomes a dot.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range []string{"db", "log", "scheduler", "stats", "http"} {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

// envValue splits comma-separated step lists so they decode like YAML lists.
func envValue(name, value string) (string, any) {
	key := envKey(name)
	if !strings.HasSuffix(key, "_steps") {
		return key, value
	}
	steps := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			steps = append(steps, part)
		}
	}
	return key, steps
}

func flagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("recall", pflag.ContinueOnError)
	fs.String("config", "", "path to a YAML config file")
	fs.String("addr", ":8080", "HTTP listen address")
	fs.String("db.path", "recall.db", "SQLite database file")
	fs.String("log.level", "info", "log level (debug, info, warn, error)")
	fs.Bool("log.color", true, "colorize log output")
	fs.String("timezone", "UTC", "IANA zone used for day boundaries")
	fs.Float64("scheduler.desired_retention", 0.9, "target recall probability")
	fs.Int("scheduler.maximum_interval", 36500, "longest interval in days")
	fs.StringSlice("scheduler.learning_steps", []string{"1m", "10m"}, "learning steps")
	fs.StringSlice("scheduler.relearning_steps", []string{"10m"}, "relearning steps")
	fs.Bool("scheduler.enable_fuzz", false, "spread long intervals randomly")
	fs.Int64("scheduler.fuzz_seed", 0, "seed mixed into interval fuzz")
	fs.Bool("stats.streak_grace", false, "keep yesterday's streak alive until today ends")
	fs.Duration("http.read_timeout", 15*time.Second, "HTTP read timeout")
	fs.Duration("http.write_timeout", 30*time.Second, "HTTP write timeout")
	return fs
}

// Validate checks struct constraints plus the ones validator tags cannot express.
func (c Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Timezone, err)
	}
	if _, err := srs.New(c.Scheduler.SRS()); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location resolves Timezone. Validate has already checked it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SRS converts the scheduler section. Configured step lists are never nil, so
// an empty list means "no steps" rather than "use defaults".
func (c SchedulerConfig) SRS() srs.Config {
	learning := c.LearningSteps
	if learning == nil {
		learning = []time.Duration{}
	}
	relearning := c.RelearningSteps
	if relearning == nil {
		relearning = []time.Duration{}
	}
	return srs.Config{
		DesiredRetention: c.DesiredRetention,
		LearningSteps:    learning,
		RelearningSteps:  relearning,
		MaximumInterval:  c.MaximumInterval,
		EnableFuzz:       c.EnableFuzz,
		FuzzSeed:         c.FuzzSeed,
	}
}
