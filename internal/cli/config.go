package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/vnykmshr/governor/pkg/common/validation"
	"github.com/vnykmshr/governor/pkg/ratelimit/bucket"
	"github.com/vnykmshr/governor/pkg/ratelimit/report"
	"github.com/vnykmshr/governor/pkg/scheduling/capacity"
)

// EnvPrefix prefixes environment overrides, e.g. GOVERNOR_CAPACITY or
// GOVERNOR_REDIS_ADDR.
const EnvPrefix = "GOVERNOR"

// Config is the configuration of "governor run". It is assembled from flags,
// environment variables and an optional YAML file, in that order of precedence.
type Config struct {
	Capacity     int           `yaml:"capacity"`
	Interval     time.Duration `yaml:"interval"`
	Workers      int           `yaml:"workers"`
	Request      int           `yaml:"request"`
	MetricsAddr  string        `yaml:"metrics-addr"`
	CapacityPlan []string      `yaml:"capacity-plan"`
	Redis        RedisConfig   `yaml:"redis"`
	Log          LogConfig     `yaml:"log"`
}

// RedisConfig enables publishing tick reports to Redis.
type RedisConfig struct {
	// Addr is host:port of the server. Empty disables the reporter.
	Addr    string `yaml:"addr"`
	Channel string `yaml:"channel"`
	Key     string `yaml:"key"`
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// flag name -> viper key
var flagKeys = map[string]string{
	"capacity":      "capacity",
	"interval":      "interval",
	"workers":       "workers",
	"request":       "request",
	"metrics-addr":  "metrics-addr",
	"capacity-plan": "capacity-plan",
	"redis-addr":    "redis.addr",
	"redis-channel": "redis.channel",
	"redis-key":     "redis.key",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

// BindFlags registers the run flags on flagSet and binds them into a new
// viper instance.
func BindFlags(flagSet *pflag.FlagSet) (*viper.Viper, error) {
	flagSet.Int("capacity", 1, "Tokens made available every interval.")
	flagSet.Duration("interval", time.Second, "Replenishment interval.")
	flagSet.Int("workers", 4, "Number of consumer workers sharing the bucket.")
	flagSet.Int("request", 1, "Tokens each worker asks for per iteration.")
	flagSet.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090.")
	flagSet.StringArray("capacity-plan", nil, `Scheduled capacity changes as "<cron>=<capacity>", e.g. "0 0 9 * * *=10".`)
	flagSet.String("redis-addr", "", "Publish tick reports to the Redis server at this address.")
	flagSet.String("redis-channel", report.DefaultChannel, "Redis pub/sub channel for tick reports.")
	flagSet.String("redis-key", "", "Optional Redis hash holding the latest report of every bucket.")
	flagSet.String("log-level", "info", "Log level: debug, info, warn or error.")
	flagSet.String("log-format", "console", "Log format: console or json.")

	v := viper.New()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flagSet.Lookup(name)); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// DecodeHook converts strings from flags, env and YAML into Config fields.
func DecodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// Load reads the optional YAML file into v and decodes the merged result.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error while reading the config file: %w", err)
		}
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(DecodeHook()), func(decoderConfig *mapstructure.DecoderConfig) {
		decoderConfig.TagName = "yaml"
	})
	if err != nil {
		return Config{}, fmt.Errorf("error while unmarshaling the config: %w", err)
	}
	return cfg, nil
}

// Validate checks cfg and parses its capacity plan.
func (cfg Config) Validate() ([]capacity.Change, error) {
	if err := validation.ValidatePositive("cli", "capacity", cfg.Capacity); err != nil {
		return nil, err
	}
	if err := validation.ValidateMinDuration("cli", "interval", cfg.Interval, bucket.MinInterval); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("cli", "workers", cfg.Workers); err != nil {
		return nil, err
	}
	if err := validation.ValidatePositive("cli", "request", cfg.Request); err != nil {
		return nil, err
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return nil, fmt.Errorf("cli: unknown log format %q", cfg.Log.Format)
	}

	changes := make([]capacity.Change, 0, len(cfg.CapacityPlan))
	for _, s := range cfg.CapacityPlan {
		c, err := capacity.ParseChange(s)
		if err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, nil
}
