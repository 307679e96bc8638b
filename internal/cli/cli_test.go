package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/governor/pkg/common/errors"
)

// execute runs the command line with args and returns the configuration
// handed to the run function.
func execute(t *testing.T, args ...string) (Config, bool, error) {
	t.Helper()

	var (
		got    Config
		called bool
	)
	cmd, err := NewRootCmd(func(_ context.Context, cfg Config, _ *zap.Logger) error {
		got = cfg
		called = true
		return nil
	})
	require.NoError(t, err)

	cmd.SetArgs(args)
	err = cmd.Execute()
	return got, called, err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "governor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, called, err := execute(t, "run")

	require.NoError(t, err)
	require.True(t, called)
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, time.Second, cfg.Interval)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 1, cfg.Request)
	assert.Equal(t, "", cfg.MetricsAddr)
	assert.Equal(t, "", cfg.Redis.Addr)
	assert.Equal(t, "governor.ticks", cfg.Redis.Channel)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Empty(t, cfg.CapacityPlan)
}

func TestFlags(t *testing.T) {
	cfg, _, err := execute(t, "run",
		"--capacity", "10",
		"--interval", "250ms",
		"--workers", "2",
		"--request", "3",
		"--metrics-addr", ":9090",
		"--capacity-plan", "0 0 9 * * *=10",
		"--capacity-plan", "0 18 * * 1,3,5=2",
		"--redis-addr", "localhost:6379",
		"--redis-channel", "ticks",
		"--log-format", "json",
		"--log-level", "debug",
	)

	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Capacity)
	assert.Equal(t, 250*time.Millisecond, cfg.Interval)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 3, cfg.Request)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, []string{"0 0 9 * * *=10", "0 18 * * 1,3,5=2"}, cfg.CapacityPlan)
	assert.Equal(t, RedisConfig{Addr: "localhost:6379", Channel: "ticks"}, cfg.Redis)
	assert.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("GOVERNOR_CAPACITY", "7")
	t.Setenv("GOVERNOR_INTERVAL", "5s")
	t.Setenv("GOVERNOR_REDIS_ADDR", "redis:6379")
	t.Setenv("GOVERNOR_LOG_LEVEL", "warn")

	cfg, _, err := execute(t, "run", "--capacity", "9")

	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Capacity, "flags take precedence over the environment")
	assert.Equal(t, 5*time.Second, cfg.Interval)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestConfigFile(t *testing.T) {
	path := writeConfig(t, `
capacity: 20
interval: 2s
workers: 2
capacity-plan:
  - "0 9 * * *=30"
  - "@midnight=5"
redis:
  addr: cache:6379
  channel: custom
  key: governor:latest
log:
  level: warn
`)

	cfg, _, err := execute(t, "run", "--config-file", path, "--workers", "3")

	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Capacity)
	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 3, cfg.Workers, "flags take precedence over the file")
	assert.Equal(t, []string{"0 9 * * *=30", "@midnight=5"}, cfg.CapacityPlan)
	assert.Equal(t, RedisConfig{Addr: "cache:6379", Channel: "custom", Key: "governor:latest"}, cfg.Redis)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestInvalidConfigFile(t *testing.T) {
	path := writeConfig(t, "capacity: [1, 2]\n")

	_, called, err := execute(t, "run", "--config-file", path)

	require.Error(t, err)
	assert.False(t, called)
	expectedErr := &mapstructure.Error{}
	assert.ErrorAs(t, err, &expectedErr)
}

func TestMissingConfigFile(t *testing.T) {
	_, called, err := execute(t, "run", "--config-file", filepath.Join(t.TempDir(), "missing.yaml"))

	require.Error(t, err)
	assert.False(t, called)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"zero capacity", []string{"--capacity", "0"}},
		{"short interval", []string{"--interval", "10us"}},
		{"no workers", []string{"--workers", "0"}},
		{"zero request", []string{"--request", "0"}},
		{"unknown log format", []string{"--log-format", "xml"}},
		{"bad capacity plan", []string{"--capacity-plan", "every morning"}},
		{"unknown log level", []string{"--log-level", "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, called, err := execute(t, append([]string{"run"}, tt.args...)...)
			require.Error(t, err)
			assert.False(t, called)
		})
	}
}

func TestValidateReturnsChanges(t *testing.T) {
	cfg := Config{
		Capacity:     1,
		Interval:     time.Second,
		Workers:      1,
		Request:      1,
		CapacityPlan: []string{"@hourly=4"},
		Log:          LogConfig{Format: "json"},
	}

	changes, err := cfg.Validate()
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, 4, changes[0].Capacity)

	cfg.Capacity = -1
	_, err = cfg.Validate()
	assert.True(t, errors.IsValidationError(err))
}

func TestUnexpectedArgs(t *testing.T) {
	_, called, err := execute(t, "run", "extra")

	require.Error(t, err)
	assert.False(t, called)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger(LogConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	_, err = NewLogger(LogConfig{Level: "verbose"})
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := Run(ctx, Config{
		Capacity:     2,
		Interval:     20 * time.Millisecond,
		Workers:      2,
		Request:      1,
		MetricsAddr:  "127.0.0.1:0",
		CapacityPlan: []string{"@hourly=4"},
		Redis:        RedisConfig{Addr: "127.0.0.1:1", Channel: "ticks"},
		Log:          LogConfig{Format: "console"},
	}, zap.New(core))

	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("governor started").Len())
	assert.Equal(t, 1, logs.FilterMessage("serving metrics").Len())
	assert.Equal(t, 1, logs.FilterMessage("next capacity change").Len())
	assert.Positive(t, logs.FilterMessage("tick").Len())
	assert.Positive(t, logs.FilterMessage("tick report failed").Len(), "unreachable redis is reported, not fatal")
	assert.Equal(t, 1, logs.FilterMessage("governor stopped").Len())
}

func TestRunInvalidConfig(t *testing.T) {
	err := Run(context.Background(), Config{}, zap.NewNop())
	assert.True(t, errors.IsValidationError(err))
}
