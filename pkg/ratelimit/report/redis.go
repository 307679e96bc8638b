package report

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/governor/pkg/common/errors"
	"github.com/vnykmshr/governor/pkg/ratelimit/bucket"
)

const module = "report"

// DefaultChannel is the pub/sub channel used when RedisConfig.Channel is empty.
const DefaultChannel = "governor.ticks"

// Message is the JSON document published for every tick.
type Message struct {
	Bucket    string    `json:"bucket"`
	Instance  string    `json:"instance"`
	Time      time.Time `json:"time"`
	Capacity  int       `json:"capacity"`
	Available int       `json:"available"`
	Granted   int       `json:"granted"`
	Returned  int       `json:"returned"`
	Waiting   int       `json:"waiting"`
}

// NewMessage builds the message for one report.
func NewMessage(name, instance string, r bucket.Report) Message {
	return Message{
		Bucket:    name,
		Instance:  instance,
		Time:      r.Time,
		Capacity:  r.Capacity,
		Available: r.Available,
		Granted:   r.Granted,
		Returned:  r.Returned,
		Waiting:   r.Waiting,
	}
}

// RedisConfig holds configuration for a RedisReporter.
type RedisConfig struct {
	// Client publishes the reports. Required.
	Client redis.UniversalClient

	// Channel is the pub/sub channel. Defaults to DefaultChannel.
	Channel string

	// Key, if set, also stores the latest message of every bucket in a
	// hash at Key, one field per "<bucket>/<instance>".
	Key string

	// KeyTTL is the expiry refreshed on Key after every report (defaults to 1 hour).
	KeyTTL time.Duration

	// Instance identifies this process in messages. Generated if empty.
	Instance string
}

// RedisReporter publishes tick reports to Redis. It is write-only: nothing
// it publishes is ever read back by a bucket.
type RedisReporter struct {
	client   redis.UniversalClient
	channel  string
	key      string
	keyTTL   time.Duration
	instance string
}

// NewRedisReporter validates config and returns a reporter.
func NewRedisReporter(config RedisConfig) (*RedisReporter, error) {
	if config.Client == nil {
		return nil, errors.NewValidationError(module, "client", nil, "redis client is required")
	}
	if config.Channel == "" {
		config.Channel = DefaultChannel
	}
	if config.KeyTTL == 0 {
		config.KeyTTL = time.Hour
	}
	if config.Instance == "" {
		config.Instance = generateInstanceID()
	}

	return &RedisReporter{
		client:   config.Client,
		channel:  config.Channel,
		key:      config.Key,
		keyTTL:   config.KeyTTL,
		instance: config.Instance,
	}, nil
}

// Instance returns the instance identifier put into every message.
func (rr *RedisReporter) Instance() string {
	return rr.instance
}

// Report publishes r on the configured channel.
func (rr *RedisReporter) Report(ctx context.Context, name string, r bucket.Report) error {
	payload, err := json.Marshal(NewMessage(name, rr.instance, r))
	if err != nil {
		return errors.NewOperationError(module, "Report", err)
	}

	pipe := rr.client.Pipeline()
	pipe.Publish(ctx, rr.channel, payload)
	if rr.key != "" {
		pipe.HSet(ctx, rr.key, name+"/"+rr.instance, payload)
		pipe.Expire(ctx, rr.key, rr.keyTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return &RedisError{Operation: "publish", Err: err}
	}
	return nil
}

// RedisError represents a Redis operation error.
type RedisError struct {
	Operation string
	Err       error
}

func (e *RedisError) Error() string {
	return "redis error in " + e.Operation + ": " + e.Err.Error()
}

func (e *RedisError) Unwrap() error {
	return e.Err
}

// generateInstanceID creates a unique identifier for this process.
func generateInstanceID() string {
	hostname, _ := os.Hostname()

	randomBytes := make([]byte, 4)
	_, _ = rand.Read(randomBytes)

	return fmt.Sprintf("%s-%d-%x", hostname, os.Getpid(), randomBytes)
}
