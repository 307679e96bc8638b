package capacity

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vnykmshr/governor/pkg/common/errors"
	"github.com/vnykmshr/governor/pkg/common/validation"
	"github.com/vnykmshr/governor/pkg/metrics"
)

const module = "capacity"

// parser accepts 5 or 6 fields (seconds optional) and descriptors such as
// "@hourly" or "@every 30m".
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Target is anything whose capacity can be changed, such as a bucket.Limiter.
type Target interface {
	SetCapacity(capacity int) error
}

// Change sets Capacity whenever Schedule fires.
type Change struct {
	Schedule string
	Capacity int
}

func (c Change) String() string {
	return c.Schedule + "=" + strconv.Itoa(c.Capacity)
}

// ParseChange parses "<cron expression>=<capacity>", for example
// "0 9 * * MON-FRI=100".
func ParseChange(s string) (Change, error) {
	i := strings.LastIndex(s, "=")
	if i < 0 {
		return Change{}, errors.NewValidationError(module, "change", s, "missing '='").
			WithHint(`use "<cron expression>=<capacity>", e.g. "0 9 * * *=10"`)
	}

	spec := strings.TrimSpace(s[:i])
	capacity, err := strconv.Atoi(strings.TrimSpace(s[i+1:]))
	if err != nil {
		return Change{}, errors.NewValidationError(module, "capacity", s[i+1:], "not an integer")
	}

	change := Change{Schedule: spec, Capacity: capacity}
	if err := change.validate(); err != nil {
		return Change{}, err
	}
	return change, nil
}

func (c Change) validate() error {
	if err := validation.ValidateNotEmpty(module, "schedule", c.Schedule); err != nil {
		return err
	}
	if err := validation.ValidatePositive(module, "capacity", c.Capacity); err != nil {
		return err
	}
	if _, err := parser.Parse(c.Schedule); err != nil {
		return errors.NewValidationError(module, "schedule", c.Schedule, err.Error())
	}
	return nil
}

// Config holds configuration for a Plan.
type Config struct {
	// Name identifies the plan in logs and metrics.
	Name string

	// Target receives the capacity changes. Required.
	Target Target

	// Changes are the scheduled capacity changes.
	Changes []Change

	// Location is the time zone the schedules are evaluated in (default: time.Local).
	Location *time.Location

	// Logger receives one entry per applied change. If nil, logging is disabled.
	Logger *zap.Logger

	// Metrics, if set, counts applied and failed changes.
	Metrics *metrics.Registry
}

type entry struct {
	change   Change
	schedule cron.Schedule
}

// Plan applies scheduled capacity changes to a Target.
type Plan struct {
	name     string
	target   Target
	entries  []entry
	location *time.Location
	logger   *zap.Logger
	metrics  *metrics.Registry

	mu      sync.Mutex
	cron    *cron.Cron
	applied int
	failed  int
}

// New validates config and returns a stopped Plan.
func New(config Config) (*Plan, error) {
	if config.Target == nil {
		return nil, errors.NewValidationError(module, "target", nil, "target is required")
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	p := &Plan{
		name:     config.Name,
		target:   config.Target,
		location: config.Location,
		logger:   config.Logger.With(zap.String("plan", config.Name)),
		metrics:  config.Metrics,
	}
	for _, c := range config.Changes {
		if err := c.validate(); err != nil {
			return nil, err
		}
		schedule, _ := parser.Parse(c.Schedule)
		p.entries = append(p.entries, entry{change: c, schedule: schedule})
	}
	return p, nil
}

// Changes returns the configured changes in declaration order.
func (p *Plan) Changes() []Change {
	changes := make([]Change, len(p.entries))
	for i, e := range p.entries {
		changes[i] = e.change
	}
	return changes
}

// Next returns the first change firing strictly after now.
func (p *Plan) Next(now time.Time) (Change, time.Time, bool) {
	upcoming := p.Upcoming(now, 1)
	if len(upcoming) == 0 {
		return Change{}, time.Time{}, false
	}
	return upcoming[0].Change, upcoming[0].At, true
}

// Occurrence is a change and the time it fires.
type Occurrence struct {
	Change Change
	At     time.Time
}

// Upcoming returns the next n firings after now across all changes in time
// order. Changes firing at the same instant are listed in declaration order,
// but are applied concurrently by a running plan.
func (p *Plan) Upcoming(now time.Time, n int) []Occurrence {
	if n <= 0 || len(p.entries) == 0 {
		return nil
	}

	now = now.In(p.location)
	var all []Occurrence
	for _, e := range p.entries {
		at := now
		for i := 0; i < n; i++ {
			at = e.schedule.Next(at)
			if at.IsZero() {
				break
			}
			all = append(all, Occurrence{Change: e.change, At: at})
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].At.Before(all[j].At) })
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// Start begins applying changes in the background. Starting a running plan
// is a no-op.
func (p *Plan) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cron != nil {
		return
	}

	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(p.location),
		cron.WithLogger(cronLogger{p.logger.Sugar()}),
		cron.WithChain(cron.Recover(cronLogger{p.logger.Sugar()})),
	)
	for _, e := range p.entries {
		change := e.change
		c.Schedule(e.schedule, cron.FuncJob(func() { p.Apply(change) }))
	}
	c.Start()
	p.cron = c

	p.logger.Info("capacity plan started", zap.Int("changes", len(p.entries)))
}

// Stop stops the plan and waits for a change being applied to finish.
func (p *Plan) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	p.logger.Info("capacity plan stopped")
}

// Apply sets the target's capacity to change.Capacity right away.
func (p *Plan) Apply(change Change) {
	err := p.target.SetCapacity(change.Capacity)

	p.mu.Lock()
	if err != nil {
		p.failed++
	} else {
		p.applied++
	}
	p.mu.Unlock()

	result := "applied"
	if err != nil {
		result = "failed"
		p.logger.Warn("capacity change failed",
			zap.Stringer("change", change),
			zap.Error(err))
	} else {
		p.logger.Info("capacity change applied",
			zap.String("schedule", change.Schedule),
			zap.Int("capacity", change.Capacity))
	}

	if p.metrics != nil {
		p.metrics.CapacityChanges.WithLabelValues(p.name, result).Inc()
	}
}

// Stats returns the number of applied and failed changes so far.
func (p *Plan) Stats() (applied, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applied, p.failed
}

// cronLogger routes cron's own log lines into zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, normalize(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(normalize(keysAndValues), "error", err)...)
}

// normalize turns cron's time.Time values into strings, as cron's default
// logger does.
func normalize(keysAndValues []interface{}) []interface{} {
	out := make([]interface{}, len(keysAndValues))
	for i, v := range keysAndValues {
		if t, ok := v.(time.Time); ok {
			v = t.Format(time.RFC3339)
		}
		out[i] = v
	}
	return out
}

// String renders the plan as a comma separated list of changes.
func (p *Plan) String() string {
	parts := make([]string, len(p.entries))
	for i, e := range p.entries {
		parts[i] = e.change.String()
	}
	return fmt.Sprintf("%s[%s]", p.name, strings.Join(parts, ", "))
}
