package util

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

func Assert(cond bool, msg string) {
	ignoreAsserts := viper.GetBool("ignore-asserts")
	if !ignoreAsserts && !cond {
		panic(msg)
	}
}

func ToPointer[T any](val T) *T {
	return &val
}

func SafeDeref[T any](val *T) T {
	if val == nil {
		var zero T
		return zero
	}
	return *val
}

func ParseCron(cronExp string) (cron.Schedule, error) {
	return cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor).Parse(cronExp)
}

// MinInterval is the smallest check frequency, intervals are stored
// with millisecond precision.
const MinInterval = time.Millisecond

var timeSpan = regexp.MustCompile(`^(?:(\d+)\.)?(\d{1,2}):(\d{1,2}):(\d{1,2})(?:\.(\d{1,7}))?$`)

// ParseInterval parses a check frequency, either a duration such as
// "90s" or "24h", a time span such as "00:00:30" or "1.00:00:00"
// ([d.]hh:mm:ss[.fffffff]), or a constant delay descriptor such as
// "@every 1h".
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	var d time.Duration

	switch {
	case strings.HasPrefix(s, "@"):
		schedule, err := ParseCron(s)
		if err != nil {
			return 0, err
		}

		delay, ok := schedule.(cron.ConstantDelaySchedule)
		if !ok {
			return 0, fmt.Errorf("unsupported interval %q, only @every is allowed", s)
		}
		d = delay.Delay
	case strings.Contains(s, ":"):
		var err error
		if d, err = parseTimeSpan(s); err != nil {
			return 0, err
		}
	default:
		var err error
		if d, err = time.ParseDuration(s); err != nil {
			return 0, err
		}
	}

	if d < MinInterval {
		return 0, fmt.Errorf("interval %q must be at least %s", s, MinInterval)
	}

	return d, nil
}

func parseTimeSpan(s string) (time.Duration, error) {
	m := timeSpan.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid time span %q, expected [d.]hh:mm:ss[.fffffff]", s)
	}

	var days, hours, minutes, seconds int64
	for _, p := range []struct {
		s   string
		v   *int64
		max int64
	}{
		{m[1], &days, math.MaxInt64},
		{m[2], &hours, 23},
		{m[3], &minutes, 59},
		{m[4], &seconds, 59},
	} {
		if p.s == "" {
			continue
		}
		v, err := strconv.ParseInt(p.s, 10, 64)
		if err != nil || v > p.max {
			return 0, fmt.Errorf("invalid time span %q, component %s out of range", s, p.s)
		}
		*p.v = v
	}

	if days > int64(math.MaxInt64/int64(24*time.Hour)) {
		return 0, fmt.Errorf("invalid time span %q, too many days", s)
	}

	d := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second

	// fraction is in ticks of 100ns
	if m[5] != "" {
		ticks, _ := strconv.ParseInt(m[5]+strings.Repeat("0", 7-len(m[5])), 10, 64)
		d += time.Duration(ticks) * 100 * time.Nanosecond
	}

	if d < 0 {
		return 0, fmt.Errorf("invalid time span %q, too large", s)
	}

	return d, nil
}

func DeferAndLog(f func() error) {
	if err := f(); err != nil {
		slog.Warn("defer failed", "err", err)
	}
}

func ClampAddInt64(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
