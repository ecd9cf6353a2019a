package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/iliyamo/campus-reservation/internal/validation"
)

// BookingConfig tunes the reservation core.
type BookingConfig struct {
	HoldTTL       time.Duration // BOOKING_HOLD_TTL
	SweepInterval time.Duration // BOOKING_SWEEP_INTERVAL
	OpenAt        time.Duration // BUSINESS_OPEN, HH:MM
	CloseAt       time.Duration // BUSINESS_CLOSE, HH:MM
	Location      *time.Location
	MinChars      int
	MaxChars      int
	DirectorySize int // DIRECTORY_CACHE_SIZE, resources kept in memory
}

// LoadBookingConfig reads BookingConfig from the environment.  Unlike the
// numeric knobs, a malformed business window or time zone is an error.
func LoadBookingConfig() (BookingConfig, error) {
	cfg := BookingConfig{
		HoldTTL:       envDur("BOOKING_HOLD_TTL", 2*time.Minute),
		SweepInterval: envDur("BOOKING_SWEEP_INTERVAL", 30*time.Second),
		MinChars:      envInt("TEXT_MIN_CHARS", 20),
		MaxChars:      envInt("TEXT_MAX_CHARS", 200),
		DirectorySize: envInt("DIRECTORY_CACHE_SIZE", 512),
	}
	var err error
	if cfg.OpenAt, err = parseClock(envStr("BUSINESS_OPEN", "09:00")); err != nil {
		return cfg, errors.Wrap(err, "BUSINESS_OPEN")
	}
	if cfg.CloseAt, err = parseClock(envStr("BUSINESS_CLOSE", "17:00")); err != nil {
		return cfg, errors.Wrap(err, "BUSINESS_CLOSE")
	}
	if cfg.CloseAt <= cfg.OpenAt {
		return cfg, errors.Errorf("business window %s-%s is empty", envStr("BUSINESS_OPEN", "09:00"), envStr("BUSINESS_CLOSE", "17:00"))
	}
	if cfg.Location, err = time.LoadLocation(envStr("BUSINESS_TZ", "UTC")); err != nil {
		return cfg, errors.Wrap(err, "BUSINESS_TZ")
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 2 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 30 * time.Second
	}
	if cfg.DirectorySize < 1 {
		cfg.DirectorySize = 1
	}
	return cfg, nil
}

// Rules converts the configuration into validator rules.
func (c BookingConfig) Rules() validation.Rules {
	r := validation.DefaultRules()
	r.OpenAt = c.OpenAt
	r.CloseAt = c.CloseAt
	r.Location = c.Location
	r.MinChars = c.MinChars
	r.MaxChars = c.MaxChars
	return r
}

// parseClock turns "HH:MM" into an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	var h, m int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d:%d", &h, &m); err != nil {
		return 0, errors.Wrapf(err, "invalid time of day %q", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, errors.Errorf("invalid time of day %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}
