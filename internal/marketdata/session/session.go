// Package session models a daily trading session so the live feed only
// stays connected while the market is open.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Session is a daily open/close window in one location, skipping weekends
// and listed holidays. The zero value is not usable; build one with New.
type Session struct {
	loc      *time.Location
	open     time.Duration // offset from local midnight
	close    time.Duration
	holidays map[string]bool
}

// Config describes a session in configuration terms.
type Config struct {
	Timezone string   // IANA name or "IST"; empty means UTC
	Open     string   // "HH:MM"
	Close    string   // "HH:MM"
	Holidays []string // "YYYY-MM-DD"
}

// IST is the Indian Standard Time location (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// NSE returns the NSE cash session, 09:15 to 15:30 IST.
func NSE(holidays ...string) *Session {
	s, _ := New(Config{Timezone: "IST", Open: "09:15", Close: "15:30", Holidays: holidays})
	return s
}

// New validates cfg and builds a Session.
func New(cfg Config) (*Session, error) {
	loc := time.UTC
	switch cfg.Timezone {
	case "", "UTC":
	case "IST":
		loc = IST
	default:
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("session: timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}

	open, err := parseClock(cfg.Open)
	if err != nil {
		return nil, fmt.Errorf("session: open: %w", err)
	}
	closeAt, err := parseClock(cfg.Close)
	if err != nil {
		return nil, fmt.Errorf("session: close: %w", err)
	}
	if closeAt <= open {
		return nil, fmt.Errorf("session: close %s is not after open %s", cfg.Close, cfg.Open)
	}

	s := &Session{loc: loc, open: open, close: closeAt, holidays: make(map[string]bool, len(cfg.Holidays))}
	for _, h := range cfg.Holidays {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", h); err != nil {
			return nil, fmt.Errorf("session: holiday %q: %w", h, err)
		}
		s.holidays[h] = true
	}
	return s, nil
}

func parseClock(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Location returns the session's time zone.
func (s *Session) Location() *time.Location { return s.loc }

func (s *Session) midnight(t time.Time) time.Time {
	l := t.In(s.loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, s.loc)
}

// IsHoliday reports whether t's local date is a listed holiday.
func (s *Session) IsHoliday(t time.Time) bool {
	return s.holidays[t.In(s.loc).Format("2006-01-02")]
}

// IsTradingDay reports whether t falls on a weekday that is not a holiday.
func (s *Session) IsTradingDay(t time.Time) bool {
	wd := t.In(s.loc).Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !s.IsHoliday(t)
}

// IsOpen reports whether t is inside the session window, [open, close).
func (s *Session) IsOpen(t time.Time) bool {
	if !s.IsTradingDay(t) {
		return false
	}
	since := t.Sub(s.midnight(t))
	return since >= s.open && since < s.close
}

// NextOpen returns the next session open at or after t. When t is inside
// a session it returns the next day's open.
func (s *Session) NextOpen(t time.Time) time.Time {
	day := s.midnight(t)
	if open := day.Add(s.open); t.Before(open) && s.IsTradingDay(t) {
		return open
	}
	// Two weeks covers any realistic run of holidays and weekends
	for i := 1; i <= 14; i++ {
		d := day.AddDate(0, 0, i)
		if s.IsTradingDay(d) {
			return d.Add(s.open)
		}
	}
	return day.AddDate(0, 0, 1).Add(s.open)
}

// CloseOn returns the session close on t's local date.
func (s *Session) CloseOn(t time.Time) time.Time {
	return s.midnight(t).Add(s.close)
}

// Status returns a one-line description for logs.
func (s *Session) Status(t time.Time) string {
	if s.IsOpen(t) {
		return fmt.Sprintf("session open, closes in %s", fmtDur(s.CloseOn(t).Sub(t)))
	}
	next := s.NextOpen(t)
	return fmt.Sprintf("session closed, opens %s %s (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
