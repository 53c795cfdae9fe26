package session

import (
	"strings"
	"testing"
	"time"
)

func ist(y int, mo time.Month, d, h, m int) time.Time {
	return time.Date(y, mo, d, h, m, 0, 0, IST)
}

func TestSession_IsOpen(t *testing.T) {
	s := NSE("2026-01-26")

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", ist(2026, 2, 25, 9, 14), false},
		{"at open", ist(2026, 2, 25, 9, 15), true},
		{"midday", ist(2026, 2, 25, 12, 0), true},
		{"at close", ist(2026, 2, 25, 15, 30), false},
		{"saturday", ist(2026, 2, 28, 11, 0), false},
		{"holiday", ist(2026, 1, 26, 11, 0), false},
		{"utc input", time.Date(2026, 2, 25, 4, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.IsOpen(tt.at); got != tt.want {
				t.Errorf("IsOpen(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestSession_NextOpen(t *testing.T) {
	s := NSE("2026-03-02")

	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"early same day", ist(2026, 2, 25, 8, 0), ist(2026, 2, 25, 9, 15)},
		{"during session", ist(2026, 2, 25, 10, 0), ist(2026, 2, 26, 9, 15)},
		{"friday evening skips weekend and holiday", ist(2026, 2, 27, 16, 0), ist(2026, 3, 3, 9, 15)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.NextOpen(tt.at); !got.Equal(tt.want) {
				t.Errorf("NextOpen = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSession_CloseOn(t *testing.T) {
	s := NSE()
	if got, want := s.CloseOn(ist(2026, 2, 25, 10, 0)), ist(2026, 2, 25, 15, 30); !got.Equal(want) {
		t.Errorf("CloseOn = %v, want %v", got, want)
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad open", Config{Open: "9", Close: "15:30"}},
		{"bad minute", Config{Open: "09:75", Close: "15:30"}},
		{"close before open", Config{Open: "15:30", Close: "09:15"}},
		{"bad holiday", Config{Open: "09:15", Close: "15:30", Holidays: []string{"26/01/2026"}}},
		{"bad zone", Config{Timezone: "Mars/Olympus", Open: "09:15", Close: "15:30"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}

	s, err := New(Config{Open: "00:00", Close: "23:59"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Location() != time.UTC {
		t.Errorf("default location = %v, want UTC", s.Location())
	}
}

func TestSession_Status(t *testing.T) {
	s := NSE()
	if got := s.Status(ist(2026, 2, 25, 15, 0)); !strings.Contains(got, "closes in 30m") {
		t.Errorf("open status = %q", got)
	}
	if got := s.Status(ist(2026, 2, 27, 16, 0)); !strings.Contains(got, "opens Mon 09:15") {
		t.Errorf("closed status = %q", got)
	}
}
