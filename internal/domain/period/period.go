// Package period parses leaderboard period selectors.
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind tells the ranking engine where tallies come from.
type Kind int

// Selector kinds.
const (
	// KindCurrent ranks every catalog item against the open season.
	KindCurrent Kind = iota
	// KindWindow ranks items created inside a trailing window against the open season.
	KindWindow
	// KindSeason ranks a specific, usually closed, season.
	KindSeason
)

// ErrInvalidSelector is returned for selectors that cannot be parsed.
var ErrInvalidSelector = errors.New("invalid period selector")

// Selector is a parsed period string.
type Selector struct {
	Raw    string
	Kind   Kind
	Window time.Duration
	Season uint64
}

var windows = map[string]time.Duration{
	"24h":   24 * time.Hour,
	"day":   24 * time.Hour,
	"7d":    7 * 24 * time.Hour,
	"week":  7 * 24 * time.Hour,
	"30d":   30 * 24 * time.Hour,
	"month": 30 * 24 * time.Hour,
}

// Parse accepts "", "all", "current", a trailing window ("24h", "7d", "30d"
// and their word aliases) or a season ("season-5", "season:5").
func Parse(s string) (Selector, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	switch raw {
	case "", "all", "current", "all-time":
		return Selector{Raw: raw, Kind: KindCurrent}, nil
	}
	if w, ok := windows[raw]; ok {
		return Selector{Raw: raw, Kind: KindWindow, Window: w}, nil
	}
	for _, prefix := range []string{"season-", "season:"} {
		if rest, ok := strings.CutPrefix(raw, prefix); ok {
			n, err := strconv.ParseUint(rest, 10, 64)
			if err != nil || n < 1 {
				return Selector{}, fmt.Errorf("%w: %q", ErrInvalidSelector, s)
			}
			return Selector{Raw: raw, Kind: KindSeason, Season: n}, nil
		}
	}
	return Selector{}, fmt.Errorf("%w: %q", ErrInvalidSelector, s)
}

// Includes reports whether an item created at createdAt falls inside the
// selector's window. Non-window selectors include everything.
func (s Selector) Includes(createdAt, now time.Time) bool {
	if s.Kind != KindWindow {
		return true
	}
	return !createdAt.Before(now.Add(-s.Window))
}
