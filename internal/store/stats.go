package store

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Stats holds session counters.
type Stats struct {
	// TotalReads counts applied poll outcomes, successful or not.
	TotalReads int64 `json:"total_reads"`

	// StartTime is set by the first applied outcome of a session.
	StartTime *time.Time `json:"start_time"`
}

// Uptime returns how long the session has been running at now.
// It is zero before the first outcome.
func (s Stats) Uptime(now time.Time) time.Duration {
	if s.StartTime == nil || now.Before(*s.StartTime) {
		return 0
	}
	return now.Sub(*s.StartTime)
}

// FormatUptime renders d as HH:MM:SS; hours grow past two digits as needed.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// Reading is the latest value, the one before it, and their change.
type Reading struct {
	Current  *float64 `json:"current"`
	Previous *float64 `json:"previous"`

	// Delta is the percentage change from Previous to Current.
	Delta *float64 `json:"delta"`

	// LastError is the message of the most recent failed poll, cleared by
	// the next success.
	LastError string `json:"last_error,omitempty"`
}

// Delta returns (current-previous)/previous*100 rounded to one decimal place.
// It returns nil when either value is missing or not finite, or previous is
// zero.
func Delta(current, previous *float64) *float64 {
	if current == nil || previous == nil || *previous == 0 {
		return nil
	}
	if !finite(*current) || !finite(*previous) {
		return nil
	}
	cur := decimal.NewFromFloat(*current)
	prev := decimal.NewFromFloat(*previous)
	pct, _ := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(1).Float64()
	return &pct
}

func finite(f float64) bool {
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}
