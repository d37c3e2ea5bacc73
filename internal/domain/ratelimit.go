package domain

import (
	"fmt"
	"time"
)

// Grouping decides which messages count against a rate limit.
type Grouping int

const (
	GroupingTotal Grouping = iota
	GroupingPerUser
	GroupingPerGroup
)

func (g Grouping) String() string {
	switch g {
	case GroupingTotal:
		return "total"
	case GroupingPerUser:
		return "per user"
	case GroupingPerGroup:
		return "per group"
	}
	return fmt.Sprintf("grouping(%d)", int(g))
}

// RateLimitType selects calendar blocks or a rolling window.
type RateLimitType int

const (
	BlockPeriodType RateLimitType = iota
	RollingWindowType
)

// BlockPeriod is the calendar granularity of a block-period limit.
type BlockPeriod int

const (
	PeriodHour BlockPeriod = iota
	PeriodDay
	PeriodWeek
	PeriodMonth
)

var blockPeriodNames = map[BlockPeriod]string{
	PeriodHour:  "per hour",
	PeriodDay:   "per day",
	PeriodWeek:  "per week",
	PeriodMonth: "per month",
}

func (p BlockPeriod) String() string {
	if name, ok := blockPeriodNames[p]; ok {
		return name
	}
	return fmt.Sprintf("period(%d)", int(p))
}

// RateLimit is a named, shareable rule: at most Quantity messages per
// period, counted according to Grouping.
type RateLimit struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Grouping      Grouping      `json:"grouping"`
	Quantity      int           `json:"quantity"`
	Type          RateLimitType `json:"type"`
	BlockPeriod   BlockPeriod   `json:"block_period"`
	RollingWindow time.Duration `json:"rolling_window"`
}

// HumanizedRollingWindow renders the window as "D days, H hours, M minutes, S seconds".
func (r *RateLimit) HumanizedRollingWindow() string {
	total := int64(r.RollingWindow / time.Second)
	days := total / 86400
	rem := total % 86400
	return fmt.Sprintf("%d days, %d hours, %d minutes, %d seconds",
		days, rem/3600, (rem%3600)/60, rem%60)
}

// Rule is a one-line human summary of the limit.
func (r *RateLimit) Rule() string {
	switch r.Type {
	case BlockPeriodType:
		return fmt.Sprintf("%d messages %s", r.Quantity, r.BlockPeriod)
	case RollingWindowType:
		return fmt.Sprintf("%d messages for a rolling window of: %s", r.Quantity, r.HumanizedRollingWindow())
	}
	return ""
}
