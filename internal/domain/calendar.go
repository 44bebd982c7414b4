package domain

import (
	"sort"
	"time"
)

// TradingCalendar knows exchange holidays. Weekends are never trading days.
// A nil calendar treats every weekday as a trading day.
type TradingCalendar struct {
	holidays map[string]map[time.Time]struct{} // exchange -> dates
}

// NewTradingCalendar creates an empty calendar.
func NewTradingCalendar() *TradingCalendar {
	return &TradingCalendar{holidays: make(map[string]map[time.Time]struct{})}
}

// AddHoliday marks date as closed on exchange.
func (c *TradingCalendar) AddHoliday(exchange string, date time.Time) {
	set, ok := c.holidays[exchange]
	if !ok {
		set = make(map[time.Time]struct{})
		c.holidays[exchange] = set
	}
	set[DateOf(date)] = struct{}{}
}

// IsTradingDay reports whether exchange is open on date.
func (c *TradingCalendar) IsTradingDay(exchange string, date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if c == nil {
		return true
	}
	_, closed := c.holidays[exchange][DateOf(date)]
	return !closed
}

// Holidays returns the holidays of exchange in ascending order.
func (c *TradingCalendar) Holidays(exchange string) []time.Time {
	if c == nil {
		return nil
	}
	out := make([]time.Time, 0, len(c.holidays[exchange]))
	for d := range c.holidays[exchange] {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
