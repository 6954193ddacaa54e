package services

import (
	"context"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var rupeePrinter = message.NewPrinter(language.MustParse("en-IN"))

// formatRupees renders whole rupees with en-IN digit grouping, e.g. ₹50,000.
func formatRupees(amount int64) string {
	return "₹" + rupeePrinter.Sprintf("%d", amount)
}

func utcClock(clock func() time.Time) func() time.Time {
	if clock == nil {
		clock = time.Now
	}
	return func() time.Time { return clock().UTC() }
}

func noopLogger(context.Context, string, map[string]any) {}
