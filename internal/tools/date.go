package tools

import (
	"context"
	"time"
)

// DateLayout renders dates as day-month-year hour:minute:second.
const DateLayout = "02-01-2006 15:04:05"

// Date reports the current local date and time.
type Date struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d *Date) Name() string { return "Date" }

func (d *Date) Description() string {
	return "Useful when you need to get the date, input is a query"
}

func (d *Date) Run(_ context.Context, _ string) (string, error) {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	return now().Format(DateLayout), nil
}
