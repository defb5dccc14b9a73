package store

import (
	"context"
	"time"
)

// TableEventType names an event emitted by a Table.
type TableEventType string

const (
	FilterAdd        TableEventType = "filter:add"
	FilterClear      TableEventType = "filter:clear"
	AggregateStart   TableEventType = "aggregate:start"
	AggregateSuccess TableEventType = "aggregate:success"
	AggregateFailed  TableEventType = "aggregate:failed"
)

// TableEvent describes an operation on a table.
type TableEvent struct {
	Type      TableEventType `json:"type"`
	Timestamp int64          `json:"timestamp"`          // Unix milliseconds.
	Operation string         `json:"operation"`          // e.g. "filter", "aggregate".
	Table     string         `json:"table"`              // Name of the table.
	Input     any            `json:"input,omitempty"`    // Filter or aggregations passed in.
	Output    any            `json:"output,omitempty"`   // Results, on success.
	Error     *string        `json:"error,omitempty"`    // Error message if the operation failed.
	Duration  *int64         `json:"duration,omitempty"` // Milliseconds.
}

// EventCallbackFunction receives table events.
type EventCallbackFunction func(ctx context.Context, event TableEvent) error

// RegisterSubscriptionOptions configures a subscription.
type RegisterSubscriptionOptions struct {
	Event       TableEventType
	Label       *string
	Description *string
	Callback    EventCallbackFunction
}

// SubscriptionInfo describes an active subscription.
type SubscriptionInfo struct {
	Id          *string        `json:"id,omitempty"`
	Event       TableEventType `json:"event"`
	Label       *string        `json:"label,omitempty"`
	Description *string        `json:"description,omitempty"`
	Unsubscribe func()         `json:"-"`
}

func createEvent(eventType TableEventType, operation, table string, input, output any, err *string, startTime time.Time) TableEvent {
	var duration *int64
	if !startTime.IsZero() {
		d := time.Since(startTime).Milliseconds()
		duration = &d
	}

	return TableEvent{
		Type:      eventType,
		Timestamp: time.Now().UnixMilli(),
		Operation: operation,
		Table:     table,
		Input:     input,
		Output:    output,
		Error:     err,
		Duration:  duration,
	}
}
