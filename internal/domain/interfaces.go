package domain

import (
	"context"
)

// EventSource supplies an in-memory, ordered order log. Storage format is its concern.
type EventSource interface {
	Load(ctx context.Context) ([]OrderEvent, error)
}

// OrderRecordSink receives generated order-book records.
type OrderRecordSink interface {
	WriteRecords(records []OrderRecord) error
}
