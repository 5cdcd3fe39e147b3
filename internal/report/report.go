package report

import (
	"context"
	"fmt"
	"time"

	"moments/internal/model"
)

// SentSource lists sent-notification records for a time range.
type SentSource interface {
	ListSentBetween(ctx context.Context, from, to time.Time) ([]model.SentRecord, []string, error)
}

// Columns of the delivery sheet.
var deliveryColumns = []string{
	"Key", "User", "Event", "Reminder", "Status", "Attempts", "Delivered", "Sent At",
}

// WriteDelivery writes a delivery report for [from, to) to the writer: one
// row per sent record, ordered by send time.
func WriteDelivery(ctx context.Context, src SentSource, w ExcelWriter, from, to time.Time) (int, error) {
	recs, keys, err := src.ListSentBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("load sent records: %w", err)
	}

	sheet := fmt.Sprintf("Deliveries %s", from.Format("2006-01-02"))
	if err := w.AddSheet(sheet); err != nil {
		return 0, err
	}
	if err := w.WriteHeader(deliveryColumns); err != nil {
		return 0, err
	}

	for i, rec := range recs {
		row := []interface{}{
			keys[i],
			rec.UserID,
			rec.EventID,
			rec.ReminderID,
			rec.Status,
			rec.Attempts,
			rec.Delivered,
			rec.SentAt.Format(time.RFC3339),
		}
		if err := w.WriteRow(row); err != nil {
			return 0, err
		}
	}
	return len(recs), nil
}
