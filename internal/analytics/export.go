package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/serroba/clickstream-go/internal/clickstream"
	"github.com/serroba/clickstream-go/internal/eventstore"
)

// ExportOptions select and shape a raw event export.
type ExportOptions struct {
	URLID       string
	From        time.Time
	To          time.Time
	ExcludeBots bool

	// Fields limits the output to the named fields. Nested fields use
	// dotted paths ("location.city", "device.browser"). Empty means all.
	Fields []string

	Limit int
}

// Export returns raw events newest-first as JSON-shaped maps. The field
// names and nesting match the persisted event shape exactly, so an export
// round-trips without loss.
func (e *Engine) Export(ctx context.Context, opts ExportOptions) ([]map[string]any, error) {
	events, err := e.events.Query(ctx, eventstore.Filter{
		URLID:       opts.URLID,
		From:        opts.From,
		To:          opts.To,
		ExcludeBots: opts.ExcludeBots,
		NewestFirst: true,
		Limit:       opts.Limit,
	})
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0, len(events))

	for _, event := range events {
		row, err := eventRow(event)
		if err != nil {
			return nil, err
		}

		if len(opts.Fields) > 0 {
			row = selectFields(row, opts.Fields)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// eventRow converts an event to its wire shape through its JSON encoding,
// so the export uses exactly the persisted field names and nesting.
func eventRow(event *clickstream.ClickEvent) (map[string]any, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	decoder := json.NewDecoder(strings.NewReader(string(payload)))
	decoder.UseNumber()

	var row map[string]any
	if err = decoder.Decode(&row); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", event.ID, err)
	}

	return row, nil
}

func selectFields(row map[string]any, fields []string) map[string]any {
	selected := make(map[string]any, len(fields))

	for _, field := range fields {
		head, rest, nested := strings.Cut(field, ".")

		value, ok := row[head]
		if !ok {
			continue
		}

		if !nested {
			selected[head] = value
			continue
		}

		inner, ok := value.(map[string]any)
		if !ok {
			continue
		}

		if innerValue, ok := inner[rest]; ok {
			out, ok := selected[head].(map[string]any)
			if !ok {
				out = make(map[string]any)
				selected[head] = out
			}

			out[rest] = innerValue
		}
	}

	return selected
}
