package outbox

import (
	"encoding/json"
	"strings"

	appoutbox "roomstay/internal/app/outbox"
)

const defaultSource = "app://roomstay"

// CloudEvent wraps a record in a CloudEvents 1.0 JSON envelope. The record
// id becomes the event id so consumers can deduplicate redeliveries.
func CloudEvent(rec appoutbox.EventRecord, source string) ([]byte, map[string]string, error) {
	if source == "" {
		source = defaultSource
	}
	var data json.RawMessage = rec.Payload
	if !json.Valid(data) {
		return nil, nil, errInvalidPayload
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              rec.ID,
		"type":            rec.Name + ".v1",
		"source":          source,
		"subject":         rec.Aggregate,
		"time":            rec.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := rec.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		"content-type": "application/cloudevents+json",
		"ce_type":      rec.Name,
	}
	for k, v := range rec.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// TopicFor maps an event name to its aggregate topic: booking.held goes to
// booking.events.v1.
func TopicFor(prefix, name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return prefix + base + ".events.v1"
}
