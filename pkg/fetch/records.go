package fetch

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Record is an opaque key-value structure returned by the portal. The only
// attribute this package interprets is the record identifier.
type Record map[string]any

// DefaultIdentifierFields is the observed probe order for record
// identifiers. The list is empirically derived from live portal responses;
// pass a custom list to ExtractIdentifier if the portal grows new shapes.
func DefaultIdentifierFields() []string {
	return []string{
		"scheduleEventID",
		"id",
		"scheduledEventId",
		"ID",
		"eventId",
		"schedule_event_id",
		"scheduleId",
		"ScheduleEventID",
	}
}

// wrapperKeys are the envelope keys the portal nests payloads under,
// probed in this order.
var wrapperKeys = []string{"data", "result", "response"}

// ExtractIdentifier resolves a payload's identifier via the ordered probe
// list: direct fields first, then one level under each wrapper key (object
// or first array element), then the first element if the payload itself is
// an array. Returns false when no field resolves; callers relying on
// identity must handle that case themselves.
func ExtractIdentifier(payload any, fields []string) (string, bool) {
	if len(fields) == 0 {
		fields = DefaultIdentifierFields()
	}

	switch v := payload.(type) {
	case map[string]any:
		if id, ok := probeFields(v, fields); ok {
			return id, true
		}
		for _, key := range wrapperKeys {
			wrapped, present := v[key]
			if !present {
				continue
			}
			switch w := wrapped.(type) {
			case map[string]any:
				if id, ok := probeFields(w, fields); ok {
					return id, true
				}
			case []any:
				if len(w) == 0 {
					continue
				}
				if m, ok := w[0].(map[string]any); ok {
					if id, ok := probeFields(m, fields); ok {
						return id, true
					}
				}
			}
		}
	case Record:
		return ExtractIdentifier(map[string]any(v), fields)
	case []any:
		if len(v) > 0 {
			return ExtractIdentifier(v[0], fields)
		}
	}

	return "", false
}

// probeFields tries each candidate field in order on a flat object.
func probeFields(obj map[string]any, fields []string) (string, bool) {
	for _, field := range fields {
		if value, ok := obj[field]; ok {
			if id, ok := formatIdentifier(value); ok {
				return id, true
			}
		}
	}
	return "", false
}

// formatIdentifier normalizes an identifier value to a string key. The
// portal is inconsistent about numeric vs string identifiers.
func formatIdentifier(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, v != ""
	case json.Number:
		return v.String(), true
	case float64:
		// encoding/json decodes all numbers as float64; portal
		// identifiers are integral.
		return strconv.FormatInt(int64(v), 10), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}

// ParseRecords decodes a portal response body into records. The body may be
// a bare array, an object wrapping an array under one of the known envelope
// keys, or a single object (returned as a one-record slice).
func ParseRecords(body []byte) ([]Record, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse records: %w", err)
	}

	switch v := payload.(type) {
	case []any:
		return recordsFromArray(v), nil
	case map[string]any:
		for _, key := range wrapperKeys {
			if arr, ok := v[key].([]any); ok {
				return recordsFromArray(arr), nil
			}
		}
		return []Record{Record(v)}, nil
	default:
		return nil, fmt.Errorf("parse records: unexpected payload type %T", payload)
	}
}

func recordsFromArray(arr []any) []Record {
	records := make([]Record, 0, len(arr))
	for _, item := range arr {
		if m, ok := item.(map[string]any); ok {
			records = append(records, Record(m))
		}
	}
	return records
}
