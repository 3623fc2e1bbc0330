package fetch

// AggregationResult is the deduplicated union of records from multiple
// windows and endpoints.
type AggregationResult struct {
	// Records in first-seen order, one per identifier.
	Records []Record

	// DuplicatesRemoved counts later occurrences of already-seen
	// identifiers that were discarded.
	DuplicatesRemoved int
}

// Dedupe removes duplicate records by identifier, first occurrence wins.
//
// The dedup key is the primary identifier field, falling back to the generic
// "id" field. A record is dropped only when its key resolves and was already
// seen; records with no resolvable key are kept, since they cannot be proven
// duplicates. Dedupe is idempotent.
func Dedupe(records []Record) AggregationResult {
	seen := make(map[string]bool, len(records))
	result := AggregationResult{
		Records: make([]Record, 0, len(records)),
	}

	for _, record := range records {
		key, ok := dedupeKey(record)
		if !ok {
			result.Records = append(result.Records, record)
			continue
		}
		if seen[key] {
			result.DuplicatesRemoved++
			continue
		}
		seen[key] = true
		result.Records = append(result.Records, record)
	}

	return result
}

// dedupeKey resolves the bulk-fetch dedup key: primary identifier field,
// else the generic id field.
func dedupeKey(record Record) (string, bool) {
	if value, ok := record["scheduleEventID"]; ok {
		if key, ok := formatIdentifier(value); ok {
			return key, true
		}
	}
	if value, ok := record["id"]; ok {
		if key, ok := formatIdentifier(value); ok {
			return key, true
		}
	}
	return "", false
}
