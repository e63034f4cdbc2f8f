package event

// serialize.go - JSONL serialization for events.
//
// Events are streamed to multiple destinations (the facade,
// file-writer drivers, export archives). JSONL (JSON Lines) is the wire
// format: one compact JSON object per line, newline-terminated.
//
// CONTRACT (Interface-Pack §1.1 generalized to five lanes):
// - One JSON object per line (no pretty-printing)
// - UTF-8 encoding
// - Newline \n terminator (not \r\n)
// - NO multi-line JSON objects

import "encoding/json"

// SerializeEvent converts an event to JSONL format (single line + newline).
// Uses json.Marshal, which produces compact JSON (no whitespace/newlines).
func SerializeEvent(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeEnvelope parses a single JSON envelope. Each lane payload is
// read from its own key ("raw", "parsed", "ui", "command",
// "metadata"); the "lane" field is not consulted here, and
// Event.Validate checks that the lane's payload is present.
func DecodeEnvelope(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}
