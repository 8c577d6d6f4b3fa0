package combatlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const maxLineBytes = 1 << 20

// Decoder reads one event per line. Blank lines are skipped.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
	last    int64
	started bool
}

// NewDecoder wraps r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Decoder{scanner: scanner}
}

// Next returns the next event, or io.EOF once the stream is drained. Lines
// that fail to decode or break timestamp order are reported with their line
// number.
func (d *Decoder) Next() (Event, error) {
	for d.scanner.Scan() {
		d.line++
		raw := bytes.TrimSpace(d.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return Event{}, fmt.Errorf("line %d: %w", d.line, err)
		}
		if event.Type == "" {
			return Event{}, fmt.Errorf("line %d: %w", d.line, errMissingType)
		}
		if d.started && event.Timestamp < d.last {
			return Event{}, fmt.Errorf("line %d at %d after %d: %w", d.line, event.Timestamp, d.last, errUnorderedEvents)
		}
		d.started = true
		d.last = event.Timestamp
		return event, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Event{}, fmt.Errorf("line %d: %w", d.line+1, err)
	}
	return Event{}, io.EOF
}

// ReadEvents drains r into a slice.
func ReadEvents(r io.Reader) ([]Event, error) {
	decoder := NewDecoder(r)
	var events []Event
	for {
		event, err := decoder.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
}

// LineWriter encodes values as newline-delimited JSON.
type LineWriter struct {
	w       *bufio.Writer
	encoder *json.Encoder
}

// NewLineWriter buffers output to w; call Flush when done.
func NewLineWriter(w io.Writer) *LineWriter {
	buffered := bufio.NewWriter(w)
	return &LineWriter{w: buffered, encoder: json.NewEncoder(buffered)}
}

// Write encodes v followed by a newline.
func (l *LineWriter) Write(v any) error {
	if err := l.encoder.Encode(v); err != nil {
		return fmt.Errorf("encode line: %w", err)
	}
	return nil
}

// Flush writes any buffered data.
func (l *LineWriter) Flush() error {
	return l.w.Flush()
}
