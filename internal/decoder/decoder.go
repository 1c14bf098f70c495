// Package decoder turns raw audit-log blobs into event sequences.
package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/V4T54L/trailwatch/internal/domain"
)

// Mode selects how decompressed content is parsed.
type Mode int

const (
	// Auto parses the blob as one document when it is a single JSON value and
	// as Objects otherwise.
	Auto Mode = iota
	// Lines parses one JSON object per line and yields the elements of its Records array.
	Lines
	// Whole parses the blob as one JSON value.
	Whole
	// Objects is Lines, except that an object line without a Records array is
	// itself an event.
	Objects
)

func (m Mode) String() string {
	switch m {
	case Lines:
		return "lines"
	case Whole:
		return "whole"
	case Objects:
		return "objects"
	default:
		return "auto"
	}
}

const recordsField = "Records"

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

	errNoRecords = errors.New("no line holds valid JSON")
)

// Decoder opens blobs. The zero value is not usable; use New.
type Decoder struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger.With("component", "decoder")}
}

// Document is a decompressed blob ready to be iterated.
type Document struct {
	key    string
	data   []byte
	mode   Mode
	logger *slog.Logger
}

// Key is the identifying key the document was opened with.
func (d *Document) Key() string { return d.key }

// Mode is the resolved parse mode, never Auto.
func (d *Document) Mode() Mode { return d.mode }

// Open decompresses raw and checks that it can be parsed in the requested mode.
// Failures are returned as *Error carrying key.
func (dec *Decoder) Open(key string, raw []byte, mode Mode) (*Document, error) {
	data, err := decompress(key, raw)
	if err != nil {
		return nil, &Error{Key: key, Err: err}
	}

	if mode == Auto {
		mode = Objects
		if json.Valid(data) {
			mode = Whole
		}
	}

	doc := &Document{key: key, data: data, mode: mode, logger: dec.logger.With("key", key)}
	switch mode {
	case Whole:
		if _, err := parseValue(data); err != nil {
			return nil, &Error{Key: key, Err: err}
		}
	case Lines, Objects:
		if !anyLineParses(data) {
			return nil, &Error{Key: key, Err: errNoRecords}
		}
	default:
		return nil, &Error{Key: key, Err: fmt.Errorf("unknown mode %d", mode)}
	}
	return doc, nil
}

// Decode opens raw and collects every event.
func (dec *Decoder) Decode(key string, raw []byte, mode Mode) ([]domain.Event, error) {
	doc, err := dec.Open(key, raw, mode)
	if err != nil {
		return nil, err
	}
	var events []domain.Event
	for ev := range doc.Events() {
		events = append(events, ev)
	}
	return events, nil
}

// Events yields the document's events in order. The sequence re-parses the
// content on every iteration, so it can be ranged over more than once.
func (d *Document) Events() iter.Seq[domain.Event] {
	return func(yield func(domain.Event) bool) {
		if d.mode == Whole {
			v, err := parseValue(d.data)
			if err != nil {
				return
			}
			for _, ev := range wholeEvents(v) {
				if !yield(ev) {
					return
				}
			}
			return
		}

		n := 0
		for line := range bytes.Lines(d.data) {
			n++
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			v, err := parseValue(line)
			if err != nil {
				d.logger.Debug("Skipping malformed line", "line", n, "error", err)
				continue
			}
			obj, ok := v.(map[string]any)
			if !ok {
				continue
			}
			if _, wrapped := obj[recordsField].([]any); !wrapped && d.mode == Objects {
				if !yield(domain.Event(obj)) {
					return
				}
				continue
			}
			for _, ev := range records(obj) {
				if !yield(ev) {
					return
				}
			}
		}
	}
}

func decompress(key string, raw []byte) ([]byte, error) {
	lower := strings.ToLower(key)
	switch {
	case bytes.HasPrefix(raw, gzipMagic), strings.HasSuffix(lower, ".gz"), strings.HasSuffix(lower, ".gzip"):
		r, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		return data, nil
	case bytes.HasPrefix(raw, zstdMagic), strings.HasSuffix(lower, ".zst"), strings.HasSuffix(lower, ".zstd"):
		r, err := zstd.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer r.Close()
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return data, nil
	default:
		return raw, nil
	}
}

// parseValue decodes exactly one JSON value, keeping numbers as json.Number.
func parseValue(data []byte) (any, error) {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := d.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

func anyLineParses(data []byte) bool {
	for line := range bytes.Lines(data) {
		if line = bytes.TrimSpace(line); len(line) > 0 && json.Valid(line) {
			return true
		}
	}
	return len(bytes.TrimSpace(data)) == 0
}

func records(obj map[string]any) []domain.Event {
	list, ok := obj[recordsField].([]any)
	if !ok {
		return nil
	}
	events := make([]domain.Event, 0, len(list))
	for _, item := range list {
		if ev, ok := item.(map[string]any); ok {
			events = append(events, domain.Event(ev))
		}
	}
	return events
}

func wholeEvents(v any) []domain.Event {
	switch val := v.(type) {
	case []any:
		events := make([]domain.Event, 0, len(val))
		for _, item := range val {
			if ev, ok := item.(map[string]any); ok {
				events = append(events, domain.Event(ev))
			}
		}
		return events
	case map[string]any:
		if _, ok := val[recordsField].([]any); ok {
			return records(val)
		}
		return []domain.Event{domain.Event(val)}
	}
	return nil
}
