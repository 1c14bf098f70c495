package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/trailwatch/internal/domain"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	w, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer w.Close()
	return w.EncodeAll(data, nil)
}

func ndjson(t *testing.T, batches ...[]map[string]any) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, b := range batches {
		line, err := json.Marshal(map[string]any{"Records": b})
		require.NoError(t, err)
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func names(events []domain.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.EventName())
	}
	return out
}

func TestDecode_GzipLinesRoundTrip(t *testing.T) {
	raw := gzipBytes(t, ndjson(t,
		[]map[string]any{{"eventName": "A", "n": 1}, {"eventName": "B"}},
		[]map[string]any{{"eventName": "C", "userIdentity": map[string]any{"type": "Root"}}},
	))

	events, err := New(nil).Decode("logs/2024/01/01/trail.json.gz", raw, Lines)

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, names(events))
	assert.Equal(t, json.Number("1"), events[0]["n"])
	assert.Equal(t, "Root", events[2].IdentityType())
}

func TestDecode_GzipDetectedByMagic(t *testing.T) {
	raw := gzipBytes(t, ndjson(t, []map[string]any{{"eventName": "A"}}))

	events, err := New(nil).Decode("no-extension", raw, Lines)

	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names(events))
}

func TestDecode_Zstd(t *testing.T) {
	raw := zstdBytes(t, ndjson(t, []map[string]any{{"eventName": "A"}, {"eventName": "B"}}))

	events, err := New(nil).Decode("chunk.zst", raw, Auto)

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names(events))
}

func TestDecode_MalformedLineSkipped(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(ndjson(t, []map[string]any{{"eventName": "A"}}))
	buf.WriteString("{\"Records\": [ not json\n\n")
	buf.Write(ndjson(t, []map[string]any{{"eventName": "B"}}, []map[string]any{{"eventName": "C"}}))

	events, err := New(nil).Decode("trail.json", buf.Bytes(), Lines)

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, names(events))
}

func TestDecode_LineWithoutRecordsYieldsNothing(t *testing.T) {
	raw := []byte("{\"eventName\":\"ignored\"}\n" + string(ndjson(t, []map[string]any{{"eventName": "A"}})))

	events, err := New(nil).Decode("trail.json", raw, Lines)

	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, names(events))
}

func TestDecode_Whole(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"array", `[{"eventName":"A"},{"eventName":"B"}]`, []string{"A", "B"}},
		{"single object", `{"eventName":"A"}`, []string{"A"}},
		{"records object", `{"Records":[{"eventName":"A"},{"eventName":"B"}]}`, []string{"A", "B"}},
		{"pretty printed", "[\n  {\"eventName\": \"A\"}\n]\n", []string{"A"}},
		{"non-object elements skipped", `[1, {"eventName":"A"}, "x"]`, []string{"A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := New(nil).Decode("blob.json", []byte(tt.raw), Whole)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(events))
		})
	}
}

func TestOpen_AutoMode(t *testing.T) {
	dec := New(nil)

	doc, err := dec.Open("a.json", []byte(`[{"eventName":"A"}]`), Auto)
	require.NoError(t, err)
	assert.Equal(t, Whole, doc.Mode())

	doc, err = dec.Open("b.json", ndjson(t, []map[string]any{{"eventName": "A"}}, []map[string]any{{"eventName": "B"}}), Auto)
	require.NoError(t, err)
	assert.Equal(t, Objects, doc.Mode())
}

func TestDecode_AutoBareObjectLines(t *testing.T) {
	raw := "{\"eventName\":\"DeleteTrail\"}\n{\"eventName\":\"StopLogging\"}\n"

	events, err := New(nil).Decode("logs/a.json", []byte(raw), Auto)

	require.NoError(t, err)
	assert.Equal(t, []string{"DeleteTrail", "StopLogging"}, names(events))
}

func TestDecode_ObjectsMixesRecordsAndBareLines(t *testing.T) {
	raw := string(ndjson(t, []map[string]any{{"eventName": "A"}, {"eventName": "B"}})) +
		"{\"eventName\":\"C\"}\n[1,2]\nnot json\n"

	events, err := New(nil).Decode("trail.json.gz", gzipBytes(t, []byte(raw)), Objects)

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, names(events))
}

func TestDocument_EventsRestartable(t *testing.T) {
	doc, err := New(nil).Open("trail.json", ndjson(t, []map[string]any{{"eventName": "A"}, {"eventName": "B"}}), Lines)
	require.NoError(t, err)

	var first, second []string
	for ev := range doc.Events() {
		first = append(first, ev.EventName())
	}
	for ev := range doc.Events() {
		second = append(second, ev.EventName())
		break
	}

	assert.Equal(t, []string{"A", "B"}, first)
	assert.Equal(t, []string{"A"}, second)
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		raw  []byte
		mode Mode
	}{
		{"bad gzip by extension", "trail.json.gz", []byte("definitely not gzip"), Lines},
		{"truncated gzip", "trail.bin", []byte{0x1f, 0x8b, 0x08, 0x00}, Lines},
		{"whole mode invalid json", "trail.json", []byte(`[{"eventName":`), Whole},
		{"no parseable line", "trail.json", []byte("garbage\nmore garbage\n"), Lines},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(nil).Open(tt.key, tt.raw, tt.mode)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrDecode))

			var decErr *Error
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, tt.key, decErr.Key)
			assert.True(t, strings.Contains(err.Error(), tt.key))
		})
	}
}

func TestOpen_EmptyBlob(t *testing.T) {
	events, err := New(nil).Decode("empty.json", nil, Auto)
	require.NoError(t, err)
	assert.Empty(t, events)
}
