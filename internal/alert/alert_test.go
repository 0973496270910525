package alert

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/clearmail/pkg/types"
)

func testAlert() types.Alert {
	return types.Alert{
		Level:     types.AlertLevelError,
		Component: "checkpoint",
		Message:   "checkpoint not saved",
		Details:   map[string]any{"path": "lastTimestamp.txt"},
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

type recordingSink struct {
	name string
	err  error
	got  []types.Alert
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Send(ctx context.Context, a types.Alert) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("no deadline")
	}
	r.got = append(r.got, a)
	return r.err
}

func TestConsoleSink_Send(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)
	assert.Equal(t, "console", sink.Name())

	for _, level := range []types.AlertLevel{types.AlertLevelError, types.AlertLevelWarning, types.AlertLevelInfo} {
		a := testAlert()
		a.Level = level
		require.NoError(t, sink.Send(context.Background(), a))
	}
	a := testAlert()
	a.Component = ""
	require.NoError(t, sink.Send(context.Background(), a))

	out := buf.String()
	assert.Contains(t, out, "[ERROR]")
	assert.Contains(t, out, "[WARN]")
	assert.Contains(t, out, "[INFO]")
	assert.Contains(t, out, "[checkpoint] checkpoint not saved")
}

func TestWebhookSink_Send_Success(t *testing.T) {
	var received []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		received, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	sink := NewWebhookSink(ts.URL)
	require.NoError(t, sink.Send(context.Background(), testAlert()))

	var got types.Alert
	require.NoError(t, json.Unmarshal(received, &got))
	assert.Equal(t, "checkpoint not saved", got.Message)
	assert.Equal(t, "checkpoint", got.Component)
	assert.Equal(t, "lastTimestamp.txt", got.Details["path"])
}

func TestWebhookSink_Send_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	err := NewWebhookSink(ts.URL).Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestFileSink_Send(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	assert.Equal(t, "file", sink.Name())

	require.NoError(t, sink.Send(context.Background(), testAlert()))
	require.NoError(t, sink.Send(context.Background(), testAlert()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var got types.Alert
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &got))
		assert.Equal(t, types.AlertLevelError, got.Level)
		lines++
	}
	assert.Equal(t, 2, lines)
}

func readLines(t *testing.T, path string) []types.Alert {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []types.Alert
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var a types.Alert
		require.NoError(t, json.Unmarshal([]byte(line), &a))
		out = append(out, a)
	}
	return out
}

func TestFileSink_RotatesPastMaxBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	line, err := json.Marshal(testAlert())
	require.NoError(t, err)
	sink, err := NewFileSink(path, WithMaxBytes(int64(len(line)+1)*2))
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, sink.Send(context.Background(), testAlert()))
	}

	assert.Len(t, readLines(t, path+".1"), 2)
	assert.Len(t, readLines(t, path), 1)
}

func TestFileSink_CountsExistingSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 64)+"\n"), 0o644))
	sink, err := NewFileSink(path, WithMaxBytes(70))
	require.NoError(t, err)

	require.NoError(t, sink.Send(context.Background(), testAlert()))

	assert.FileExists(t, path+".1")
	assert.Len(t, readLines(t, path), 1)
}

func TestFileSink_MinLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	sink, err := NewFileSink(path, WithMinLevel(types.AlertLevelWarning))
	require.NoError(t, err)

	info := testAlert()
	info.Level = types.AlertLevelInfo
	require.NoError(t, sink.Send(context.Background(), info))
	require.NoError(t, sink.Send(context.Background(), testAlert()))

	got := readLines(t, path)
	require.Len(t, got, 1)
	assert.Equal(t, types.AlertLevelError, got[0].Level)
}

func TestNewDispatcher_FileSinkOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	d, err := NewDispatcher([]types.AlertConfig{{
		Type: types.AlertFile, Path: path, MinLevel: types.AlertLevelError,
	}}, nil)
	require.NoError(t, err)

	d.Dispatch(context.Background(), types.Alert{Level: types.AlertLevelWarning, Component: "checkpoint", Message: "fallback"})
	d.Dispatch(context.Background(), types.Alert{Level: types.AlertLevelError, Component: "checkpoint", Message: "outage"})

	got := readLines(t, path)
	require.Len(t, got, 1)
	assert.Equal(t, "outage", got[0].Message)
}

func TestNewDispatcher_UnknownMinLevel(t *testing.T) {
	_, err := NewDispatcher([]types.AlertConfig{{
		Type: types.AlertFile, Path: filepath.Join(t.TempDir(), "a.jsonl"), MinLevel: "loud",
	}}, nil)
	assert.ErrorContains(t, err, "unknown minLevel")
}

func TestFileSink_Unwritable(t *testing.T) {
	_, err := NewFileSink(filepath.Join(t.TempDir(), "missing", "alerts.jsonl"))
	assert.Error(t, err)
}

func TestDispatcher_FansOutAndSurvivesFailures(t *testing.T) {
	failing := &recordingSink{name: "failing", err: errors.New("down")}
	ok := &recordingSink{name: "ok"}
	d := New(nil, failing, ok)

	d.Dispatch(context.Background(), testAlert())

	assert.Len(t, failing.got, 1)
	assert.Len(t, ok.got, 1)
	assert.Equal(t, []string{"failing", "ok"}, d.Sinks())
}

func TestDispatcher_StampsTimestamp(t *testing.T) {
	sink := &recordingSink{name: "r"}
	d := New(nil, sink)
	d.now = func() time.Time { return time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC) }

	d.Dispatch(context.Background(), types.Alert{Level: types.AlertLevelInfo, Message: "m"})

	require.Len(t, sink.got, 1)
	assert.Equal(t, time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC), sink.got[0].Timestamp)
}

func TestDispatcher_DeliversAfterCallerCancel(t *testing.T) {
	sink := &recordingSink{name: "r"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	New(nil, sink).Dispatch(ctx, testAlert())

	assert.Len(t, sink.got, 1)
}

func TestDispatcher_NilIsNoop(t *testing.T) {
	var d *Dispatcher
	d.Dispatch(context.Background(), testAlert())
	assert.Nil(t, d.Sinks())
}

func TestNewDispatcher(t *testing.T) {
	d, err := NewDispatcher([]types.AlertConfig{
		{Type: types.AlertConsole},
		{Type: types.AlertWebhook, URL: "http://localhost/hook"},
		{Type: types.AlertFile, Path: filepath.Join(t.TempDir(), "a.jsonl")},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"console", "webhook", "file"}, d.Sinks())
}

func TestNewDispatcher_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.AlertConfig
		want string
	}{
		{"webhook without url", types.AlertConfig{Type: types.AlertWebhook}, "webhook URL required"},
		{"file without path", types.AlertConfig{Type: types.AlertFile}, "file path required"},
		{"sqs without queue", types.AlertConfig{Type: types.AlertSQS}, "queue URL required"},
		{"eventbridge without bus", types.AlertConfig{Type: types.AlertEventBridge}, "event bus name required"},
		{"unknown", types.AlertConfig{Type: "pager"}, "unknown alert type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDispatcher([]types.AlertConfig{tt.cfg}, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
