package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smq-protocol/smq-go/pkg/log"
	"github.com/smq-protocol/smq-go/pkg/wire"
)

const connA = "abc12345-6789-0123-4567-890abcdef012"

func createTestLogFile(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.smqlog")

	logger, err := log.NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

func sampleEvents() []log.Event {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456000, time.UTC)
	accepted := true
	return []log.Event{
		{
			Timestamp: ts, ConnectionID: connA, Direction: log.DirectionIn,
			Layer: log.LayerClient, Category: log.CategoryState,
			BrokerURL: "https://broker.local/smq.lsp",
			StateChange: &log.StateChangeEvent{
				Entity: log.StateEntityConnection, OldState: "INITIATING", NewState: "CONNECTED",
			},
		},
		{
			Timestamp: ts.Add(time.Millisecond), ConnectionID: connA, Direction: log.DirectionIn,
			Layer: log.LayerWire, Category: log.CategoryMessage, EphemeralID: 1000,
			Message: &log.MessageEvent{Type: wire.TypeCreateAck, TopicID: 7, Name: "sensors", Accepted: &accepted},
		},
		{
			Timestamp: ts.Add(2 * time.Millisecond), ConnectionID: connA, Direction: log.DirectionOut,
			Layer: log.LayerWire, Category: log.CategoryMessage, EphemeralID: 1000,
			Message: &log.MessageEvent{Type: wire.TypePublish, TopicID: 7, SenderID: 1000, SubtopicID: 3, PayloadSize: 12},
		},
		{
			Timestamp: ts.Add(3 * time.Millisecond), ConnectionID: connA, Direction: log.DirectionOut,
			Layer: log.LayerWire, Category: log.CategoryControl, EphemeralID: 1000,
			ControlMsg: &log.ControlMsgEvent{Type: log.ControlMsgPing},
		},
		{
			Timestamp: ts.Add(time.Second), ConnectionID: connA, Direction: log.DirectionIn,
			Layer: log.LayerClient, Category: log.CategoryError, EphemeralID: 1000,
			Error: &log.ErrorEventData{Layer: log.LayerClient, Message: "pong timeout"},
		},
	}
}

func TestFormatEvents(t *testing.T) {
	var buf bytes.Buffer
	for _, e := range sampleEvents() {
		formatEvent(&buf, e)
	}
	out := buf.String()

	for _, want := range []string{
		"2026-01-28T10:15:32.123456Z [conn:abc12345] IN  CLIENT State",
		"INITIATING -> CONNECTED",
		"WIRE CREATEACK (etid 1000)",
		"Name: sensors",
		"ID: 7  Accepted: true",
		"Topic: 7  Subtopic: 3  Sender: 1000",
		"Payload: 12 bytes",
		"OUT CTRL PING",
		"Message: pong timeout",
	} {
		assert.Contains(t, out, want)
	}
}

func TestFormatFrameEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, log.Event{
		ConnectionID: "short",
		Layer:        log.LayerTransport,
		Frame:        &log.FrameEvent{Size: 300, Data: []byte{0x00, 0x03, 0x0c}, Truncated: true},
	})
	out := buf.String()
	assert.Contains(t, out, "[conn:short]")
	assert.Contains(t, out, "TRANSPORT Frame")
	assert.Contains(t, out, "Size: 300 bytes")
	assert.Contains(t, out, "Data: 00030c (truncated)")
}

func TestParseFlags(t *testing.T) {
	l, err := ParseLayerFlag("Client")
	require.NoError(t, err)
	assert.Equal(t, log.LayerClient, l)
	_, err = ParseLayerFlag("service")
	assert.Error(t, err)

	d, err := ParseDirectionFlag("OUT")
	require.NoError(t, err)
	assert.Equal(t, log.DirectionOut, d)
	_, err = ParseDirectionFlag("sideways")
	assert.Error(t, err)

	c, err := ParseCategoryFlag("control")
	require.NoError(t, err)
	assert.Equal(t, log.CategoryControl, c)
	_, err = ParseCategoryFlag("snapshot")
	assert.Error(t, err)

	mt, err := ParseMessageTypeFlag("publish")
	require.NoError(t, err)
	assert.Equal(t, wire.TypePublish, mt)
	_, err = ParseMessageTypeFlag("FRAME")
	assert.Error(t, err)
}

func TestRunViewFilters(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	out := log.DirectionOut

	var buf bytes.Buffer
	require.NoError(t, RunView(path, ViewFilter{Direction: &out}, &buf))

	assert.Contains(t, buf.String(), "PUBLISH")
	assert.Contains(t, buf.String(), "PING")
	assert.NotContains(t, buf.String(), "CREATEACK")
	assert.NotContains(t, buf.String(), "State")
}

func TestRunViewMissingFile(t *testing.T) {
	err := RunView(filepath.Join(t.TempDir(), "missing.smqlog"), ViewFilter{}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunFilter(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	output := filepath.Join(t.TempDir(), "publish.smqlog")

	n, err := RunFilter(path, FilterOptions{Output: output, MessageType: "publish"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	reader, err := log.NewReader(output)
	require.NoError(t, err)
	defer reader.Close()
	events, err := reader.ReadAll()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, wire.TypePublish, events[0].Message.Type)
}

func TestRunFilterRejectsBadOptions(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	output := filepath.Join(t.TempDir(), "out.smqlog")

	_, err := RunFilter(path, FilterOptions{Output: output, TimeStart: "yesterday"})
	assert.Error(t, err)
	_, err = RunFilter(path, FilterOptions{Output: output, Layer: "session"})
	assert.Error(t, err)
}

func TestRunExport(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())
	dir := t.TempDir()

	jsonl := filepath.Join(dir, "out.jsonl")
	require.NoError(t, RunExport(path, "jsonl", jsonl))
	data, err := os.ReadFile(jsonl)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)
	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, connA, first["ConnectionID"])

	csvPath := filepath.Join(dir, "out.csv")
	require.NoError(t, RunExport(path, "csv", csvPath))
	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "type", rows[0][6])
	assert.Equal(t, []string{"CREATEACK", "7", "sensors"}, rows[2][6:9])
	assert.Len(t, rows[0], len(csvHeader))

	assert.Error(t, RunExport(path, "xml", ""))
}

func TestCollectStats(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	stats, err := CollectStats(path)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.TotalEvents)
	assert.Equal(t, 3, stats.EventsByLayer[log.LayerWire])
	assert.Equal(t, 2, stats.EventsByLayer[log.LayerClient])
	assert.Equal(t, 1, stats.MessagesByType[wire.TypePublish])
	assert.Equal(t, 1, stats.Errors)

	require.Len(t, stats.Connections, 1)
	conn := stats.Connections[connA]
	assert.Equal(t, "https://broker.local/smq.lsp", conn.BrokerURL)
	assert.Equal(t, uint32(1000), conn.EphemeralID)
	assert.Equal(t, 12, conn.PayloadBytes)
}

func TestRunStatsOutput(t *testing.T) {
	path := createTestLogFile(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunStats(path, &buf))
	out := buf.String()

	assert.Contains(t, out, "Total Events: 5")
	assert.Contains(t, out, "PUBLISH:")
	assert.Contains(t, out, "[abc12345] 5 events")
	assert.Contains(t, out, "Errors: 1")
}
