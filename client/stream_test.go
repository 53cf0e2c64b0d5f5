package client

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readerFor(raw string) *StreamReader {
	return NewStreamReader(io.NopCloser(strings.NewReader(raw)))
}

func TestStreamReaderParsesGatewayFrames(t *testing.T) {
	// Exactly the frame shape the gateway writes.
	raw := "event: connected\ndata: {\"serverTime\":\"2026-08-29T10:00:00Z\"}\n\n" +
		"event: story-changed\ndata: {\"entityId\":\"st42\"}\n\n" +
		"event: ping\ndata: \n\n"
	r := readerFor(raw)
	defer r.Close()

	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "connected", frame.Event)
	assert.Equal(t, `{"serverTime":"2026-08-29T10:00:00Z"}`, frame.Data)

	frame, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "story-changed", frame.Event)
	assert.Equal(t, `{"entityId":"st42"}`, frame.Data)

	frame, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, "ping", frame.Event)

	_, err = r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestStreamReaderSkipsCommentsAndUnknownFields(t *testing.T) {
	raw := ": keep-alive comment\nid: 7\nretry: 1000\nevent: ping\ndata: \n\n"
	r := readerFor(raw)
	defer r.Close()

	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "ping", frame.Event)
	assert.Empty(t, frame.Data)
}

func TestStreamReaderJoinsMultiLineData(t *testing.T) {
	raw := "event: story-changed\ndata: line one\ndata: line two\n\n"
	r := readerFor(raw)
	defer r.Close()

	frame, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", frame.Data)
}

func TestStreamReaderEOFMidFrame(t *testing.T) {
	r := readerFor("event: ping\ndata: ")
	defer r.Close()

	// A frame never terminated by a blank line is dropped, not surfaced.
	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}
