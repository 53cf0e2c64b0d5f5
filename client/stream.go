package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Frame is one server-sent event as it arrives off the wire.
type Frame struct {
	Event string
	Data  string
}

// StreamReader consumes a text/event-stream response body frame by frame.
type StreamReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// openStream dials the gateway's stream endpoint and hands back a reader
// positioned before the first frame.
func openStream(ctx context.Context, httpClient *http.Client, url, token string) (*StreamReader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream endpoint returned %s", resp.Status)
	}

	return NewStreamReader(resp.Body), nil
}

// NewStreamReader wraps an already-open event stream body.
func NewStreamReader(body io.ReadCloser) *StreamReader {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	return &StreamReader{body: body, scanner: scanner}
}

// Next blocks until a complete frame arrives. It returns io.EOF when the
// server closes the stream. Comment lines and fields other than event and
// data are skipped.
func (r *StreamReader) Next() (Frame, error) {
	var frame Frame
	var dataLines []string

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if line == "" {
			if frame.Event == "" && len(dataLines) == 0 {
				continue
			}
			frame.Data = strings.Join(dataLines, "\n")
			return frame, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := splitField(line)
		switch field {
		case "event":
			frame.Event = value
		case "data":
			dataLines = append(dataLines, value)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}

// Close tears down the underlying response body.
func (r *StreamReader) Close() error { return r.body.Close() }

func splitField(line string) (field, value string) {
	field, value, found := strings.Cut(line, ":")
	if !found {
		return line, ""
	}
	return field, strings.TrimPrefix(value, " ")
}
