package simclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/gin-contrib/sse"
)

// maxFrameSize bounds a single line of the event stream.
const maxFrameSize = 1 << 20

const eventStreamMediaType = "text/event-stream"

// Stream reads events from the simulator's event stream. Events delivered to a
// Stream are removed from the server's queue.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc
}

// Subscribe opens the event stream. It stays open until ctx ends, Close is
// called or the server goes away.
func (c *Client) Subscribe(ctx context.Context) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Host+"/events", nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", sse.ContentType)
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return nil, readAPIError(resp)
	}
	if ct := resp.Header.Get("Content-Type"); !isEventStream(ct) {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("unexpected event stream content type %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	c.Logger.Debug("event stream opened", "host", c.Host)

	return &Stream{
		body:    resp.Body,
		scanner: scanner,
		cancel:  cancel,
	}, nil
}

// isEventStream reports whether a Content-Type header names an event stream,
// whatever its parameters.
func isEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == eventStreamMediaType
}

// Next blocks until the next event arrives. Heartbeat comments are skipped.
// It returns io.EOF when the server ends the stream.
func (s *Stream) Next() (Event, error) {
	for {
		frame, err := s.readFrame()
		if err != nil {
			return Event{}, err
		}

		decoded, err := sse.Decode(bytes.NewReader(frame))
		if err != nil {
			return Event{}, fmt.Errorf("decoding event: %w", err)
		}
		for _, ev := range decoded {
			if ev.Event == "" {
				continue
			}
			return toEvent(ev)
		}
	}
}

// readFrame returns the lines of one blank-line-terminated block, including the
// terminator.
func (s *Stream) readFrame() ([]byte, error) {
	var frame bytes.Buffer
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		frame.Write(line)
		frame.WriteByte('\n')
		if len(line) == 0 {
			return frame.Bytes(), nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func toEvent(ev sse.Event) (Event, error) {
	data, ok := ev.Data.(string)
	if !ok {
		return Event{}, fmt.Errorf("event %s has no data", ev.Event)
	}
	var env struct {
		EventName string          `json:"eventName"`
		EventData json.RawMessage `json:"eventData"`
	}
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return Event{}, fmt.Errorf("decoding %s envelope: %w", ev.Event, err)
	}
	if env.EventName != ev.Event {
		return Event{}, fmt.Errorf("event name %q does not match envelope %q", ev.Event, env.EventName)
	}
	return Event{Name: ev.Event, Data: env.EventData}, nil
}

// Close ends the stream.
func (s *Stream) Close() error {
	s.cancel()
	err := s.body.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
