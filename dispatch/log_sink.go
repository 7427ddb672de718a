package dispatch

import (
	"context"
	"encoding/json"
	"io"
	"sync"
)

// LogSink writes each event as a JSON line.
type LogSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewLogSink(w io.Writer) *LogSink {
	return &LogSink{enc: json.NewEncoder(w)}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Deliver(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(ev)
}
