package session

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Sink persists finished recordings. Durable storage stays outside the
// library; these built-ins cover the CLI.
type Sink interface {
	Write(rec *Recording) error
}

// JSONLSink streams each finished recording as one compact JSON line,
// suitable for stdout.
type JSONLSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONLSink creates a sink writing to w.
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w}
}

// Write implements Sink.
func (s *JSONLSink) Write(rec *Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return json.NewEncoder(s.w).Encode(rec)
}

// FileSink writes each recording as a pretty-printed JSON file under Dir,
// named after the recording.
type FileSink struct {
	Dir string
}

// Write implements Sink.
func (s FileSink) Write(rec *Recording) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.Path(rec), data, 0644); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	return nil
}

// Path returns the file a recording lands in.
func (s FileSink) Path(rec *Recording) string {
	name := sanitizeName(rec.Name)
	if name == "" {
		name = rec.ID
	}
	return filepath.Join(s.Dir, name+".json")
}

// sanitizeName reduces a recording name to a portable file name.
func sanitizeName(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case r == ' ' || r == '-' || r == '_':
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}
