package main

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/utica-dep/utica/internal/buildsched"
	"github.com/utica-dep/utica/internal/ucerr"
)

// eventLogWriter newline-delimited-JSON-appends the scheduler's event stream
// to a file, per SUPPLEMENTED FEATURES' --log-path: a CI caller replays a
// run by tailing this file instead of parsing colorized terminal output.
type eventLogWriter struct {
	mu sync.Mutex
	f  *os.File
}

func newEventLogWriter(path string) (*eventLogWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, ucerr.WrapFilesystem(path, err)
	}
	return &eventLogWriter{f: f}, nil
}

type loggedEvent struct {
	Kind       string `json:"kind"`
	Dependency string `json:"dependency,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (w *eventLogWriter) Write(e buildsched.Event) {
	if w == nil {
		return
	}
	entry := loggedEvent{Kind: string(e.Kind), Dependency: e.Dependency, Detail: e.Detail}
	if e.Err != nil {
		entry.Error = e.Err.Error()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	_, _ = w.f.Write(data)
}

func (w *eventLogWriter) Close() {
	if w == nil {
		return
	}
	_ = w.f.Close()
}
