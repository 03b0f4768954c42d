package metadata

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Object describes a single artifact published by a run.
type Object struct {
	Key         string `json:"key"`
	Kind        string `json:"kind"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_in_bytes"`
	RecordCount int64  `json:"record_count"`
}

// Manifest lists everything a run published.
type Manifest struct {
	RunID      string    `json:"run-id"`
	Pipeline   string    `json:"pipeline"`
	Version    string    `json:"version"`
	StartedAt  time.Time `json:"started-at"`
	FinishedAt time.Time `json:"finished-at,omitempty"`
	Objects    []Object  `json:"objects"`
	Warnings   []string  `json:"warnings,omitempty"`
}

// Recorder accumulates the manifest of one run. It is safe for concurrent
// use.
type Recorder struct {
	mu       sync.Mutex
	manifest Manifest
}

// NewRecorder starts a manifest with a fresh run id.
func NewRecorder(pipeline, version string, startedAt time.Time) *Recorder {
	return &Recorder{manifest: Manifest{
		RunID:     uuid.NewString(),
		Pipeline:  pipeline,
		Version:   version,
		StartedAt: startedAt.UTC(),
		Objects:   []Object{},
	}}
}

// RunID returns the identifier shared by every object of the run.
func (r *Recorder) RunID() string {
	return r.manifest.RunID
}

// AddObject records a published artifact.
func (r *Recorder) AddObject(obj Object) {
	r.mu.Lock()
	r.manifest.Objects = append(r.manifest.Objects, obj)
	r.mu.Unlock()
}

// AddWarning records a non-fatal problem, such as a scoring failure.
func (r *Recorder) AddWarning(msg string) {
	r.mu.Lock()
	r.manifest.Warnings = append(r.manifest.Warnings, msg)
	r.mu.Unlock()
}

// Snapshot returns a copy of the manifest so far.
func (r *Recorder) Snapshot() Manifest {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.manifest
	m.Objects = append([]Object(nil), r.manifest.Objects...)
	m.Warnings = append([]string(nil), r.manifest.Warnings...)
	return m
}

// Finish stamps the end time and renders the manifest as indented JSON.
func (r *Recorder) Finish(finishedAt time.Time) ([]byte, error) {
	r.mu.Lock()
	r.manifest.FinishedAt = finishedAt.UTC()
	r.mu.Unlock()

	b, err := json.MarshalIndent(r.Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run manifest: %w", err)
	}
	return b, nil
}

// Key returns the object key of the manifest below prefix.
func (r *Recorder) Key(prefix string) string {
	if prefix == "" {
		return fmt.Sprintf("runs/%s.json", r.RunID())
	}
	return fmt.Sprintf("%s/runs/%s.json", prefix, r.RunID())
}
