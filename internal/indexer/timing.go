package indexer

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// TimingEnv names an environment variable that, when set, is used as the
// timing output path if none was configured.
const TimingEnv = "SV2CHISEL_TIMING_JSONL"

// timingEvent is one JSONL line: a pipeline stage or one file.
type timingEvent struct {
	Phase      string  `json:"phase"`
	Kind       string  `json:"kind"`
	File       string  `json:"file,omitempty"`
	Status     string  `json:"status,omitempty"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	EndMS      float64 `json:"end_ms"`
}

// timingRecorder streams events as they happen; a nil or disabled
// recorder drops them.
type timingRecorder struct {
	start time.Time
	mu    sync.Mutex
	file  *os.File
	enc   *json.Encoder
	err   error
}

func newTimingRecorder(start time.Time, path string) *timingRecorder {
	tr := &timingRecorder{start: start}
	if path == "" {
		path = os.Getenv(TimingEnv)
	}
	if path == "" {
		return tr
	}
	f, err := os.Create(path)
	if err != nil {
		tr.err = err
		return tr
	}
	tr.file = f
	tr.enc = json.NewEncoder(f)
	return tr
}

func (tr *timingRecorder) Enabled() bool {
	return tr != nil && tr.enc != nil
}

func (tr *timingRecorder) Err() error {
	if tr == nil {
		return nil
	}
	return tr.err
}

func (tr *timingRecorder) Close() {
	if tr == nil || tr.file == nil {
		return
	}
	_ = tr.file.Close()
}

func (tr *timingRecorder) record(ev timingEvent, start time.Time, d time.Duration) {
	if !tr.Enabled() {
		return
	}
	ev.StartMS = durationToMS(start.Sub(tr.start))
	ev.DurationMS = durationToMS(d)
	ev.EndMS = ev.StartMS + ev.DurationMS
	tr.mu.Lock()
	_ = tr.enc.Encode(ev)
	tr.mu.Unlock()
}

func (tr *timingRecorder) RecordStage(phase string, start time.Time, d time.Duration) {
	tr.record(timingEvent{Phase: phase, Kind: "stage"}, start, d)
}

func (tr *timingRecorder) RecordFile(phase, file, status string, start time.Time, d time.Duration) {
	tr.record(timingEvent{Phase: phase, Kind: "file", File: file, Status: status}, start, d)
}

func durationToMS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000_000.0
}
