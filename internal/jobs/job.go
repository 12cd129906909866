// Package jobs keeps the in-memory list of mux jobs.
package jobs

import (
	"time"

	"github.com/famomatic/tubemux/internal/formats"
	"github.com/famomatic/tubemux/internal/types"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPreparing   Status = "preparing"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// Terminal reports whether no further transitions happen from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// LogEntry is one line of a job's log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Job is one mux operation.
type Job struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	Author         string          `json:"author,omitempty"`
	Video          formats.Variant `json:"video"`
	Audio          formats.Variant `json:"audio"`
	Status         Status          `json:"status"`
	Progress       int             `json:"progress"`
	Logs           []LogEntry      `json:"logs"`
	Error          string          `json:"error,omitempty"`
	ErrorKind      types.Kind      `json:"errorKind,omitempty"`
	OutputFileName string          `json:"outputFileName"`
	OutputPath     string          `json:"outputPath,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	FinishedAt     time.Time       `json:"finishedAt,omitempty"`
}

// Clone returns a deep copy of j.
func (j Job) Clone() Job {
	j.Logs = append([]LogEntry(nil), j.Logs...)
	return j
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Status     *Status
	Progress   *int
	Error      *string
	ErrorKind  *types.Kind
	OutputPath *string
}

// Ptr is a small helper for building patches.
func Ptr[T any](v T) *T { return &v }
