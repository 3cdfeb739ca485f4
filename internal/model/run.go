package model

import (
	"errors"
	"time"
)

// RunState is a step of the report pipeline as recorded in the run ledger.
type RunState string

const (
	StateReceived     RunState = "received"
	StateEnriched     RunState = "enriched"
	StateStaged       RunState = "staged"
	StateRendering    RunState = "rendering"
	StateStreamed     RunState = "streamed"
	StateRenderFailed RunState = "render_failed"
	StateFailed       RunState = "failed"
	StateCleaned      RunState = "cleaned"
)

// Run is one execution of the pipeline, keyed by its staging token.
type Run struct {
	Token      string    `json:"token"`
	Kind       string    `json:"kind"`
	ClientID   string    `json:"clientId,omitempty"`
	RecordID   string    `json:"recordId,omitempty"`
	State      RunState  `json:"state"`
	Bytes      int64     `json:"bytes"`
	Pages      int       `json:"pages,omitempty"`
	ArchiveKey string    `json:"archiveKey,omitempty"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ErrRunNotFound is returned by ledgers for unknown tokens.
var ErrRunNotFound = errors.New("run not found")
