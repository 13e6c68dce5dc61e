package labels

import (
	"fmt"
	"time"

	"github.com/twinj/uuid"
)

// Event is a journaled label mutation.
type Event interface {
	// EventType returns a short name used to tag the event in journals and message topics.
	EventType() string

	// MutationID returns the unique identifier assigned to the mutation.
	MutationID() string
}

// NewMutationID returns a new random identifier for a mutation.
func NewMutationID() string {
	return fmt.Sprintf("%x", uuid.NewV4().Bytes())
}

// TransferEvent records the labels moved from one label layer to another.
type TransferEvent struct {
	ID        string    `json:"MutationID"`
	Time      time.Time `json:"Time"`
	From      string    `json:"From"`
	To        string    `json:"To"`
	NumPoints int       `json:"NumPoints"`
	Moves     []Move    `json:"Moves"`
}

// NewTransferEvent returns an event describing a completed transfer.
func NewTransferEvent(from, to string, numPoints int, delta Delta) TransferEvent {
	return TransferEvent{
		ID:        NewMutationID(),
		Time:      time.Now(),
		From:      from,
		To:        to,
		NumPoints: numPoints,
		Moves:     delta.Moves,
	}
}

func (e TransferEvent) EventType() string  { return "transfer" }
func (e TransferEvent) MutationID() string { return e.ID }

// RelabelEvent records a dense relabeling of a label layer.
type RelabelEvent struct {
	ID        string    `json:"MutationID"`
	Time      time.Time `json:"Time"`
	Layer     string    `json:"Layer"`
	NumLabels int       `json:"NumLabels"`
	MaxLabel  uint64    `json:"MaxOriginalLabel"`
}

// NewRelabelEvent returns an event describing a normalization of the named layer.
func NewRelabelEvent(layer string, m Mapping) RelabelEvent {
	var maxLabel uint64
	if m.Len() > 0 {
		maxLabel = m.labels[m.Len()-1]
	}
	return RelabelEvent{
		ID:        NewMutationID(),
		Time:      time.Now(),
		Layer:     layer,
		NumLabels: m.Len(),
		MaxLabel:  maxLabel,
	}
}

func (e RelabelEvent) EventType() string  { return "relabel" }
func (e RelabelEvent) MutationID() string { return e.ID }

// ExportEvent records a label layer written to an image stack.
type ExportEvent struct {
	ID        string    `json:"MutationID"`
	Time      time.Time `json:"Time"`
	Layer     string    `json:"Layer"`
	Directory string    `json:"Directory"`
	NumFiles  int       `json:"NumFiles"`
}

// NewExportEvent returns an event describing a completed export.
func NewExportEvent(layer, dir string, numFiles int) ExportEvent {
	return ExportEvent{
		ID:        NewMutationID(),
		Time:      time.Now(),
		Layer:     layer,
		Directory: dir,
		NumFiles:  numFiles,
	}
}

func (e ExportEvent) EventType() string  { return "export" }
func (e ExportEvent) MutationID() string { return e.ID }
