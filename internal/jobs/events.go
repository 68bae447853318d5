package jobs

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names the kind of a job event on the wire.
type EventType string

const (
	EventProviderSeries      EventType = "ProviderSeriesEvent"
	EventProviderBook        EventType = "ProviderBookEvent"
	EventProviderCompleted   EventType = "ProviderCompletedEvent"
	EventProviderError       EventType = "ProviderErrorEvent"
	EventPostProcessingStart EventType = "PostProcessingStartEvent"
	EventProcessingError     EventType = "ProcessingErrorEvent"
	EventCompletion          EventType = "CompletionEvent"
)

// Event is one of the job event types declared in this package.
type Event interface {
	Type() EventType
	jobEvent()
}

// ProviderSeriesEvent is published when a provider is searched or fetched.
type ProviderSeriesEvent struct {
	Provider string `json:"provider"`
}

// ProviderBookEvent is published for each book metadata fetch.
type ProviderBookEvent struct {
	Provider   string `json:"provider"`
	TotalBooks int    `json:"totalBooks"`
	Progress   int    `json:"progress"`
}

// ProviderCompletedEvent is published once a provider's contribution is done.
type ProviderCompletedEvent struct {
	Provider string `json:"provider"`
}

// ProviderErrorEvent is published when a provider call fails.
type ProviderErrorEvent struct {
	Provider string `json:"provider"`
	Message  string `json:"message"`
}

// PostProcessingStartEvent is published before write-back begins.
type PostProcessingStartEvent struct{}

// ProcessingErrorEvent is published for failures outside provider calls.
type ProcessingErrorEvent struct {
	Message string `json:"message"`
}

// CompletionEvent is always the last event of a job.
type CompletionEvent struct{}

func (ProviderSeriesEvent) Type() EventType      { return EventProviderSeries }
func (ProviderBookEvent) Type() EventType        { return EventProviderBook }
func (ProviderCompletedEvent) Type() EventType   { return EventProviderCompleted }
func (ProviderErrorEvent) Type() EventType       { return EventProviderError }
func (PostProcessingStartEvent) Type() EventType { return EventPostProcessingStart }
func (ProcessingErrorEvent) Type() EventType     { return EventProcessingError }
func (CompletionEvent) Type() EventType          { return EventCompletion }

func (ProviderSeriesEvent) jobEvent()      {}
func (ProviderBookEvent) jobEvent()        {}
func (ProviderCompletedEvent) jobEvent()   {}
func (ProviderErrorEvent) jobEvent()       {}
func (PostProcessingStartEvent) jobEvent() {}
func (ProcessingErrorEvent) jobEvent()     {}
func (CompletionEvent) jobEvent()          {}

// Record is an event as stored in a stream.
type Record struct {
	Sequence  uint64
	Timestamp time.Time
	Event     Event
}

// MarshalJSON encodes the record as {"seq","ts","type","data"}.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Sequence  uint64    `json:"seq"`
		Timestamp time.Time `json:"ts"`
		Type      EventType `json:"type"`
		Data      Event     `json:"data"`
	}{r.Sequence, r.Timestamp, r.Event.Type(), r.Event})
}

// UnmarshalJSON decodes a record produced by MarshalJSON.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		Sequence  uint64          `json:"seq"`
		Timestamp time.Time       `json:"ts"`
		Type      EventType       `json:"type"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	evt, err := decodeEvent(raw.Type, raw.Data)
	if err != nil {
		return err
	}
	*r = Record{Sequence: raw.Sequence, Timestamp: raw.Timestamp, Event: evt}
	return nil
}

func decodeEvent(kind EventType, data json.RawMessage) (Event, error) {
	var evt Event
	switch kind {
	case EventProviderSeries:
		evt = &ProviderSeriesEvent{}
	case EventProviderBook:
		evt = &ProviderBookEvent{}
	case EventProviderCompleted:
		evt = &ProviderCompletedEvent{}
	case EventProviderError:
		evt = &ProviderErrorEvent{}
	case EventPostProcessingStart:
		return PostProcessingStartEvent{}, nil
	case EventProcessingError:
		evt = &ProcessingErrorEvent{}
	case EventCompletion:
		return CompletionEvent{}, nil
	default:
		return nil, fmt.Errorf("unknown job event type %q", kind)
	}
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, evt); err != nil {
			return nil, err
		}
	}
	switch e := evt.(type) {
	case *ProviderSeriesEvent:
		return *e, nil
	case *ProviderBookEvent:
		return *e, nil
	case *ProviderCompletedEvent:
		return *e, nil
	case *ProviderErrorEvent:
		return *e, nil
	case *ProcessingErrorEvent:
		return *e, nil
	}
	return evt, nil
}
