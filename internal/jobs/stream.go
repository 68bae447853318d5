package jobs

import (
	"context"
	"sync"
	"time"
)

const defaultStreamCapacity = 256

// EventStream stores the recent events of one job and wakes waiters when new
// events arrive. When full, the oldest event is dropped. The stream is closed
// by its CompletionEvent; later publishes are ignored.
type EventStream struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Record
	nextSeq  uint64
	closed   bool
	now      func() time.Time
}

// NewEventStream constructs a bounded replay buffer.
func NewEventStream(capacity int) *EventStream {
	if capacity <= 0 {
		capacity = defaultStreamCapacity
	}
	s := &EventStream{capacity: capacity, now: time.Now}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Publish appends evt. It never blocks on consumers.
func (s *EventStream) Publish(evt Event) {
	if s == nil || evt == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.nextSeq++
	record := Record{Sequence: s.nextSeq, Timestamp: s.now().UTC(), Event: evt}
	if len(s.buffer) == s.capacity {
		copy(s.buffer, s.buffer[1:])
		s.buffer = s.buffer[:s.capacity-1]
	}
	s.buffer = append(s.buffer, record)
	if evt.Type() == EventCompletion {
		s.closed = true
	}
	s.cond.Broadcast()
}

// Closed reports whether the CompletionEvent has been published.
func (s *EventStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Fetch returns buffered events with a sequence greater than since. When
// wait is true, Fetch blocks until an event is available, the stream is
// closed or the context ends.
func (s *EventStream) Fetch(ctx context.Context, since uint64, wait bool) ([]Record, error) {
	cancelWait := make(chan struct{})
	if wait && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.cond.Broadcast()
				s.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		records := s.snapshotLocked(since)
		if len(records) > 0 || !wait || s.closed {
			return records, ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.cond.Wait()
	}
}

// Subscribe replays the buffered history and then follows new events. The
// channel is closed after the CompletionEvent has been delivered or when ctx
// ends.
func (s *EventStream) Subscribe(ctx context.Context) <-chan Record {
	out := make(chan Record)
	go func() {
		defer close(out)
		var since uint64
		for {
			records, err := s.Fetch(ctx, since, true)
			for _, record := range records {
				select {
				case out <- record:
				case <-ctx.Done():
					return
				}
				since = record.Sequence
				if record.Event.Type() == EventCompletion {
					return
				}
			}
			if err != nil {
				return
			}
			if len(records) == 0 && s.Closed() {
				return
			}
		}
	}()
	return out
}

func (s *EventStream) snapshotLocked(since uint64) []Record {
	start := len(s.buffer)
	for i, record := range s.buffer {
		if record.Sequence > since {
			start = i
			break
		}
	}
	if start == len(s.buffer) {
		return nil
	}
	out := make([]Record, len(s.buffer)-start)
	copy(out, s.buffer[start:])
	return out
}
