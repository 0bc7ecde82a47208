package telemetry

import (
	"context"
	"sync"
)

// Record is one fully assembled telemetry record: a flat mapping from field
// name to a scalar or fixed-length array value. A record is built fresh every
// poll cycle and handed to the publisher once complete; it is never published
// partially.
type Record map[string]any

// Publisher is the boundary to the telemetry transport. Delivery semantics
// (asynchronous, at-least-once) are the collaborator's concern.
type Publisher interface {
	Publish(ctx context.Context, topic string, fields Record) error
}

// Publication is one captured publish call.
type Publication struct {
	Topic  string
	Fields Record
}

// Recorder is a Publisher that captures records in memory, for tests and
// diagnostics.
type Recorder struct {
	mu           sync.Mutex
	publications []Publication
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish captures the record.
func (r *Recorder) Publish(_ context.Context, topic string, fields Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := make(Record, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	r.publications = append(r.publications, Publication{Topic: topic, Fields: copied})
	return nil
}

// Publications returns all captured publish calls in order.
func (r *Recorder) Publications() []Publication {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Publication, len(r.publications))
	copy(out, r.publications)
	return out
}

// ForTopic returns the captured publish calls for one topic, in order.
func (r *Recorder) ForTopic(topic string) []Publication {
	var out []Publication
	for _, p := range r.Publications() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}
