// Server-Sent Events for batch job progress.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// SSEBroker manages Server-Sent Events connections.
type SSEBroker struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan SSEEvent]struct{}
}

// SSEEvent represents an event to send to clients.
type SSEEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
	ID    string      `json:"id,omitempty"`
}

// NewSSEBroker creates a new SSE broker.
func NewSSEBroker() *SSEBroker {
	return &SSEBroker{
		subscribers: make(map[string]map[chan SSEEvent]struct{}),
	}
}

// Subscribe creates a subscription for a job.
func (b *SSEBroker) Subscribe(jobID string) chan SSEEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan SSEEvent, 10)
	if b.subscribers[jobID] == nil {
		b.subscribers[jobID] = make(map[chan SSEEvent]struct{})
	}
	b.subscribers[jobID][ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription.
func (b *SSEBroker) Unsubscribe(jobID string, ch chan SSEEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subscribers[jobID]; ok {
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(b.subscribers, jobID)
		}
	}
}

// Publish sends an event to all subscribers of a job. Slow subscribers
// miss progress events rather than block the job.
func (b *SSEBroker) Publish(jobID string, event SSEEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[jobID] {
		select {
		case ch <- event:
		default:
		}
	}
}

func eventID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// PublishProgress sends a progress update.
func (b *SSEBroker) PublishProgress(jobID string, progress interface{}) {
	b.Publish(jobID, SSEEvent{Event: "progress", Data: progress, ID: eventID()})
}

// PublishComplete sends a completion event.
func (b *SSEBroker) PublishComplete(jobID string, result interface{}) {
	b.Publish(jobID, SSEEvent{Event: "complete", Data: result, ID: eventID()})
}

// PublishError sends an error event.
func (b *SSEBroker) PublishError(jobID string, err error) {
	b.Publish(jobID, SSEEvent{Event: "error", Data: map[string]string{"error": err.Error()}, ID: eventID()})
}

// HasSubscribers checks if a job has any subscribers.
func (b *SSEBroker) HasSubscribers(jobID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[jobID]) > 0
}

// SSEHandler streams events for jobID. getJob supplies the initial state;
// a job that has already finished ends the stream after it.
func (b *SSEBroker) SSEHandler(jobID string, getJob func(string) interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		ch := b.Subscribe(jobID)
		defer b.Unsubscribe(jobID, ch)

		if getJob != nil {
			state := getJob(jobID)
			if state == nil {
				writeSSEEvent(w, SSEEvent{Event: "error", Data: map[string]string{"error": "job not found"}})
				flusher.Flush()
				return
			}
			writeSSEEvent(w, SSEEvent{Event: "init", Data: state})
			flusher.Flush()
			if job, ok := state.(Job); ok && (job.Status == JobCompleted || job.Status == JobFailed) {
				return
			}
		}

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				writeSSEEvent(w, event)
				flusher.Flush()
				if event.Event == "complete" || event.Event == "error" {
					return
				}
			}
		}
	}
}

// writeSSEEvent writes an event in SSE format.
func writeSSEEvent(w http.ResponseWriter, event SSEEvent) {
	if event.ID != "" {
		fmt.Fprintf(w, "id: %s\n", event.ID)
	}
	fmt.Fprintf(w, "event: %s\n", event.Event)

	data, _ := json.Marshal(event.Data)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// ProgressTracker broadcasts rate-limited batch progress.
type ProgressTracker struct {
	broker      *SSEBroker
	jobID       string
	total       int
	startTime   time.Time
	lastUpdate  time.Time
	minInterval time.Duration
	mu          sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker(broker *SSEBroker, jobID string, total int) *ProgressTracker {
	return &ProgressTracker{
		broker:      broker,
		jobID:       jobID,
		total:       total,
		startTime:   time.Now(),
		minInterval: 100 * time.Millisecond,
	}
}

// Update sends a progress update. The final item is always sent.
func (t *ProgressTracker) Update(p Progress) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p.Done < t.total && time.Since(t.lastUpdate) < t.minInterval {
		return
	}
	t.lastUpdate = time.Now()

	elapsed := time.Since(t.startTime)
	var eta time.Duration
	if p.Done > 0 {
		eta = time.Duration(float64(elapsed) * float64(t.total-p.Done) / float64(p.Done))
	}

	t.broker.PublishProgress(t.jobID, map[string]interface{}{
		"done":       p.Done,
		"total":      p.Total,
		"percent":    p.Percent,
		"elapsed_ms": elapsed.Milliseconds(),
		"eta_ms":     eta.Milliseconds(),
	})
}

// Complete sends completion event.
func (t *ProgressTracker) Complete(result interface{}) {
	t.broker.PublishComplete(t.jobID, result)
}

// Error sends error event.
func (t *ProgressTracker) Error(err error) {
	t.broker.PublishError(t.jobID, err)
}
