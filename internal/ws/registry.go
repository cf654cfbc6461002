// Package ws implements the live-delivery side of the messaging subsystem:
// the connection registry, the per-connection read/write pumps, and the
// delivery router that fans persisted writes out to live connections.
//
// The registry is the single piece of shared mutable state in the process.
// It is constructed once at startup and injected wherever pushes originate;
// nothing else holds connection references.
package ws

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// wsConnections gauges the number of currently registered connections.
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections",
		Help: "Current number of registered WebSocket connections.",
	})

	// wsPushes counts fan-out attempts by outcome. "dropped" covers both
	// full send buffers and connections that closed mid-push.
	wsPushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ws_pushes_total",
			Help: "Total number of per-connection push attempts.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsPushes)
}

// Registry maps user ids to their live connections. A user may hold any
// number of simultaneous connections (tabs, devices); all of them receive
// pushes. All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[int64]map[string]*Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[int64]map[string]*Client)}
}

// Register adds an authenticated client to its user's bucket. The caller
// must have completed the auth handshake first; the registry itself does
// no verification.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	bucket, ok := r.conns[c.UserID]
	if !ok {
		bucket = make(map[string]*Client)
		r.conns[c.UserID] = bucket
	}
	bucket[c.ID] = c
	r.mu.Unlock()
	wsConnections.Inc()
}

// Unregister removes a client and closes its send channel. It is
// idempotent: unregistering a client twice (or one that was never
// registered) is a no-op. An in-flight push that still holds a reference
// to the client degrades to a dropped send; it never blocks or panics.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	bucket, ok := r.conns[c.UserID]
	if ok {
		if _, present := bucket[c.ID]; present {
			delete(bucket, c.ID)
			if len(bucket) == 0 {
				delete(r.conns, c.UserID)
			}
			r.mu.Unlock()
			c.closeSend()
			wsConnections.Dec()
			return
		}
	}
	r.mu.Unlock()
}

// ConnectionsFor returns a snapshot of the user's live connections. The
// snapshot is safe to iterate without holding any registry lock; clients
// that disconnect concurrently simply drop the pushes addressed to them.
func (r *Registry) ConnectionsFor(userID int64) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bucket := r.conns[userID]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(bucket))
	for _, c := range bucket {
		out = append(out, c)
	}
	return out
}

// Len reports the total number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, bucket := range r.conns {
		n += len(bucket)
	}
	return n
}
