// Package status holds the snapshot shown to the operator. The control loop
// writes it, an independently scheduled reporter reads and renders it.
package status

import (
	"sync"
	"time"
)

// Demand is one route counter as shown on the waiting screen.
type Demand struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Snapshot is a copy of everything the operator screen shows.
type Snapshot struct {
	Label         string    `json:"status"`
	Intersections int       `json:"intersections"`
	Total         int       `json:"total"`
	Route         string    `json:"route,omitempty"`
	Host          string    `json:"host,omitempty"`
	Connected     bool      `json:"connected"`
	Demand        []Demand  `json:"demand,omitempty"`
	Threshold     int       `json:"threshold,omitempty"`
	Leader        int       `json:"leader"` // index into Demand, -1 for none
	Version       uint64    `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Board is the single shared, mutex-guarded status snapshot.
type Board struct {
	mu   sync.Mutex
	snap Snapshot
	now  func() time.Time
}

// NewBoard creates a board for the given demand service host.
func NewBoard(host string) *Board {
	return &Board{
		snap: Snapshot{Host: host, Connected: true, Leader: -1},
		now:  time.Now,
	}
}

// Publish records the progress of a route run. It never blocks on readers
// beyond the short critical section.
func (b *Board) Publish(label string, passed, total int, route string) {
	b.update(func(s *Snapshot) {
		s.Label = label
		s.Intersections = passed
		s.Total = total
		s.Route = route
		s.Connected = true
		s.Demand = nil
		s.Threshold = 0
		s.Leader = -1
	})
}

// PublishWaiting records the waiting screen: current demand and leader.
func (b *Board) PublishWaiting(demand []Demand, threshold, leader int) {
	d := append([]Demand(nil), demand...)
	b.update(func(s *Snapshot) {
		s.Label = "Waiting"
		s.Intersections = 0
		s.Total = 0
		s.Route = ""
		s.Connected = true
		s.Demand = d
		s.Threshold = threshold
		s.Leader = leader
	})
}

// PublishError records a failure to reach the demand service.
func (b *Board) PublishError() {
	b.update(func(s *Snapshot) {
		s.Label = "Error"
		s.Intersections = 0
		s.Total = 0
		s.Route = ""
		s.Connected = false
		s.Demand = nil
		s.Leader = -1
	})
}

// Snapshot returns a copy of the current status.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.snap
	s.Demand = append([]Demand(nil), b.snap.Demand...)
	return s
}

func (b *Board) update(fn func(*Snapshot)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.snap)
	b.snap.Version++
	b.snap.UpdatedAt = b.now()
}
