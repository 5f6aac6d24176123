package sandbox

import (
	"sync"
	"time"
)

// Status is the supervisor's view of a container's lifecycle.
type Status string

const (
	StatusCreating Status = "creating"
	StatusRunning  Status = "running"
	StatusExited   Status = "exited"
	StatusDead     Status = "dead"
)

// Container is a registered isolated execution environment.
type Container struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	Image     string    `json:"image"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// registry is the authoritative record of supervised containers. Operations
// targeting an id absent from the registry fail fast rather than querying
// the underlying runtime. The group-quota check and reservation happen under
// one lock so the observe-then-act window is closed.
type registry struct {
	mu         sync.Mutex
	containers map[string]*Container
}

func newRegistry() *registry {
	return &registry{containers: make(map[string]*Container)}
}

// reserve registers a creating container if the group is under its quota.
func (r *registry) reserve(c *Container, groupLimit int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, existing := range r.containers {
		if existing.GroupID == c.GroupID {
			count++
		}
	}
	if count >= groupLimit {
		return false
	}
	r.containers[c.ID] = c
	return true
}

func (r *registry) get(id string) (*Container, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.containers[id]
	if !ok {
		return nil, false
	}
	clone := *c
	return &clone, true
}

func (r *registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.containers, id)
}

func (r *registry) setStatus(id string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.containers[id]; ok {
		c.Status = status
	}
}

func (r *registry) touch(id string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.containers[id]; ok {
		c.LastUsed = now
	}
}

// list returns registered containers, filtered by group when groupID is
// non-empty.
func (r *registry) list(groupID string) []*Container {
	r.mu.Lock()
	defer r.mu.Unlock()

	var containers []*Container
	for _, c := range r.containers {
		if groupID != "" && c.GroupID != groupID {
			continue
		}
		clone := *c
		containers = append(containers, &clone)
	}
	return containers
}

// idleBefore returns ids of containers whose last-used is older than cutoff.
func (r *registry) idleBefore(cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, c := range r.containers {
		if c.LastUsed.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}
