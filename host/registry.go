package host

import (
	"errors"
	"sort"

	"github.com/sasha-s/go-deadlock"
)

// ErrCampaignNotFound is returned when a campaign ID is unknown.
var ErrCampaignNotFound = errors.New("host: campaign not found")

// Registry holds the campaigns owned by one host process.
type Registry struct {
	mu        deadlock.RWMutex
	campaigns map[string]*Campaign
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{campaigns: make(map[string]*Campaign)}
}

// Add registers a campaign under its ID.
func (r *Registry) Add(c *Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.campaigns[c.ID] = c
}

// Get returns the campaign with the given ID.
func (r *Registry) Get(id string) (*Campaign, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, ErrCampaignNotFound
	}
	return c, nil
}

// List returns every campaign ordered by creation time.
func (r *Registry) List() []*Campaign {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Campaign, 0, len(r.campaigns))
	for _, c := range r.campaigns {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of registered campaigns.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.campaigns)
}
