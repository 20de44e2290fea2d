// Package crm is an in-memory stand-in for an external contact store. It
// keeps the synced view of leads and affiliates keyed by email, the way a
// hosted CRM would key contacts.
package crm

import (
	"errors"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/sasha-s/go-deadlock"
)

// ErrNotFound is returned when no record exists for an email.
var ErrNotFound = errors.New("crm: record not found")

// Record is one synced contact. Fields mirror the properties a hosted CRM
// would hold for an affiliate partner.
type Record struct {
	Email               string    `json:"email"`
	FirstName           string    `json:"firstname"`
	LastName            string    `json:"lastname,omitempty"`
	LeadSource          string    `json:"lead_source"`
	Status              string    `json:"affiliate_status"`
	Platform            string    `json:"platform"`
	LeadScore           float64   `json:"lead_score"`
	AudienceSize        int       `json:"audience_size"`
	EngagementRate      float64   `json:"engagement_rate"`
	Notes               string    `json:"notes,omitempty"`
	LastOutreachAt      time.Time `json:"last_outreach_at,omitzero"`
	LastOutreachChannel string    `json:"last_outreach_channel,omitempty"`
}

// RecordSchema returns the JSON schema of the synced contact shape, for
// export to CRM property-mapping tooling.
func RecordSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&Record{})
}

// Store is a thread-safe contact store keyed by email. Upserts replace the
// stored record wholesale, matching the overwrite semantics of a CRM
// property sync.
type Store struct {
	mu      deadlock.RWMutex
	toolID  string
	records map[string]Record
}

// NewStore creates an empty store. The tool ID names the CRM product the
// store stands in for; it appears in status summaries only.
func NewStore(toolID string) *Store {
	return &Store{
		toolID:  toolID,
		records: make(map[string]Record),
	}
}

// ToolID returns the CRM product identifier the store was created with.
func (s *Store) ToolID() string { return s.toolID }

// Upsert stores a record, replacing any existing record with the same email.
func (s *Store) Upsert(rec Record) error {
	if rec.Email == "" {
		return errors.New("crm: record has no email")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Email] = rec
	return nil
}

// Get returns the record stored for an email.
func (s *Store) Get(email string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[email]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// FindByStatus returns every record with the given affiliate status.
func (s *Store) FindByStatus(status string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.records {
		if rec.Status == status {
			out = append(out, rec)
		}
	}
	return out
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
