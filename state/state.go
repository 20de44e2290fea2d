package state

import (
	"fmt"
	"time"
)

// LeadStatus tracks a lead through the recruitment funnel.
type LeadStatus string

const (
	// StatusNew is a lead identified but not yet contacted.
	StatusNew LeadStatus = "NEW"
	// StatusContacted means outreach has been sent.
	StatusContacted LeadStatus = "CONTACTED"
	// StatusInterested means the lead responded positively.
	StatusInterested LeadStatus = "INTERESTED"
	// StatusNotInterested means the lead declined.
	StatusNotInterested LeadStatus = "NOT_INTERESTED"
	// StatusConverted means the lead became an active affiliate.
	StatusConverted LeadStatus = "CONVERTED"
)

// OutreachAttempt is one entry in a lead's append-only outreach history.
type OutreachAttempt struct {
	Timestamp      time.Time `json:"timestamp"`
	Channel        string    `json:"channel"`
	Subject        string    `json:"subject,omitempty"`
	Recipient      string    `json:"recipient,omitempty"`
	MessageID      string    `json:"message_id,omitempty"`
	MessageExcerpt string    `json:"message_excerpt,omitempty"`
	Status         string    `json:"status"`
}

// Lead is a prospective or active affiliate partner.
// The ID is immutable once created; every other field is mutated in place by
// the stages that process the lead.
type Lead struct {
	ID                  string            `json:"lead_id"`
	Name                string            `json:"name"`
	ContactInfo         map[string]string `json:"contact_info"`
	Platform            string            `json:"platform"`
	AudienceSize        int               `json:"audience_size"`
	EngagementRate      float64           `json:"engagement_rate"`
	ContentQualityScore float64           `json:"content_quality_score"`
	RelevanceScore      float64           `json:"relevance_score"`
	Status              LeadStatus        `json:"status"`
	OutreachHistory     []OutreachAttempt `json:"outreach_history"`
	Notes               string            `json:"notes,omitempty"`
}

// Score is the combined ranking score used when prioritizing outreach.
func (l *Lead) Score() float64 {
	return l.ContentQualityScore + l.RelevanceScore
}

// Email returns the lead's email channel, if any.
func (l *Lead) Email() string {
	return l.ContactInfo["email"]
}

// AppendNote appends a line to the lead's free-text notes.
func (l *Lead) AppendNote(note string) {
	if l.Notes == "" {
		l.Notes = note
		return
	}
	l.Notes += "\n" + note
}

// RecordOutreach appends an attempt to the lead's outreach history.
func (l *Lead) RecordOutreach(attempt OutreachAttempt) {
	l.OutreachHistory = append(l.OutreachHistory, attempt)
}

// CommissionStatus tracks a payout obligation through its lifecycle.
type CommissionStatus string

const (
	// CommissionPending is recorded but not yet approved.
	CommissionPending CommissionStatus = "PENDING"
	// CommissionApproved is approved for payment.
	CommissionApproved CommissionStatus = "APPROVED"
	// CommissionPaid has been paid out.
	CommissionPaid CommissionStatus = "PAID"
	// CommissionRejected has been rejected.
	CommissionRejected CommissionStatus = "REJECTED"
)

// Commission is one computed payout obligation tied to an attributed sale.
// The ID is derived deterministically from the source transaction so that
// re-processing the same sale cannot create a second entry.
type Commission struct {
	ID          string           `json:"commission_id"`
	AffiliateID string           `json:"affiliate_id"`
	SaleAmount  float64          `json:"sale_amount"`
	Rate        float64          `json:"commission_rate"`
	Amount      float64          `json:"commission_amount"`
	SaleDate    time.Time        `json:"sale_date"`
	Status      CommissionStatus `json:"status"`
	ProductID   string           `json:"product_id,omitempty"`
	CustomerID  string           `json:"customer_id,omitempty"`
}

// Report is the structured output of a performance pass. It is replaced
// wholesale each time the performance stage runs.
type Report struct {
	Timestamp     time.Time    `json:"timestamp"`
	Metrics       Metrics      `json:"metrics"`
	Optimizations []Suggestion `json:"optimizations"`
	Anomalies     []Anomaly    `json:"anomalies"`
	Summary       Summary      `json:"summary"`
}

// Metrics holds the computed performance figures for one analysis window.
type Metrics struct {
	PeriodDays         int            `json:"analysis_period_days"`
	PeriodStart        time.Time      `json:"analysis_start_date"`
	PeriodEnd          time.Time      `json:"analysis_end_date"`
	TotalProspects     int            `json:"total_prospects"`
	ContactedProspects int            `json:"contacted_prospects"`
	ConvertedProspects int            `json:"converted_prospects"`
	ConversionRate     float64        `json:"outreach_conversion_rate"`
	TotalCommissions   float64        `json:"total_commissions"`
	TotalSales         float64        `json:"total_sales"`
	EPC                float64        `json:"epc"`
	ROI                float64        `json:"roi"`
	TopAffiliates      []TopAffiliate `json:"top_affiliates"`
}

// TopAffiliate is one row of the top-earner ranking.
type TopAffiliate struct {
	AffiliateID string  `json:"affiliate_id"`
	Earnings    float64 `json:"earnings"`
}

// Suggestion is one optimization proposed by the performance stage.
type Suggestion struct {
	Action     string `json:"action"`
	Impact     string `json:"impact"`
	Difficulty string `json:"difficulty"`
}

// Summary condenses the headline figures of a report.
type Summary struct {
	TotalProspects   int     `json:"total_prospects"`
	ActiveAffiliates int     `json:"active_affiliates"`
	ConversionRate   float64 `json:"conversion_rate"`
	TotalCommissions float64 `json:"total_commissions"`
	EPC              float64 `json:"epc"`
	ROI              float64 `json:"roi"`
}

// Anomaly is a threshold breach detected during performance analysis.
type Anomaly struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// State is the shared mutable record passed through every stage of a cycle.
type State struct {
	// Prospects holds leads that have not converted yet.
	Prospects []*Lead `json:"prospects"`
	// OutreachTargets is the working subset selected for the next outreach
	// pass. It is cleared after the outreach stage consumes it.
	OutreachTargets []*Lead `json:"outreach_targets"`
	// ActiveAffiliates holds converted leads. A lead appears in at most one
	// of Prospects and ActiveAffiliates.
	ActiveAffiliates []*Lead `json:"active_affiliates"`
	// CommissionsLog grows monotonically; entries change status in place but
	// are never removed.
	CommissionsLog []*Commission `json:"commissions_log"`
	// CRMUpdateStatus summarizes the last CRM sync.
	CRMUpdateStatus string `json:"crm_update_status,omitempty"`
	// LastError holds the most recent stage failure, empty when the last
	// stage attempt succeeded.
	LastError string `json:"last_error,omitempty"`
	// TaskDescription is a rolling human-readable log; stages append to it.
	TaskDescription string `json:"current_task_description,omitempty"`
	// PerformanceReport is replaced wholesale by each performance pass.
	PerformanceReport *Report `json:"campaign_performance_report,omitempty"`
	// CurrentTask is the state-machine marker deciding which stage runs next.
	CurrentTask string `json:"current_task"`
}

// New returns an empty state positioned at the start of a cycle.
func New() *State {
	return &State{CurrentTask: "initial"}
}

// FindProspect returns the prospect with the given ID, or nil.
func (s *State) FindProspect(id string) *Lead {
	for _, l := range s.Prospects {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// FindAffiliate returns the active affiliate with the given ID, or nil.
func (s *State) FindAffiliate(id string) *Lead {
	for _, l := range s.ActiveAffiliates {
		if l.ID == id {
			return l
		}
	}
	return nil
}

// HasLead reports whether any lead with the given ID is tracked, in either
// the prospect pool or the affiliate roster.
func (s *State) HasLead(id string) bool {
	return s.FindProspect(id) != nil || s.FindAffiliate(id) != nil
}

// AddProspect appends a lead to the prospect pool unless its ID is already
// tracked anywhere in the state. It reports whether the lead was added.
func (s *State) AddProspect(l *Lead) bool {
	if l == nil || l.ID == "" || s.HasLead(l.ID) {
		return false
	}
	s.Prospects = append(s.Prospects, l)
	return true
}

// PromoteToAffiliate moves a converted lead from the prospect pool to the
// affiliate roster. The move happens exactly once per lead: promoting an ID
// already present in the roster is a no-op, so re-running a sync pass cannot
// produce duplicates.
func (s *State) PromoteToAffiliate(id string) (*Lead, error) {
	if existing := s.FindAffiliate(id); existing != nil {
		return existing, nil
	}
	for i, l := range s.Prospects {
		if l.ID != id {
			continue
		}
		if l.Status != StatusConverted {
			return nil, fmt.Errorf("lead %s is %s, not %s", id, l.Status, StatusConverted)
		}
		s.Prospects = append(s.Prospects[:i], s.Prospects[i+1:]...)
		s.ActiveAffiliates = append(s.ActiveAffiliates, l)
		return l, nil
	}
	return nil, fmt.Errorf("no prospect with id %s", id)
}

// FindCommission returns the commission with the given ID, or nil.
func (s *State) FindCommission(id string) *Commission {
	for _, c := range s.CommissionsLog {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// AppendCommission adds a commission to the log unless one with the same ID
// is already recorded. It reports whether the commission was added.
func (s *State) AppendCommission(c *Commission) bool {
	if c == nil || c.ID == "" || s.FindCommission(c.ID) != nil {
		return false
	}
	s.CommissionsLog = append(s.CommissionsLog, c)
	return true
}

// AppendDescription appends a note to the rolling task description.
func (s *State) AppendDescription(note string) {
	if note == "" {
		return
	}
	if s.TaskDescription == "" {
		s.TaskDescription = note
		return
	}
	s.TaskDescription += " " + note
}
