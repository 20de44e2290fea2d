package host

import (
	"time"

	"github.com/davidroman0O/afflow/state"
)

// Status is the campaign snapshot returned by the HTTP surface.
type Status struct {
	ID               string    `json:"campaign_id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Status           string    `json:"status"`
	CurrentTask      string    `json:"current_task"`
	CyclesCompleted  int       `json:"cycles_completed"`
	Prospects        int       `json:"prospects"`
	ActiveAffiliates int       `json:"active_affiliates"`
	Commissions      int       `json:"commissions"`
	LastError        string    `json:"last_error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	LastRun          time.Time `json:"last_run,omitzero"`
}

// createCampaignRequest is the body of POST /campaigns.
type createCampaignRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ConfigPath  string `json:"config_path,omitempty"`
}

// leadView is the wire shape of a lead listing entry.
type leadView struct {
	ID             string  `json:"lead_id"`
	Name           string  `json:"name"`
	Platform       string  `json:"platform"`
	Status         string  `json:"status"`
	Score          float64 `json:"score"`
	AudienceSize   int     `json:"audience_size"`
	EngagementRate float64 `json:"engagement_rate"`
	Outreaches     int     `json:"outreach_attempts"`
}

func toLeadView(l *state.Lead) leadView {
	return leadView{
		ID:             l.ID,
		Name:           l.Name,
		Platform:       l.Platform,
		Status:         string(l.Status),
		Score:          l.Score(),
		AudienceSize:   l.AudienceSize,
		EngagementRate: l.EngagementRate,
		Outreaches:     len(l.OutreachHistory),
	}
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}
