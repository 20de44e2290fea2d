package afflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/davidroman0O/afflow/state"
)

// ProspectRecord is one raw discovery result returned by a platform search,
// before scoring and deduplication.
type ProspectRecord struct {
	ID             string
	Name           string
	Platform       string
	AudienceSize   int
	EngagementRate float64
	ContactInfo    map[string]string
}

// ProspectSource searches one platform for creators matching a keyword.
type ProspectSource interface {
	Discover(ctx context.Context, platform, keyword string) ([]ProspectRecord, error)
}

// ProspectSourceFunc adapts a function to the ProspectSource interface.
type ProspectSourceFunc func(ctx context.Context, platform, keyword string) ([]ProspectRecord, error)

// Discover implements ProspectSource.
func (f ProspectSourceFunc) Discover(ctx context.Context, platform, keyword string) ([]ProspectRecord, error) {
	return f(ctx, platform, keyword)
}

// mockProspectSource returns a small fixed catalog keyed by platform and
// keyword, enough to drive a pipeline end to end without platform APIs.
type mockProspectSource struct {
	catalog map[string][]ProspectRecord
}

// NewMockProspectSource returns an offline discovery backend.
func NewMockProspectSource() ProspectSource {
	return &mockProspectSource{catalog: map[string][]ProspectRecord{
		"youtube/AI": {
			{
				ID: "yt_ai_channel_1", Name: "AI Insights Hub", Platform: "youtube",
				AudienceSize: 150000, EngagementRate: 0.05,
				ContactInfo: map[string]string{"email": "ai.insights@example.com"},
			},
			{
				ID: "yt_ai_channel_2", Name: "ML For Everyone", Platform: "youtube",
				AudienceSize: 75000, EngagementRate: 0.03,
				ContactInfo: map[string]string{"email": "ml.everyone@example.com"},
			},
		},
		"twitter/SaaS": {
			{
				ID: "tw_saas_guru_1", Name: "SaaS Guru", Platform: "twitter",
				AudienceSize: 25000, EngagementRate: 0.02,
				ContactInfo: map[string]string{"twitter_handle": "@saasguru"},
			},
			{
				ID: "tw_saas_reviewer_2", Name: "CloudReviewer", Platform: "twitter",
				AudienceSize: 500, EngagementRate: 0.01,
				ContactInfo: map[string]string{"twitter_handle": "@cloudreviewer"},
			},
		},
	}}
}

func (m *mockProspectSource) Discover(_ context.Context, platform, keyword string) ([]ProspectRecord, error) {
	for key, records := range m.catalog {
		parts := strings.SplitN(key, "/", 2)
		if parts[0] == platform && strings.Contains(keyword, parts[1]) {
			return records, nil
		}
	}
	return nil, nil
}

// ScoutAgent discovers new prospects across the configured platforms and
// keywords, filters them by audience size, scores them through the oracle,
// and appends the survivors to the prospect pool. Discovery is idempotent:
// leads already tracked anywhere in the state are skipped by ID.
type ScoutAgent struct {
	cfg    ScoutConfig
	oracle Oracle
	source ProspectSource
	log    Logger
}

// NewScoutAgent creates the scouting stage.
func NewScoutAgent(cfg ScoutConfig, oracle Oracle, source ProspectSource, log Logger) *ScoutAgent {
	return &ScoutAgent{cfg: cfg, oracle: oracle, source: source, log: log}
}

// Name implements Agent.Name.
func (a *ScoutAgent) Name() string { return stageScout }

// Run implements Agent.Run.
func (a *ScoutAgent) Run(ctx context.Context, st *state.State) error {
	added := 0
	for _, platform := range a.cfg.Platforms {
		for _, keyword := range a.cfg.Keywords {
			records, err := a.source.Discover(ctx, platform, keyword)
			if err != nil {
				return fmt.Errorf("discover %s/%q: %w", platform, keyword, err)
			}
			for _, rec := range records {
				if rec.AudienceSize < a.cfg.MinAudienceSize {
					a.log.Debug("scout: skipping %s, audience %d below minimum %d",
						rec.ID, rec.AudienceSize, a.cfg.MinAudienceSize)
					continue
				}
				lead := a.buildLead(rec)
				a.score(ctx, lead)
				if st.AddProspect(lead) {
					added++
					a.log.Info("scout: added prospect %s (%s) score=%.1f",
						lead.ID, lead.Name, lead.Score())
				}
			}
		}
	}

	st.AppendDescription(fmt.Sprintf("Found %d new prospects.", added))
	if added == 0 {
		a.log.Info("scout: no new prospects this cycle")
	}
	return nil
}

func (a *ScoutAgent) buildLead(rec ProspectRecord) *state.Lead {
	id := rec.ID
	if id == "" {
		id = "lead_" + uuid.NewString()
	}
	info := rec.ContactInfo
	if info == nil {
		info = map[string]string{}
	}
	return &state.Lead{
		ID:             id,
		Name:           rec.Name,
		ContactInfo:    info,
		Platform:       rec.Platform,
		AudienceSize:   rec.AudienceSize,
		EngagementRate: rec.EngagementRate,
		Status:         state.StatusNew,
	}
}

// score asks the oracle to rate a lead. A malformed or failed response
// falls back to neutral midpoint scores rather than failing the stage.
func (a *ScoutAgent) score(ctx context.Context, lead *state.Lead) {
	lead.ContentQualityScore = 5.0
	lead.RelevanceScore = 5.0

	prompt := fmt.Sprintf(
		"Score the following affiliate prospect from 0 to 10.\n%s\n\n"+
			"Prospect: %s on %s, audience %d, engagement %.3f.\n"+
			`Respond with JSON: {"content_quality_score": <float>, "relevance_score": <float>}`,
		a.cfg.ScoringCriteria, lead.Name, lead.Platform, lead.AudienceSize, lead.EngagementRate)

	resp, err := a.oracle.Complete(ctx, prompt)
	if err != nil {
		a.log.Warn("scout: scoring %s failed, using defaults: %v", lead.ID, err)
		return
	}

	var scores struct {
		ContentQualityScore float64 `json:"content_quality_score"`
		RelevanceScore      float64 `json:"relevance_score"`
	}
	raw := extractJSON(resp)
	if raw == "" || json.Unmarshal([]byte(raw), &scores) != nil {
		a.log.Warn("scout: unparseable score response for %s, using defaults", lead.ID)
		return
	}
	lead.ContentQualityScore = scores.ContentQualityScore
	lead.RelevanceScore = scores.RelevanceScore
}
