package afflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScoutConfig configures prospect discovery and scoring.
type ScoutConfig struct {
	Platforms       []string `yaml:"platforms"`
	Keywords        []string `yaml:"keywords"`
	MinAudienceSize int      `yaml:"min_audience_size"`
	ScoringCriteria string   `yaml:"scoring_criteria"`
}

// OutreachConfig configures contact attempts against selected targets.
type OutreachConfig struct {
	Method               string            `yaml:"outreach_method"`
	EmailSubjectTemplate string            `yaml:"email_subject_template"`
	MessageTemplates     map[string]string `yaml:"message_templates"`
	MaxPerRun            int               `yaml:"max_outreach_per_run"`
}

// CRMConfig configures the external record store sync.
type CRMConfig struct {
	ToolID               string `yaml:"tool_id"`
	AffiliateStatusField string `yaml:"affiliate_status_field"`
	DefaultOwnerID       string `yaml:"default_owner_id"`
}

// Tier is one performance tier: affiliates whose monthly commission volume
// reaches Threshold earn Bonus on top of the base rate.
type Tier struct {
	Threshold int     `yaml:"threshold"`
	Bonus     float64 `yaml:"bonus"`
}

// CommissionConfig configures commission computation.
type CommissionConfig struct {
	DefaultRate      float64            `yaml:"default_commission_rate"`
	RecurringRate    float64            `yaml:"recurring_commission_rate"`
	PerformanceTiers map[string]Tier    `yaml:"performance_tiers"`
	PaymentThreshold float64            `yaml:"payment_threshold"`
	AttributionModel map[string]float64 `yaml:"attribution_model"`
}

// PerformanceConfig configures the analysis stage.
type PerformanceConfig struct {
	AnalysisPeriodDays int                `yaml:"analysis_period_days"`
	ReportMetrics      []string           `yaml:"report_metrics"`
	AlertThresholds    map[string]float64 `yaml:"alert_thresholds"`
}

// PaymentConfig configures payout batching.
type PaymentConfig struct {
	Methods         []string `yaml:"payment_methods"`
	BatchPayments   bool     `yaml:"batch_payments"`
	MinimumPayment  float64  `yaml:"minimum_payment"`
	PaymentSchedule string   `yaml:"payment_schedule"`
	DefaultCurrency string   `yaml:"default_currency"`
	DefaultMethod   string   `yaml:"default_payment_method"`
}

// WorkflowConfig holds cycle-level knobs owned by the orchestrator.
type WorkflowConfig struct {
	MaxOutreachPerCycle    int    `yaml:"max_outreach_per_cycle"`
	AutoApproveCommissions bool   `yaml:"auto_approve_commissions"`
	AutoRunSchedule        string `yaml:"auto_run_schedule"`
}

// Config is the full nested configuration for one pipeline.
type Config struct {
	Scout       ScoutConfig       `yaml:"social_scout"`
	Outreach    OutreachConfig    `yaml:"outreach"`
	CRM         CRMConfig         `yaml:"crm"`
	Commission  CommissionConfig  `yaml:"commission"`
	Performance PerformanceConfig `yaml:"performance"`
	Payment     PaymentConfig     `yaml:"payment"`
	Workflow    WorkflowConfig    `yaml:"workflow"`
}

// DefaultConfig returns the configuration a pipeline runs with when the
// caller overrides nothing.
func DefaultConfig() Config {
	return Config{
		Scout: ScoutConfig{
			Platforms:       []string{"youtube", "twitter", "linkedin", "instagram"},
			Keywords:        []string{"AI tools", "SaaS review", "machine learning", "productivity tools"},
			MinAudienceSize: 1000,
			ScoringCriteria: "Evaluate the prospect based on content quality related to our niche (e.g., AI, SaaS, productivity) and relevance of their audience to our target customers.",
		},
		Outreach: OutreachConfig{
			Method:               "email",
			EmailSubjectTemplate: "Collaboration Opportunity: {LEAD_NAME} x Our Brand",
			MessageTemplates: map[string]string{
				"default": "Hi {LEAD_NAME}, I noticed your impressive content on {LEAD_PLATFORM} and believe our audience would love your perspective. We're offering a 70% commission on our affiliate program. Would you be interested in learning more?",
			},
			MaxPerRun: 10,
		},
		CRM: CRMConfig{
			ToolID:               "hubspot",
			AffiliateStatusField: "affiliate_status",
			DefaultOwnerID:       "default_owner",
		},
		Commission: CommissionConfig{
			DefaultRate:   0.7,
			RecurringRate: 0.05,
			PerformanceTiers: map[string]Tier{
				"tier1": {Threshold: 10, Bonus: 0.05},
				"tier2": {Threshold: 25, Bonus: 0.10},
				"tier3": {Threshold: 50, Bonus: 0.15},
			},
			PaymentThreshold: 50.0,
			AttributionModel: map[string]float64{
				"firstClick": 0.3,
				"lastClick":  0.4,
				"linear":     0.3,
			},
		},
		Performance: PerformanceConfig{
			AnalysisPeriodDays: 30,
			ReportMetrics:      []string{"conversion_rate", "epc", "roi"},
			AlertThresholds: map[string]float64{
				"low_conversion_rate": 0.05,
				"low_epc":             0.5,
				"negative_roi":        0.0,
			},
		},
		Payment: PaymentConfig{
			Methods:         []string{"stripe_connect", "paypal", "crypto"},
			BatchPayments:   true,
			MinimumPayment:  50.0,
			PaymentSchedule: "weekly",
			DefaultCurrency: "USD",
			DefaultMethod:   "stripe_connect",
		},
		Workflow: WorkflowConfig{
			MaxOutreachPerCycle:    10,
			AutoApproveCommissions: true,
			AutoRunSchedule:        "daily",
		},
	}
}

// LoadConfig reads a YAML config file layered over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
