package afflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/davidroman0O/afflow/state"
)

// Placeholder traffic figures used until a real analytics feed is wired.
// TODO: replace with click and spend data from the tracking platform once
// the analytics source exists.
const (
	assumedClicks  = 10000
	assumedCostUSD = 5000.0
)

// PerformanceAgent computes campaign metrics over a trailing window, asks
// the oracle for optimization suggestions, flags threshold breaches, and
// replaces the state's report wholesale.
type PerformanceAgent struct {
	cfg    PerformanceConfig
	oracle Oracle
	log    Logger
	now    func() time.Time
}

// NewPerformanceAgent creates the performance analysis stage.
func NewPerformanceAgent(cfg PerformanceConfig, oracle Oracle, log Logger, now func() time.Time) *PerformanceAgent {
	return &PerformanceAgent{cfg: cfg, oracle: oracle, log: log, now: now}
}

// Name implements Agent.Name.
func (a *PerformanceAgent) Name() string { return stagePerformance }

// Run implements Agent.Run.
func (a *PerformanceAgent) Run(ctx context.Context, st *state.State) error {
	now := a.now().UTC()
	periodDays := a.cfg.AnalysisPeriodDays
	if periodDays <= 0 {
		periodDays = 30
	}
	start := now.AddDate(0, 0, -periodDays)

	metrics := a.computeMetrics(st, start, now, periodDays)
	report := &state.Report{
		Timestamp:     now,
		Metrics:       metrics,
		Optimizations: a.suggest(ctx, metrics),
		Anomalies:     a.detectAnomalies(metrics),
		Summary: state.Summary{
			TotalProspects:   metrics.TotalProspects,
			ActiveAffiliates: len(st.ActiveAffiliates),
			ConversionRate:   metrics.ConversionRate,
			TotalCommissions: metrics.TotalCommissions,
			EPC:              metrics.EPC,
			ROI:              metrics.ROI,
		},
	}

	st.PerformanceReport = report
	st.AppendDescription(fmt.Sprintf(
		"Performance analyzed: conversion %.1f%%, commissions %.2f, %d anomalies.",
		metrics.ConversionRate*100, metrics.TotalCommissions, len(report.Anomalies)))
	a.log.Info("performance: report generated, %d optimizations, %d anomalies",
		len(report.Optimizations), len(report.Anomalies))
	return nil
}

func (a *PerformanceAgent) computeMetrics(st *state.State, start, end time.Time, periodDays int) state.Metrics {
	m := state.Metrics{
		PeriodDays:     periodDays,
		PeriodStart:    start,
		PeriodEnd:      end,
		TotalProspects: len(st.Prospects) + len(st.ActiveAffiliates),
	}

	contacted := func(l *state.Lead) bool {
		for _, att := range l.OutreachHistory {
			if !att.Timestamp.Before(start) {
				return true
			}
		}
		return false
	}
	for _, l := range st.Prospects {
		if contacted(l) {
			m.ContactedProspects++
		}
		if l.Status == state.StatusConverted {
			m.ConvertedProspects++
		}
	}
	for _, l := range st.ActiveAffiliates {
		if contacted(l) {
			m.ContactedProspects++
		}
		m.ConvertedProspects++
	}
	if m.ContactedProspects > 0 {
		m.ConversionRate = float64(m.ConvertedProspects) / float64(m.ContactedProspects)
	}

	earnings := make(map[string]float64)
	for _, c := range st.CommissionsLog {
		if c.SaleDate.Before(start) || c.SaleDate.After(end) {
			continue
		}
		m.TotalCommissions += c.Amount
		m.TotalSales += c.SaleAmount
		earnings[c.AffiliateID] += c.Amount
	}

	m.EPC = m.TotalCommissions / assumedClicks
	m.ROI = (m.TotalSales - assumedCostUSD) / assumedCostUSD

	for id, amt := range earnings {
		m.TopAffiliates = append(m.TopAffiliates, state.TopAffiliate{AffiliateID: id, Earnings: amt})
	}
	sort.Slice(m.TopAffiliates, func(i, j int) bool {
		if m.TopAffiliates[i].Earnings != m.TopAffiliates[j].Earnings {
			return m.TopAffiliates[i].Earnings > m.TopAffiliates[j].Earnings
		}
		return m.TopAffiliates[i].AffiliateID < m.TopAffiliates[j].AffiliateID
	})
	if len(m.TopAffiliates) > 5 {
		m.TopAffiliates = m.TopAffiliates[:5]
	}
	return m
}

// canned optimizations used when the oracle returns nothing usable.
var defaultSuggestions = []state.Suggestion{
	{Action: "Focus recruiting on platforms with the highest conversion rate", Impact: "high", Difficulty: "medium"},
	{Action: "Refresh outreach templates for segments with low response rates", Impact: "medium", Difficulty: "low"},
	{Action: "Offer a limited-time bonus tier to top-earning affiliates", Impact: "medium", Difficulty: "medium"},
}

func (a *PerformanceAgent) suggest(ctx context.Context, m state.Metrics) []state.Suggestion {
	prompt := fmt.Sprintf(
		"Given these affiliate campaign metrics, propose up to 3 optimizations as a JSON array of "+
			`{"action": <string>, "impact": <low|medium|high>, "difficulty": <low|medium|high>}.`+"\n"+
			"conversion_rate=%.4f epc=%.4f roi=%.4f total_commissions=%.2f",
		m.ConversionRate, m.EPC, m.ROI, m.TotalCommissions)

	resp, err := a.oracle.Complete(ctx, prompt)
	if err != nil {
		a.log.Warn("performance: suggestion request failed, using defaults: %v", err)
		return defaultSuggestions
	}
	var out []state.Suggestion
	raw := extractJSON(resp)
	if raw == "" || json.Unmarshal([]byte(raw), &out) != nil || len(out) == 0 {
		return defaultSuggestions
	}
	return out
}

func (a *PerformanceAgent) detectAnomalies(m state.Metrics) []state.Anomaly {
	var out []state.Anomaly
	if threshold, ok := a.cfg.AlertThresholds["low_conversion_rate"]; ok &&
		m.ContactedProspects > 0 && m.ConversionRate < threshold {
		out = append(out, state.Anomaly{
			Type:     "low_conversion_rate",
			Message:  fmt.Sprintf("conversion rate %.4f is below threshold %.4f", m.ConversionRate, threshold),
			Severity: "high",
		})
	}
	if threshold, ok := a.cfg.AlertThresholds["low_epc"]; ok &&
		m.TotalCommissions > 0 && m.EPC < threshold {
		out = append(out, state.Anomaly{
			Type:     "low_epc",
			Message:  fmt.Sprintf("earnings per click %.4f is below threshold %.4f", m.EPC, threshold),
			Severity: "medium",
		})
	}
	if threshold, ok := a.cfg.AlertThresholds["negative_roi"]; ok && m.ROI < threshold {
		out = append(out, state.Anomaly{
			Type:     "negative_roi",
			Message:  fmt.Sprintf("ROI %.4f is below threshold %.4f", m.ROI, threshold),
			Severity: "critical",
		})
	}
	return out
}
