package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/davidroman0O/afflow"
	"github.com/davidroman0O/afflow/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	srv := NewServer(cfg, afflow.DefaultConfig(), afflow.NewDefaultLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		for _, c := range srv.Registry().List() {
			c.Close()
		}
	})
	return srv, ts
}

func createCampaign(t *testing.T, ts *httptest.Server, name string) Status {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"name": name})
	resp, err := http.Post(ts.URL+"/campaigns", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var status Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	return status
}

func TestCreateAndListCampaigns(t *testing.T) {
	_, ts := newTestServer(t)

	first := createCampaign(t, ts, "summer")
	second := createCampaign(t, ts, "autumn")
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, StatusInitialized, first.Status)
	assert.Equal(t, "initial", first.CurrentTask)

	resp, err := http.Get(ts.URL + "/campaigns")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 2)
}

func TestCreateCampaignRequiresName(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/campaigns", "application/json",
		bytes.NewReader([]byte(`{"name": "  "}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownCampaignIs404(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/campaigns/camp_missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunCycleOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)
	created := createCampaign(t, ts, "demo")

	resp, err := http.Post(ts.URL+"/campaigns/"+created.ID+"/run", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, StatusIdle, status.Status)
	assert.Equal(t, "cycle_complete", status.CurrentTask)
	assert.Equal(t, 1, status.CyclesCompleted)
	assert.Greater(t, status.Prospects+status.ActiveAffiliates, 0)
}

func TestStepOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)
	created := createCampaign(t, ts, "demo")

	resp, err := http.Post(ts.URL+"/campaigns/"+created.ID+"/step", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "prospects_found", status.CurrentTask)
}

func TestManualOutreachSelection(t *testing.T) {
	_, ts := newTestServer(t)
	created := createCampaign(t, ts, "demo")

	// Rejected before prospects exist.
	resp, err := http.Post(ts.URL+"/campaigns/"+created.ID+"/outreach", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Scout first, then the manual trigger selects targets.
	resp, err = http.Post(ts.URL+"/campaigns/"+created.ID+"/step", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/campaigns/"+created.ID+"/outreach", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, "outreach_targets_selected", status.CurrentTask)
}

func TestLeadFilters(t *testing.T) {
	_, ts := newTestServer(t)
	created := createCampaign(t, ts, "demo")

	resp, err := http.Post(ts.URL+"/campaigns/"+created.ID+"/step", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	var byPlatform []leadView
	getJSON(t, ts, fmt.Sprintf("/campaigns/%s/leads?platform=twitter", created.ID), &byPlatform)
	require.Len(t, byPlatform, 1)
	assert.Equal(t, "tw_saas_guru_1", byPlatform[0].ID)

	var big []leadView
	getJSON(t, ts, fmt.Sprintf("/campaigns/%s/leads?min_audience=100000", created.ID), &big)
	require.Len(t, big, 1)
	assert.Equal(t, "yt_ai_channel_1", big[0].ID)

	var search []leadView
	getJSON(t, ts, fmt.Sprintf("/campaigns/%s/leads?search=insights", created.ID), &search)
	require.Len(t, search, 1)
	assert.Equal(t, "AI Insights Hub", search[0].Name)

	resp, err = http.Get(ts.URL + fmt.Sprintf("/campaigns/%s/leads?min_audience=lots", created.ID))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLeadAndCommissionListings(t *testing.T) {
	_, ts := newTestServer(t)
	created := createCampaign(t, ts, "demo")

	resp, err := http.Post(ts.URL+"/campaigns/"+created.ID+"/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var leads []leadView
	getJSON(t, ts, fmt.Sprintf("/campaigns/%s/leads", created.ID), &leads)
	for _, l := range leads {
		assert.NotEqual(t, string(state.StatusConverted), l.Status)
	}

	var contacted []leadView
	getJSON(t, ts, fmt.Sprintf("/campaigns/%s/leads?status=CONTACTED", created.ID), &contacted)
	for _, l := range contacted {
		assert.Equal(t, "CONTACTED", l.Status)
	}

	var affiliates []leadView
	getJSON(t, ts, fmt.Sprintf("/campaigns/%s/affiliates", created.ID), &affiliates)
	assert.NotEmpty(t, affiliates)

	var commissions []state.Commission
	getJSON(t, ts, fmt.Sprintf("/campaigns/%s/commissions", created.ID), &commissions)
	assert.NotEmpty(t, commissions)

	var paid []state.Commission
	getJSON(t, ts, fmt.Sprintf("/campaigns/%s/commissions?status=PAID", created.ID), &paid)
	for _, c := range paid {
		assert.Equal(t, state.CommissionPaid, c.Status)
	}
}

func TestReportEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	created := createCampaign(t, ts, "demo")

	// No report before the first cycle completes.
	resp, err := http.Get(ts.URL + "/campaigns/" + created.ID + "/report")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/campaigns/"+created.ID+"/run", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report state.Report
	getJSON(t, ts, "/campaigns/"+created.ID+"/report", &report)
	assert.False(t, report.Timestamp.IsZero())
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func getJSON(t *testing.T, ts *httptest.Server, path string, out any) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestCampaignRunCycleStopsOnStuckStage(t *testing.T) {
	src := afflow.ProspectSourceFunc(func(context.Context, string, string) ([]afflow.ProspectRecord, error) {
		return nil, fmt.Errorf("discovery backend offline")
	})
	c := NewCampaign("stuck", afflow.DefaultConfig(), afflow.NewDefaultLogger(),
		afflow.WithProspectSource(src))
	defer c.Close()

	status, err := c.RunCycle(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusError, status.Status)
	assert.Equal(t, "initial", status.CurrentTask)
	assert.Contains(t, status.LastError, "discovery backend offline")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Len())

	a := NewCampaign("a", afflow.DefaultConfig(), afflow.NewDefaultLogger())
	b := NewCampaign("b", afflow.DefaultConfig(), afflow.NewDefaultLogger())
	r.Add(a)
	r.Add(b)

	got, err := r.Get(a.ID)
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = r.Get("camp_missing")
	assert.ErrorIs(t, err, ErrCampaignNotFound)

	assert.Len(t, r.List(), 2)
}
