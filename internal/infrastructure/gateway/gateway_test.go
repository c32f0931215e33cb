package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/infrastructure/llm/adk"
)

type fakeAgent struct {
	answer    string
	runStatus int
	runDelay  time.Duration
	rootCode  int
	probes    atomic.Int32
	runs      atomic.Int32
}

func (f *fakeAgent) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/" && r.Method == http.MethodGet:
		f.probes.Add(1)
		if f.rootCode == http.StatusTemporaryRedirect {
			http.Redirect(w, r, "/dev-ui/", http.StatusTemporaryRedirect)
			return
		}
		w.WriteHeader(f.rootCode)
	case strings.HasPrefix(r.URL.Path, "/apps/"):
		_, _ = w.Write([]byte(`{}`))
	case r.URL.Path == "/run":
		f.runs.Add(1)
		if f.runDelay > 0 {
			select {
			case <-time.After(f.runDelay):
			case <-r.Context().Done():
				return
			}
		}
		if f.runStatus != 0 {
			http.Error(w, "agent failure", f.runStatus)
			return
		}
		events := []map[string]any{{"content": map[string]any{"parts": []map[string]string{{"text": f.answer}}}}}
		_ = json.NewEncoder(w).Encode(events)
	default:
		http.NotFound(w, r)
	}
}

func newTestGateway(t *testing.T, agent *fakeAgent, callTimeout time.Duration) (*Gateway, *httptest.Server) {
	t.Helper()
	if agent.rootCode == 0 {
		agent.rootCode = http.StatusOK
	}
	server := httptest.NewServer(agent)
	t.Cleanup(server.Close)

	prober := NewProber(server.URL, time.Second, time.Minute, nil, nil)
	live := adk.New(adk.Config{BaseURL: server.URL}, nil)
	return New(Config{CallTimeout: callTimeout}, prober, live, NewSimulator(nil), nil, nil), server
}

func payloadKeys(t *testing.T, raw json.RawMessage) []string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var orgRequest = domain.OrgVerificationRequest{
	Name:     "University of Toronto",
	Type:     "University",
	Location: "Toronto, Ontario",
}

func TestCallUsesLiveAgentWhenReachable(t *testing.T) {
	agent := &fakeAgent{answer: "Result:\n```json\n{\"status\":\"passed\",\"official_name\":\"University of Toronto\",\"province\":\"Ontario\",\"location_match\":true,\"in_canada\":true,\"summary\":\"Verified\"}\n```"}
	gw, _ := newTestGateway(t, agent, time.Second)

	resp, err := gw.Call(context.Background(), domain.OpOrganizationVerification, orgRequest)
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseLive, resp.Kind)
	assert.Empty(t, resp.Diagnostic)

	var out domain.OrgVerificationResult
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, "Ontario", out.Province)
	assert.True(t, out.InCanada)
}

func TestCallFallsBackWhenProbeFails(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	prober := NewProber(url, 200*time.Millisecond, time.Minute, nil, nil)
	gw := New(Config{CallTimeout: time.Second}, prober, adk.New(adk.Config{BaseURL: url}, nil), nil, nil, nil)

	for _, tc := range []struct {
		op      domain.Operation
		payload any
	}{
		{domain.OpOrganizationVerification, orgRequest},
		{domain.OpGrantSearch, domain.GrantSearchRequest{Query: "health"}},
		{domain.OpEligibilityCrossCheck, domain.EligibilityCrossCheckRequest{Factors: []domain.FactorResult{{Name: "Located in Canada", Satisfied: true}}}},
		{domain.OpSuggestionGeneration, domain.SuggestionRequest{MissingFactors: []string{"Has research capacity"}}},
	} {
		resp, err := gw.Call(context.Background(), tc.op, tc.payload)
		require.NoError(t, err, tc.op)
		assert.Equal(t, domain.ResponseSimulated, resp.Kind, tc.op)
		assert.Contains(t, resp.Diagnostic, "unreachable", tc.op)
		assert.NotEmpty(t, resp.Payload, tc.op)
	}
}

func jsonKinds(t *testing.T, raw json.RawMessage) map[string]string {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	kinds := make(map[string]string, len(m))
	for k, v := range m {
		switch v.(type) {
		case map[string]any:
			kinds[k] = "object"
		case []any:
			kinds[k] = "array"
		case string:
			kinds[k] = "string"
		case float64:
			kinds[k] = "number"
		case bool:
			kinds[k] = "bool"
		default:
			kinds[k] = "null"
		}
	}
	return kinds
}

func TestSimulatedPayloadHasLiveShape(t *testing.T) {
	cases := []struct {
		op      domain.Operation
		payload any
		answer  string
	}{
		{
			op:      domain.OpOrganizationVerification,
			payload: orgRequest,
			answer:  `{"status":"passed","official_name":"University of Toronto","province":"Ontario","location_match":true,"in_canada":true,"summary":"Verified"}`,
		},
		{
			op:      domain.OpGrantSearch,
			payload: domain.GrantSearchRequest{Query: "ai"},
			answer:  `{"results":[{"title":"A","agency":"B","amount":"$1","deadline":"2025-01-01","match_score":0.5,"description":"d"}],"total_found":1}`,
		},
		{
			op:      domain.OpEligibilityCrossCheck,
			payload: domain.EligibilityCrossCheckRequest{Factors: []domain.FactorResult{{Name: "Located in Canada", Satisfied: true}}},
			answer:  `{"eligible":true,"concerns":["budget unclear"],"notes":"looks fine"}`,
		},
		{
			op:      domain.OpSuggestionGeneration,
			payload: domain.SuggestionRequest{MissingFactors: []string{"Has research capacity"}},
			answer:  `{"suggestions":["Name a co-investigator"]}`,
		},
	}
	simulator := New(Config{}, nil, nil, nil, nil, nil)

	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			gw, _ := newTestGateway(t, &fakeAgent{answer: tc.answer}, time.Second)

			live, err := gw.Call(context.Background(), tc.op, tc.payload)
			require.NoError(t, err)
			require.Equal(t, domain.ResponseLive, live.Kind, live.Diagnostic)

			simulated, err := simulator.Call(context.Background(), tc.op, tc.payload)
			require.NoError(t, err)
			require.Equal(t, domain.ResponseSimulated, simulated.Kind)

			assert.Equal(t, payloadKeys(t, live.Payload), payloadKeys(t, simulated.Payload))
			assert.Equal(t, jsonKinds(t, live.Payload), jsonKinds(t, simulated.Payload))
		})
	}
}

func TestSimulatedGrantSearchListsCanadianPrograms(t *testing.T) {
	resp, err := New(Config{}, nil, nil, nil, nil, nil).Call(context.Background(), domain.OpGrantSearch, domain.GrantSearchRequest{Query: "ai"})
	require.NoError(t, err)

	var result domain.GrantSearchResult
	require.NoError(t, resp.Decode(&result))
	require.Len(t, result.Results, 3)
	assert.Equal(t, "CIHR Project Grant", result.Results[0].Title)

	var raw struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(resp.Payload, &raw))
	keys := make([]string, 0, len(raw.Results[0]))
	for k := range raw.Results[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"agency", "amount", "deadline", "description", "match_score", "title"}, keys)
}

func TestCallFallsBackOnLiveFailure(t *testing.T) {
	gw, _ := newTestGateway(t, &fakeAgent{runStatus: http.StatusInternalServerError}, time.Second)

	resp, err := gw.Call(context.Background(), domain.OpSuggestionGeneration, domain.SuggestionRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseSimulated, resp.Kind)
	assert.Contains(t, resp.Diagnostic, "agent failure")

	var out domain.SuggestionResult
	require.NoError(t, resp.Decode(&out))
	assert.Len(t, out.Suggestions, 6)
}

func TestCallFallsBackOnUnparseableAnswer(t *testing.T) {
	gw, _ := newTestGateway(t, &fakeAgent{answer: "I am not able to help with that."}, time.Second)

	resp, err := gw.Call(context.Background(), domain.OpOrganizationVerification, orgRequest)
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseSimulated, resp.Kind)
	assert.NotEmpty(t, resp.Diagnostic)
}

func TestCallFallsBackOnUnknownVerificationStatus(t *testing.T) {
	gw, _ := newTestGateway(t, &fakeAgent{answer: `{"status":"maybe"}`}, time.Second)

	resp, err := gw.Call(context.Background(), domain.OpOrganizationVerification, orgRequest)
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseSimulated, resp.Kind)
	assert.Contains(t, resp.Diagnostic, "maybe")
}

func TestCallFallsBackOnTimeout(t *testing.T) {
	gw, _ := newTestGateway(t, &fakeAgent{answer: `{"suggestions":["x"]}`, runDelay: time.Second}, 50*time.Millisecond)

	resp, err := gw.Call(context.Background(), domain.OpSuggestionGeneration, domain.SuggestionRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.ResponseSimulated, resp.Kind)
}

func TestCallRejectsUnknownOperationAndWrongPayload(t *testing.T) {
	gw := New(Config{}, nil, nil, nil, nil, nil)

	_, err := gw.Call(context.Background(), "weather-forecast", nil)
	assert.True(t, domain.IsKind(err, domain.ErrUnknownOperation))

	_, err = gw.Call(context.Background(), domain.OpGrantSearch, orgRequest)
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
}

func TestCallReturnsErrorWhenCallerCancelled(t *testing.T) {
	gw := New(Config{}, nil, nil, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Call(ctx, domain.OpGrantSearch, domain.GrantSearchRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProbeAcceptsRedirectAndCaches(t *testing.T) {
	agent := &fakeAgent{rootCode: http.StatusTemporaryRedirect}
	server := httptest.NewServer(agent)
	defer server.Close()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	prober := NewProber(server.URL, time.Second, 30*time.Second, nil, nil)
	prober.now = func() time.Time { return now }

	first := prober.Status(context.Background())
	assert.True(t, first.Reachable)
	assert.Equal(t, http.StatusTemporaryRedirect, first.StatusCode)
	assert.False(t, first.Cached)

	second := prober.Status(context.Background())
	assert.True(t, second.Cached)
	assert.EqualValues(t, 1, agent.probes.Load())

	now = now.Add(31 * time.Second)
	prober.Status(context.Background())
	assert.EqualValues(t, 2, agent.probes.Load())

	prober.Refresh(context.Background())
	assert.EqualValues(t, 3, agent.probes.Load())
}

func TestProbeTreatsServerErrorAsUnreachable(t *testing.T) {
	agent := &fakeAgent{rootCode: http.StatusServiceUnavailable}
	server := httptest.NewServer(agent)
	defer server.Close()

	status := NewProber(server.URL, time.Second, 0, nil, nil).Status(context.Background())
	assert.False(t, status.Reachable)
	assert.Contains(t, status.Error, "503")
}

func TestSimulatedVerificationUsesLocationVocabulary(t *testing.T) {
	sim := NewSimulator(nil)

	var passed domain.OrgVerificationResult
	require.NoError(t, sim.Ask(context.Background(), domain.OpOrganizationVerification, domain.OrgVerificationRequest{Name: "Org", Location: "Halifax, Nova Scotia"}, &passed))
	assert.Equal(t, domain.VerificationPassed, passed.Status)
	assert.Equal(t, "Nova Scotia", passed.Province)

	var abroad domain.OrgVerificationResult
	require.NoError(t, sim.Ask(context.Background(), domain.OpOrganizationVerification, domain.OrgVerificationRequest{Name: "Org", Location: "Springfield"}, &abroad))
	assert.Equal(t, domain.VerificationNotInCanada, abroad.Status)
	assert.False(t, abroad.InCanada)
}
