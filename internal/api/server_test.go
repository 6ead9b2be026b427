package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealmatch/internal/config"
	"github.com/sells-group/dealmatch/internal/importer"
	"github.com/sells-group/dealmatch/internal/matching"
	"github.com/sells-group/dealmatch/internal/orchestrator"
	"github.com/sells-group/dealmatch/internal/profile"
	"github.com/sells-group/dealmatch/internal/resolve"
	"github.com/sells-group/dealmatch/internal/store"
)

const (
	investorDoc = `{"target_preferences":{"industries":["Fintech"],"countries":[{"id":1}]}}`
	targetDoc   = `{"company_overview":{"industry":["Financial Technology"],"hq_country":{"id":1}}}`
)

type testEnv struct {
	handler http.Handler
	store   *store.SQLiteStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	scorer := matching.DefaultScorer()
	h := NewRouter(config.ServerConfig{}, Deps{
		Store:        st,
		Scorer:       scorer,
		Orchestrator: orchestrator.New(st, scorer, orchestrator.Options{}),
		Similarity:   config.SimilarityConfig{MinScore: 40, MaxResults: 3},
	})
	return &testEnv{handler: h, store: st}
}

func (e *testEnv) seedPair(t *testing.T) (int64, int64) {
	t.Helper()
	ctx := context.Background()
	invID, err := e.store.SaveProfile(ctx, &profile.Record{Kind: profile.KindInvestor, Name: "Lion Capital", Active: true,
		Data: json.RawMessage(investorDoc)})
	require.NoError(t, err)
	tgtID, err := e.store.SaveProfile(ctx, &profile.Record{Kind: profile.KindTarget, Name: "PayViet", Active: true,
		Data: json.RawMessage(targetDoc)})
	require.NoError(t, err)
	return invID, tgtID
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequestID_Echoed(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestResolve(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/resolve", `{"catalog":"currencies","value":" usd "}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeBody[resolve.Result](t, w)
	assert.Equal(t, "USD", res.Matched)
	assert.Equal(t, resolve.StrategyExact, res.Strategy)

	w = env.do(t, http.MethodPost, "/v1/resolve", `{"catalog":"planets","value":"Mars"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResolve_ValidationError(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/resolve", `{"catalog":"currencies"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeBody[errorResponse](t, w)
	assert.Equal(t, "validation failed", resp.Error)
	assert.Equal(t, []string{"value is required"}, resp.Fields)

	w = env.do(t, http.MethodPost, "/v1/resolve", `{"catalog":"currencies","value":"usd","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/v1/resolve", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSuggest_Explain(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/suggest", `{"names":["software"],"explain":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[struct {
		Results []SuggestResult `json:"results"`
	}](t, w)
	require.Len(t, resp.Results, 1)
	require.Len(t, resp.Results[0].Suggestions, 1)
	sg := resp.Results[0].Suggestions[0]
	assert.Equal(t, "Software", sg.Name)
	assert.Equal(t, 100, sg.Score)
	require.NotNil(t, sg.Components)
	assert.InDelta(t, 1.0, sg.Components.Edit, 1e-9)
}

func TestSuggest_UnknownCatalog(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/suggest", `{"names":["Mars"],"catalog":"planets"}`)
	require.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	assert.Contains(t, decodeBody[errorResponse](t, w).Error, `unknown catalog "planets"`)
}

func TestSuggest_RequiresNames(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/v1/suggest", `{"names":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportValidate_BatchDuplicates(t *testing.T) {
	env := newTestEnv(t)

	body := `{"entity":"seller","rows":[
		{"name":"PayViet","origin_country":"Vietnam","reference_code":"VN-S-1"},
		{"name":"PayViet Two","origin_country":"vietnam","reference_code":"vn-s-1"}
	]}`
	w := env.do(t, http.MethodPost, "/v1/import/validate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decodeBody[importer.Result](t, w)
	assert.Equal(t, importer.Summary{Total: 2, Valid: 0, Errors: 2}, res.Summary)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, 1, res.Rows[0].RowIndex)
	assert.Contains(t, res.Rows[0].Errors[0].Message, "also in row 2")
	assert.NotEmpty(t, res.Columns)
}

func TestImportValidate_BadEntity(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/v1/import/validate", `{"entity":"partner","rows":[{"name":"x"}]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeBody[errorResponse](t, w)
	assert.Equal(t, []string{"entity must be one of: investor target buyer seller"}, resp.Fields)
}

func TestScore_InlineDocuments(t *testing.T) {
	env := newTestEnv(t)

	body := `{"investor":` + investorDoc + `,"target":` + targetDoc + `}`
	w := env.do(t, http.MethodPost, "/v1/score", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	sc := decodeBody[matching.Score](t, w)
	assert.GreaterOrEqual(t, sc.Total, 0)
	assert.LessOrEqual(t, sc.Total, 100)
}

func TestScore_StoredProfiles(t *testing.T) {
	env := newTestEnv(t)
	invID, tgtID := env.seedPair(t)

	body, err := json.Marshal(map[string]int64{"investor_id": invID, "target_id": tgtID})
	require.NoError(t, err)
	w := env.do(t, http.MethodPost, "/v1/score", string(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/v1/score", `{"investor_id":999,"target_id":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/v1/score", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRescan_ThenReview(t *testing.T) {
	env := newTestEnv(t)
	invID, tgtID := env.seedPair(t)

	w := env.do(t, http.MethodPost, "/v1/matches/rescan", `{"all":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := decodeBody[orchestrator.Report](t, w)
	assert.Equal(t, 1, report.Scored)
	assert.Equal(t, 1, report.Created)
	assert.NotEmpty(t, report.RunID)

	path := "/v1/matches/" + itoa(invID) + "/" + itoa(tgtID) + "/status"
	w = env.do(t, http.MethodPut, path, `{"status":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, path, `{"status":"reviewed"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec := decodeBody[matching.Record](t, w)
	assert.Equal(t, matching.StatusReviewed, rec.Status)

	w = env.do(t, http.MethodPost, "/v1/matches/rescan", `{"investor_id":`+itoa(invID)+`}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report = decodeBody[orchestrator.Report](t, w)
	assert.Equal(t, 1, report.Updated)

	w = env.do(t, http.MethodGet, "/v1/matches?status=reviewed", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decodeBody[struct {
		Matches []matching.Record `json:"matches"`
	}](t, w)
	require.Len(t, list.Matches, 1)
	assert.Equal(t, matching.StatusReviewed, list.Matches[0].Status)
}

func TestRescan_ScopeValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/matches/rescan", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/v1/matches/rescan", `{"investor_id":1,"all":true}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/v1/matches/rescan", `{"target_id":42}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListMatches_BadQuery(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/v1/matches?investor_id=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/v1/matches?status=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/v1/matches", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"matches":[]}`, w.Body.String())
}

func TestAddCatalogOption(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/catalogs/industries/options", `{"name":"Agritech"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"Agritech"`)

	w = env.do(t, http.MethodPost, "/v1/resolve", `{"catalog":"industries","value":"agritech"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Agritech", decodeBody[resolve.Result](t, w).Matched)

	w = env.do(t, http.MethodPost, "/v1/resolve", `{"catalog":"industries","value":"banking"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Banking", decodeBody[resolve.Result](t, w).Matched)

	w = env.do(t, http.MethodPost, "/v1/catalogs/planets/options", `{"name":"Mars"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORS_Preflight(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/v1/resolve", nil)
	req.Header.Set("Origin", "https://crm.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
