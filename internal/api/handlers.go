package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealmatch/internal/catalog"
	"github.com/sells-group/dealmatch/internal/importer"
	"github.com/sells-group/dealmatch/internal/matching"
	"github.com/sells-group/dealmatch/internal/orchestrator"
	"github.com/sells-group/dealmatch/internal/profile"
	"github.com/sells-group/dealmatch/internal/resolve"
	"github.com/sells-group/dealmatch/internal/similarity"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	if _, err := s.store.LoadCatalog(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// snapshot returns the catalogs for one request. Each request reads a fresh
// snapshot so options added since the last call are visible.
func (s *Server) snapshot(ctx context.Context) (*catalog.Snapshot, error) {
	if s.store == nil {
		return catalog.Default(), nil
	}
	return s.store.LoadCatalog(ctx)
}

type resolveRequest struct {
	Catalog string `json:"catalog" validate:"required"`
	Value   string `json:"value" validate:"required"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if !snap.Has(req.Catalog) {
		writeError(w, http.StatusNotFound, eris.Errorf("unknown catalog %q", req.Catalog))
		return
	}
	cat := snap.Get(req.Catalog)

	res := resolve.New(snap.Aliases()).Resolve(req.Value, cat.Names())
	writeJSON(w, http.StatusOK, res)
}

type suggestRequest struct {
	Names   []string `json:"names" validate:"required,min=1,max=500,dive,required"`
	Catalog string   `json:"catalog"`
	Explain bool     `json:"explain"`
}

// ExplainedSuggestion is a suggestion with its sub-scores.
type ExplainedSuggestion struct {
	similarity.Suggestion
	Components *similarity.Components `json:"components,omitempty"`
}

// SuggestResult holds the ranked suggestions for one input name.
type SuggestResult struct {
	Name        string                `json:"name"`
	Suggestions []ExplainedSuggestion `json:"suggestions"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Catalog == "" {
		req.Catalog = catalog.Industries
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if !snap.Has(req.Catalog) {
		writeError(w, http.StatusNotFound, eris.Errorf("unknown catalog %q", req.Catalog))
		return
	}
	cat := snap.Get(req.Catalog)

	entries := cat.Options()
	results := make([]SuggestResult, 0, len(req.Names))
	for _, name := range req.Names {
		results = append(results, SuggestResult{
			Name:        name,
			Suggestions: s.suggest(name, entries, req.Explain),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) suggest(name string, entries []catalog.Option, explain bool) []ExplainedSuggestion {
	minScore, limit := s.similarity.MinScore, s.similarity.MaxResults
	if limit == 0 {
		minScore, limit = similarity.MinScore, similarity.MaxResults
	}
	sugs := similarity.SuggestWith(name, entries, similarity.DefaultWeights(), minScore, limit)

	out := make([]ExplainedSuggestion, len(sugs))
	for i, sg := range sugs {
		out[i] = ExplainedSuggestion{Suggestion: sg}
		if explain {
			c := similarity.Breakdown(name, sg.Name)
			out[i].Components = &c
		}
	}
	return out
}

type importRequest struct {
	Entity string              `json:"entity" validate:"required,oneof=investor target buyer seller"`
	Rows   []map[string]string `json:"rows" validate:"required,min=1,max=5000"`
}

func (s *Server) handleImportValidate(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	kind, err := profile.ParseKind(req.Entity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	snap, err := s.snapshot(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	var codes importer.CodeChecker
	if s.store != nil {
		codes = s.store
	}
	v, err := importer.NewValidator(snap, codes)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	rows := make([]importer.Row, len(req.Rows))
	for i, values := range req.Rows {
		rows[i] = importer.Row{Index: i + 1, Values: values}
	}
	writeJSON(w, http.StatusOK, v.ValidateAll(r.Context(), rows, kind))
}

type scoreRequest struct {
	InvestorID int64           `json:"investor_id" validate:"required_without=Investor"`
	TargetID   int64           `json:"target_id" validate:"required_without=Target"`
	Investor   json.RawMessage `json:"investor"`
	Target     json.RawMessage `json:"target"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ctx := r.Context()
	invRec, err := s.loadRecord(ctx, profile.KindInvestor, req.InvestorID, req.Investor)
	if err != nil {
		s.writeLoadError(w, r, err)
		return
	}
	tgtRec, err := s.loadRecord(ctx, profile.KindTarget, req.TargetID, req.Target)
	if err != nil {
		s.writeLoadError(w, r, err)
		return
	}

	inv, err := profile.DecodeInvestor(invRec)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	tgt, err := profile.DecodeTarget(tgtRec)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	writeJSON(w, http.StatusOK, s.scorer.Score(inv, tgt))
}

var errNoStore = errors.New("no store configured")

// loadRecord returns an inline document when present, otherwise the stored
// profile with the given id.
func (s *Server) loadRecord(ctx context.Context, kind profile.Kind, id int64, inline json.RawMessage) (profile.Record, error) {
	if len(inline) > 0 {
		return profile.Record{ID: id, Kind: kind, Data: inline}, nil
	}
	if s.store == nil {
		return profile.Record{}, errNoStore
	}
	rec, err := s.store.GetProfile(ctx, kind, id)
	if err != nil {
		return profile.Record{}, err
	}
	return *rec, nil
}

func (s *Server) writeLoadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errNoStore) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeStoreError(w, r, err)
}

type addOptionRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (s *Server) handleAddCatalogOption(w http.ResponseWriter, r *http.Request) {
	var req addOptionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.store == nil {
		writeError(w, http.StatusBadRequest, errNoStore)
		return
	}

	name := chi.URLParam(r, "catalog")
	snap, err := s.store.LoadCatalog(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if !snap.Has(name) {
		writeError(w, http.StatusNotFound, eris.Errorf("unknown catalog %q", name))
		return
	}

	opt, err := s.store.AddCatalogOption(r.Context(), name, req.Name)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opt)
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusBadRequest, errNoStore)
		return
	}

	q := r.URL.Query()
	var f matching.Filter
	var err error
	if f.InvestorID, err = queryInt(q.Get("investor_id")); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "investor_id"))
		return
	}
	if f.TargetID, err = queryInt(q.Get("target_id")); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "target_id"))
		return
	}
	minTotal, err := queryInt(q.Get("min_total"))
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "min_total"))
		return
	}
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "limit"))
		return
	}
	f.MinTotal, f.Limit = int(minTotal), int(limit)
	if status := q.Get("status"); status != "" {
		if err := matching.ValidateStatus(status); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		f.Status = status
	}

	recs, err := s.store.ListMatches(r.Context(), f)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if recs == nil {
		recs = []matching.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": recs})
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (s *Server) handleSetMatchStatus(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusBadRequest, errNoStore)
		return
	}
	invID, err := strconv.ParseInt(chi.URLParam(r, "investorID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.New("investor id must be an integer"))
		return
	}
	tgtID, err := strconv.ParseInt(chi.URLParam(r, "targetID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, eris.New("target id must be an integer"))
		return
	}

	var req statusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := matching.ValidateStatus(req.Status); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.store.SetMatchStatus(r.Context(), invID, tgtID, req.Status); err != nil {
		writeStoreError(w, r, err)
		return
	}
	rec, err := s.store.GetMatch(r.Context(), invID, tgtID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type rescanRequest struct {
	InvestorID int64 `json:"investor_id" validate:"omitempty,gt=0"`
	TargetID   int64 `json:"target_id" validate:"omitempty,gt=0"`
	All        bool  `json:"all"`
}

type rescanResponse struct {
	*orchestrator.Report
	Error string `json:"error,omitempty"`
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request) {
	var req rescanRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if s.orchestrator == nil {
		writeError(w, http.StatusBadRequest, eris.New("no orchestrator configured"))
		return
	}

	scopes := 0
	for _, set := range []bool{req.InvestorID != 0, req.TargetID != 0, req.All} {
		if set {
			scopes++
		}
	}
	if scopes != 1 {
		writeError(w, http.StatusBadRequest, eris.New("exactly one of investor_id, target_id, or all is required"))
		return
	}

	ctx := r.Context()
	var (
		report *orchestrator.Report
		err    error
	)
	switch {
	case req.InvestorID != 0:
		report, err = s.orchestrator.ForInvestor(ctx, req.InvestorID)
	case req.TargetID != 0:
		report, err = s.orchestrator.ForTarget(ctx, req.TargetID)
	default:
		report, err = s.orchestrator.FullRescan(ctx)
	}

	if err != nil {
		if report == nil {
			writeStoreError(w, r, err)
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, rescanResponse{Report: report, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rescanResponse{Report: report})
}

func queryInt(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, eris.Errorf("must be an integer, got %q", v)
	}
	return n, nil
}
