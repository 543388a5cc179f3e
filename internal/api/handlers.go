package api

import (
	"encoding/json"
	"net/http"

	"mnemo/internal/inflate"
	"mnemo/internal/retrieval"
)

// queryRequest is the body of POST /v1/query and /v1/graph.
type queryRequest struct {
	Query    string   `json:"query"`
	Buckets  []string `json:"buckets,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	MaxChars int      `json:"maxChars,omitempty"`
	Scope    string   `json:"scope,omitempty"`
	Types    []string `json:"types,omitempty"`
	MinValue *float64 `json:"minValue,omitempty"`
	MaxValue *float64 `json:"maxValue,omitempty"`
	// Smart selects the adaptive entity-split strategy.
	Smart bool `json:"smart,omitempty"`
}

func (req *queryRequest) options() retrieval.Options {
	return retrieval.Options{
		Buckets:  req.Buckets,
		Tags:     req.Tags,
		MaxChars: req.MaxChars,
		Scope:    req.Scope,
		Types:    req.Types,
		MinValue: req.MinValue,
		MaxValue: req.MaxValue,
	}
}

type associateRequest struct {
	AnchorIDs []string `json:"anchorIds,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// inflateRequest is the body of POST /v1/inflate. A zero budget applies the
// configured defaults.
type inflateRequest struct {
	Matches []inflate.Match `json:"matches"`
	Budget  int             `json:"budget,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	var res *retrieval.Result
	if req.Smart {
		res = s.engine.SmartSearch(r.Context(), req.Query, req.options())
	} else {
		res = s.engine.IterativeSearch(r.Context(), req.Query, req.options())
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Illuminate(r.Context(), req.Query, req.options()))
}

func (s *Server) handleAssociate(w http.ResponseWriter, r *http.Request) {
	var req associateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch {
	case len(req.AnchorIDs) > 0:
		writeJSON(w, http.StatusOK, s.engine.Associate(r.Context(), req.AnchorIDs))
	case len(req.Tags) > 0:
		writeJSON(w, http.StatusOK, s.engine.AssociateTags(r.Context(), req.Tags))
	default:
		writeError(w, http.StatusBadRequest, "anchorIds or tags required")
	}
}

func (s *Server) handleInflate(w http.ResponseWriter, r *http.Request) {
	var req inflateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Matches) == 0 {
		writeError(w, http.StatusBadRequest, "matches are required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"windows": s.engine.Inflate(req.Matches, req.Budget),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{"message": message},
	})
}
