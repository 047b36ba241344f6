package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/sfaret/stipslite/internal/auth"
	"github.com/sfaret/stipslite/internal/flows"
	"github.com/sfaret/stipslite/internal/store"
)

// searchPage describes the page for one flow.
type searchPage struct {
	Flow        string
	Title       string
	Action      string
	Placeholder string
}

var searchPages = map[string]searchPage{
	flows.InternetSearch: {
		Flow:        flows.InternetSearch,
		Title:       "Ask anything",
		Action:      "/search/internet",
		Placeholder: "When do second semester exams start?",
	},
	flows.PrintLocationSearch: {
		Flow:        flows.PrintLocationSearch,
		Title:       "Find a print location",
		Action:      "/search/print-locations",
		Placeholder: "Colour printing and binding near Legon",
	},
	flows.TaskSearch: {
		Flow:        flows.TaskSearch,
		Title:       "Find VA tasks",
		Action:      "/search/tasks",
		Placeholder: "Typing or transcription work this week",
	},
}

// searchResult is what a flow produced, ready for the search template.
type searchResult struct {
	Answer  string
	Results []string
}

// runFlow dispatches to the named flow and normalizes its output.
func (s *Server) runFlow(ctx context.Context, flow, query string) (*searchResult, any, error) {
	if p := auth.FromContext(ctx); p != nil {
		ctx = flows.WithActor(ctx, p.Email)
	}
	switch flow {
	case flows.InternetSearch:
		out, err := s.flows.InternetSearch(ctx, flows.InternetSearchInput{Query: query})
		if err != nil {
			return nil, nil, err
		}
		return &searchResult{Answer: out.Answer}, out, nil
	case flows.PrintLocationSearch:
		out, err := s.flows.PrintLocationSearch(ctx, flows.SearchInput{Query: query})
		if err != nil {
			return nil, nil, err
		}
		return &searchResult{Results: out.Results}, out, nil
	default:
		out, err := s.flows.TaskSearch(ctx, flows.SearchInput{Query: query})
		if err != nil {
			return nil, nil, err
		}
		return &searchResult{Results: out.Results}, out, nil
	}
}

// flowStatus maps a flow error to an HTTP status and a user-facing message.
func flowStatus(err error) (int, string) {
	switch {
	case errors.Is(err, flows.ErrInvalidInput):
		return http.StatusBadRequest, "Please enter a query of at most 2000 characters."
	case errors.Is(err, flows.ErrNoModel):
		return http.StatusServiceUnavailable, "AI search is not configured on this portal."
	case errors.Is(err, flows.ErrSchemaViolation):
		return http.StatusBadGateway, "The AI returned an answer we could not read. Please try again."
	default:
		return http.StatusBadGateway, "The AI service is unavailable. Please try again later."
	}
}

func (s *Server) recentRuns(ctx context.Context, flow string) []store.FlowRun {
	p := auth.FromContext(ctx)
	if p == nil {
		return nil
	}
	runs, err := s.db.RecentFlowRuns(ctx, store.FlowRunFilter{Flow: flow, ActorEmail: p.Email, Limit: 5})
	if err != nil {
		log.Error().Err(err).Str("flow", flow).Msg("recent flow runs")
		return nil
	}
	return runs
}

func (s *Server) handleSearchPage(flow string) http.HandlerFunc {
	page := searchPages[flow]
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusOK, "search.html", page.Title, map[string]any{
			"Page":      page,
			"Available": s.flows.Available(),
			"Query":     "",
			"Recent":    s.recentRuns(r.Context(), flow),
		}, nil)
	}
}

func (s *Server) handleSearchSubmit(flow string) http.HandlerFunc {
	page := searchPages[flow]
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			redirectWith(w, r, page.Action, "error", "Could not read the form.")
			return
		}
		query := r.PostFormValue("query")
		data := map[string]any{
			"Page":      page,
			"Available": s.flows.Available(),
			"Query":     query,
		}

		result, _, err := s.runFlow(r.Context(), flow, query)
		if err != nil {
			status, msg := flowStatus(err)
			data["Recent"] = s.recentRuns(r.Context(), flow)
			s.render(w, r, status, "search.html", page.Title, data, &notice{Kind: "error", Message: msg})
			return
		}
		s.recordActivity(r.Context(), auth.FromContext(r.Context()), "search", flow+": "+query)

		data["Result"] = result
		data["Recent"] = s.recentRuns(r.Context(), flow)
		msg := "Search complete."
		if result.Answer == "" && len(result.Results) == 0 {
			msg = "Search complete. Nothing matched."
		}
		s.render(w, r, http.StatusOK, "search.html", page.Title, data, &notice{Kind: "success", Message: msg})
	}
}

func (s *Server) handleFlowAPI(flow string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		_, out, err := s.runFlow(r.Context(), flow, req.Query)
		if err != nil {
			status, msg := flowStatus(err)
			if status == http.StatusBadGateway {
				// Provider errors can carry SDK detail; it stays in the log.
				log.Warn().Err(err).Str("flow", flow).Msg("flow api failed")
				writeError(w, status, msg)
				return
			}
			writeError(w, status, err.Error())
			return
		}
		s.recordActivity(r.Context(), auth.FromContext(r.Context()), "search", flow+": "+req.Query)
		writeJSON(w, http.StatusOK, out)
	}
}
