package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/sfaret/stipslite/internal/flows"
	"github.com/sfaret/stipslite/internal/store"
)

func TestFlowAPI(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		model    bool
		path     string
		body     string
		wantCode int
		wantBody string
	}{
		{"internet ok", `{"answer":"Exams start on 2 June."}`, true, "/api/flows/internet-search", `{"query":"when are exams?"}`, 200, `"answer":"Exams start on 2 June."`},
		{"print ok", "```json\n{\"results\":[\"Legon Copy Hub\"]}\n```", true, "/api/flows/print-location-search", `{"query":"legon"}`, 200, `"results":["Legon Copy Hub"]`},
		{"tasks empty", `{"results":[]}`, true, "/api/flows/task-search", `{"query":"typing"}`, 200, `"results":[]`},
		{"empty query", `{"answer":"x"}`, true, "/api/flows/internet-search", `{"query":"   "}`, 400, "invalid flow input"},
		{"bad json", `{"answer":"x"}`, true, "/api/flows/internet-search", `{`, 400, "invalid json"},
		{"schema violation", `{"answer":42}`, true, "/api/flows/internet-search", `{"query":"q"}`, 502, "could not read"},
		{"no model", "", false, "/api/flows/task-search", `{"query":"typing"}`, 503, "no model configured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var env *testEnv
			if tt.model {
				env = newEnv(t, withModel(tt.content))
			} else {
				env = newEnv(t)
			}
			w := env.postJSON(t, tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tt.wantCode, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %s", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestFlowAPIHidesProviderError(t *testing.T) {
	env := newEnv(t, withModel(""))
	env.mock.Response = nil
	env.mock.Err = errors.New("POST https://models.example/v1: 401 key sk-live-123 revoked")

	w := env.postJSON(t, "/api/flows/internet-search", `{"query":"q"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
	body := w.Body.String()
	if strings.Contains(body, "sk-live-123") || strings.Contains(body, "models.example") {
		t.Errorf("provider detail leaked: %s", body)
	}
	if !strings.Contains(body, "unavailable") {
		t.Errorf("body = %s, want generic unavailable message", body)
	}
}

func TestFlowAPIRecordsRun(t *testing.T) {
	env := newEnv(t, withModel(`{"results":["Type lecture notes"]}`))
	_, session := env.student(t, "kofi@uni.edu")

	w := env.postJSON(t, "/api/flows/task-search", `{"query":"typing"}`, session)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	runs, err := env.db.RecentFlowRuns(t.Context(), store.FlowRunFilter{ActorEmail: "kofi@uni.edu"})
	if err != nil {
		t.Fatalf("RecentFlowRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Flow != flows.TaskSearch || runs[0].Status != "ok" {
		t.Fatalf("runs = %+v", runs)
	}
	var out flows.SearchOutput
	if err := json.Unmarshal([]byte(runs[0].Output), &out); err != nil || len(out.Results) != 1 {
		t.Errorf("stored output = %q", runs[0].Output)
	}
}

func TestSearchFormRendersMarkdown(t *testing.T) {
	env := newEnv(t, withModel(`{"answer":"Exams start **2 June**. <script>alert(1)</script>"}`))

	w := env.postForm(t, "/search/internet", url.Values{"query": {"when are exams?"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<strong>2 June</strong>") {
		t.Error("markdown not rendered")
	}
	if strings.Contains(body, "<script>alert(1)</script>") {
		t.Error("raw HTML from the model was not escaped")
	}
	if !strings.Contains(body, "Search complete.") {
		t.Error("success notice missing")
	}
	if !strings.Contains(env.mock.LastPrompt(), "when are exams?") {
		t.Error("query not forwarded to the model")
	}
}

func TestSearchFormResults(t *testing.T) {
	env := newEnv(t, withModel(`{"results":["Osu Express Print, Oxford Street"]}`))
	_, session := env.student(t, "kofi@uni.edu")

	w := env.postForm(t, "/search/print-locations", url.Values{"query": {"colour printing in osu"}}, session)
	body := w.Body.String()
	if !strings.Contains(body, "<li>Osu Express Print, Oxford Street</li>") {
		t.Error("results not listed")
	}
	if !strings.Contains(body, "Your recent searches") {
		t.Error("recent searches not shown for a signed-in user")
	}

	w = env.get(t, "/student", session)
	if !strings.Contains(w.Body.String(), "colour printing in osu") {
		t.Error("student dashboard does not list the search")
	}
}

func TestSearchFormErrors(t *testing.T) {
	env := newEnv(t)

	w := env.get(t, "/search/tasks")
	if !strings.Contains(w.Body.String(), "AI search is not configured") {
		t.Error("search page does not report the missing model")
	}

	w = env.postForm(t, "/search/tasks", url.Values{"query": {"typing"}})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}

	env = newEnv(t, withModel(`not json at all`))
	w = env.postForm(t, "/search/tasks", url.Values{"query": {"typing"}})
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
	if !strings.Contains(w.Body.String(), "toast-error") {
		t.Error("error notice missing")
	}
}
