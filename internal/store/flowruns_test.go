package store

import (
	"context"
	"strings"
	"testing"
)

func TestFlowRuns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	runs := []*FlowRun{
		{Flow: "internetSearch", Query: "exam dates", Status: "ok", Output: `{"answer":"June"}`, ActorEmail: "a@uni.edu", DurationMs: 12},
		{Flow: "taskSearch", Query: "typing", Status: "provider_error", Error: "boom", ActorEmail: "va@uni.edu"},
		{Flow: "internetSearch", Query: "library hours", Status: "ok", Output: `{"answer":"9-5"}`},
	}
	for _, r := range runs {
		if err := db.AddFlowRun(ctx, r); err != nil {
			t.Fatalf("AddFlowRun: %v", err)
		}
	}

	all, err := db.RecentFlowRuns(ctx, FlowRunFilter{})
	if err != nil {
		t.Fatalf("RecentFlowRuns: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("RecentFlowRuns = %d, want 3", len(all))
	}

	internet, err := db.RecentFlowRuns(ctx, FlowRunFilter{Flow: "internetSearch"})
	if err != nil {
		t.Fatalf("RecentFlowRuns flow: %v", err)
	}
	if len(internet) != 2 || internet[0].Query != "library hours" {
		t.Errorf("RecentFlowRuns(internetSearch) = %+v", internet)
	}
	if internet[0].ActorEmail != "" {
		t.Errorf("anonymous run ActorEmail = %q", internet[0].ActorEmail)
	}

	mine, err := db.RecentFlowRuns(ctx, FlowRunFilter{ActorEmail: "va@uni.edu", Limit: 5})
	if err != nil {
		t.Fatalf("RecentFlowRuns actor: %v", err)
	}
	if len(mine) != 1 || mine[0].Error != "boom" || mine[0].Output != "" {
		t.Errorf("RecentFlowRuns(va) = %+v", mine)
	}
}

func TestFlowRunOutputTruncated(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	r := &FlowRun{Flow: "taskSearch", Query: "q", Status: "ok", Output: strings.Repeat("y", MaxFlowOutput*2)}
	if err := db.AddFlowRun(ctx, r); err != nil {
		t.Fatalf("AddFlowRun: %v", err)
	}
	got, err := db.RecentFlowRuns(ctx, FlowRunFilter{Limit: 1})
	if err != nil {
		t.Fatalf("RecentFlowRuns: %v", err)
	}
	if len(got[0].Output) != MaxFlowOutput {
		t.Errorf("output = %d bytes, want %d", len(got[0].Output), MaxFlowOutput)
	}
}
