package tracker

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"RFC3339", "2025-03-01T10:00:00Z", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"RFC3339Offset", "2025-03-01T10:00:00+02:00", time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("", 2*3600))},
		{"JiraLayout", "2025-03-01T10:00:00.000+0200", time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("", 2*3600))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.input)
			if err != nil {
				t.Fatalf("ParseTime(%q) error = %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTime(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	if _, err := ParseTime("yesterday"); err == nil {
		t.Error("ParseTime accepted garbage input")
	}
}

func TestMapIssueSortsTransitions(t *testing.T) {
	payload := IssuePayload{
		ID:     "PROJ-7",
		Cohort: "platform",
		Transitions: []TransitionPayload{
			{Status: "Done", Timestamp: "2025-03-10T09:00:00Z"},
			{Status: "In Progress", Timestamp: "2025-03-02T09:00:00Z"},
			{Status: "Open", Timestamp: "2025-03-01T09:00:00Z"},
		},
	}

	rec, ok := MapIssue(payload, nil)
	if !ok {
		t.Fatal("MapIssue() rejected a valid payload")
	}
	if len(rec.Transitions) != 3 {
		t.Fatalf("MapIssue() kept %d transitions, want 3", len(rec.Transitions))
	}
	for i := 1; i < len(rec.Transitions); i++ {
		if rec.Transitions[i].At.Before(rec.Transitions[i-1].At) {
			t.Errorf("transitions not chronological at %d: %v", i, rec.Transitions)
		}
	}
	if rec.Transitions[0].Status != "Open" || rec.Transitions[2].Status != "Done" {
		t.Errorf("unexpected transition order: %+v", rec.Transitions)
	}
}

func TestMapIssuesCountsDrops(t *testing.T) {
	payloads := []IssuePayload{
		{
			ID: "GOOD-1",
			Transitions: []TransitionPayload{
				{Status: "In Progress", Timestamp: "2025-03-02T09:00:00Z"},
				{Status: "Done", Timestamp: "not-a-date"},
				{Status: "", Timestamp: "2025-03-03T09:00:00Z"},
			},
			Resolved: "2025-03-04T09:00:00Z",
			Links: []LinkPayload{
				{SourceID: "GOOD-1", TargetID: "GOOD-2", Type: "BLOCKS"},
				{SourceID: "GOOD-1", TargetID: "", Type: "BLOCKS"},
				{SourceID: "GOOD-1", TargetID: "GOOD-3", Type: "MENTIONS"},
			},
		},
		{ID: ""},
	}

	records, stats := MapIssues(payloads)
	if len(records) != 1 {
		t.Fatalf("MapIssues() kept %d records, want 1", len(records))
	}

	rec := records[0]
	if len(rec.Transitions) != 1 {
		t.Errorf("kept %d transitions, want 1", len(rec.Transitions))
	}
	if rec.Resolved == nil {
		t.Error("resolved timestamp was dropped")
	}
	if len(rec.Links) != 1 {
		t.Errorf("kept %d links, want 1", len(rec.Links))
	}

	if stats.IssuesSeen != 2 || stats.IssuesMapped != 1 || stats.IssuesDropped != 1 {
		t.Errorf("issue counters = %+v", stats)
	}
	if stats.TransitionsDropped != 2 {
		t.Errorf("TransitionsDropped = %d, want 2", stats.TransitionsDropped)
	}
	if stats.LinksSeen != 3 || stats.LinksMapped != 1 || stats.LinksDropped != 2 {
		t.Errorf("link counters = %+v", stats)
	}
}

func TestMapLinksStandalone(t *testing.T) {
	links, stats := MapLinks([]LinkPayload{
		{SourceID: "A", TargetID: "B", Type: "BLOCKED_BY"},
		{SourceID: "A", TargetID: "B", Type: ""},
	})
	if len(links) != 1 {
		t.Fatalf("MapLinks() kept %d links, want 1", len(links))
	}
	if links[0].Type != LinkBlockedBy {
		t.Errorf("link type = %q, want %q", links[0].Type, LinkBlockedBy)
	}
	if stats.LinksDropped != 1 {
		t.Errorf("LinksDropped = %d, want 1", stats.LinksDropped)
	}
}
