package tracker

import (
	"slices"
	"time"
)

// jiraTimeLayout matches the changelog timestamps Jira emits. Payloads
// exported from other trackers usually carry RFC3339 instead.
const jiraTimeLayout = "2006-01-02T15:04:05.000-0700"

// TransitionPayload is one lifecycle change in a snapshot upload.
type TransitionPayload struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// LinkPayload is one issue link in a snapshot upload.
type LinkPayload struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Type     string `json:"type"`
}

// IssuePayload is the wire form of a single issue in a snapshot upload.
type IssuePayload struct {
	ID          string              `json:"id"`
	Cohort      string              `json:"cohort"`
	Transitions []TransitionPayload `json:"transitions"`
	Resolved    string              `json:"resolved,omitempty"`
	Links       []LinkPayload       `json:"links,omitempty"`
}

// MapStats counts what was dropped while decoding a payload. Malformed
// entries are skipped, never fatal.
type MapStats struct {
	IssuesSeen         int `json:"issues_seen"`
	IssuesMapped       int `json:"issues_mapped"`
	IssuesDropped      int `json:"issues_dropped"`
	TransitionsDropped int `json:"transitions_dropped"`
	LinksSeen          int `json:"links_seen"`
	LinksMapped        int `json:"links_mapped"`
	LinksDropped       int `json:"links_dropped"`
}

// ParseTime parses a payload timestamp, accepting RFC3339 first and the
// Jira changelog layout as a fallback.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(jiraTimeLayout, s)
}

// MapIssue converts one payload entry into an IssueRecord. Transitions
// with unparseable timestamps or empty statuses are dropped and counted;
// the record itself is rejected only when it has no usable identity.
func MapIssue(p IssuePayload, stats *MapStats) (IssueRecord, bool) {
	if stats != nil {
		stats.IssuesSeen++
	}
	if p.ID == "" {
		if stats != nil {
			stats.IssuesDropped++
		}
		return IssueRecord{}, false
	}

	rec := IssueRecord{ID: p.ID, Cohort: p.Cohort}

	for _, tp := range p.Transitions {
		if tp.Status == "" {
			if stats != nil {
				stats.TransitionsDropped++
			}
			continue
		}
		at, err := ParseTime(tp.Timestamp)
		if err != nil {
			if stats != nil {
				stats.TransitionsDropped++
			}
			continue
		}
		rec.Transitions = append(rec.Transitions, Transition{Status: tp.Status, At: at})
	}

	// Trackers frequently return history newest-first; analysis expects
	// chronological order.
	slices.SortFunc(rec.Transitions, func(a, b Transition) int {
		return a.At.Compare(b.At)
	})

	if p.Resolved != "" {
		if t, err := ParseTime(p.Resolved); err == nil {
			rec.Resolved = &t
		}
	}

	for _, lp := range p.Links {
		link, ok := MapLink(lp, stats)
		if !ok {
			continue
		}
		rec.Links = append(rec.Links, link)
	}

	if stats != nil {
		stats.IssuesMapped++
	}
	return rec, true
}

// MapLink converts one link payload, dropping entries with missing
// endpoints or unknown types.
func MapLink(p LinkPayload, stats *MapStats) (LinkRecord, bool) {
	if stats != nil {
		stats.LinksSeen++
	}
	link := LinkRecord{SourceID: p.SourceID, TargetID: p.TargetID, Type: LinkType(p.Type)}
	if err := link.Validate(); err != nil {
		if stats != nil {
			stats.LinksDropped++
		}
		return LinkRecord{}, false
	}
	if stats != nil {
		stats.LinksMapped++
	}
	return link, true
}

// MapIssues converts a whole upload, returning the surviving records and
// the drop counters.
func MapIssues(payloads []IssuePayload) ([]IssueRecord, MapStats) {
	var stats MapStats
	records := make([]IssueRecord, 0, len(payloads))
	for _, p := range payloads {
		rec, ok := MapIssue(p, &stats)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, stats
}

// MapLinks converts standalone link payloads (links supplied separately
// from their issues).
func MapLinks(payloads []LinkPayload) ([]LinkRecord, MapStats) {
	var stats MapStats
	links := make([]LinkRecord, 0, len(payloads))
	for _, p := range payloads {
		link, ok := MapLink(p, &stats)
		if !ok {
			continue
		}
		links = append(links, link)
	}
	return links, stats
}
