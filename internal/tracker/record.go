package tracker

import (
	"fmt"
	"time"
)

// LinkType classifies an issue-to-issue relationship.
type LinkType string

const (
	// LinkBlocks means the source issue must complete before the target.
	LinkBlocks LinkType = "BLOCKS"
	// LinkBlockedBy is the inverse view of LinkBlocks.
	LinkBlockedBy LinkType = "BLOCKED_BY"
	// LinkRelates is an informational association with no ordering meaning.
	LinkRelates LinkType = "RELATES"
)

// IsValid reports whether t is one of the known link types.
func (t LinkType) IsValid() bool {
	switch t {
	case LinkBlocks, LinkBlockedBy, LinkRelates:
		return true
	}
	return false
}

// Transition is a single lifecycle state change of an issue.
type Transition struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// LinkRecord is a directed relationship between two issues as reported
// by the tracker, before any normalization.
type LinkRecord struct {
	SourceID string   `json:"source_id"`
	TargetID string   `json:"target_id"`
	Type     LinkType `json:"type"`
}

// IssueRecord is the immutable view of one issue as supplied by the
// caller. The analysis packages read it and never mutate it.
type IssueRecord struct {
	ID          string       `json:"id"`
	Cohort      string       `json:"cohort"`
	Transitions []Transition `json:"transitions"`
	Resolved    *time.Time   `json:"resolved,omitempty"`
	Links       []LinkRecord `json:"links,omitempty"`
}

// Validate rejects partial records at the boundary. Analysis code
// assumes records passed this check.
func (r IssueRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("issue record missing id")
	}
	for i, t := range r.Transitions {
		if t.Status == "" {
			return fmt.Errorf("issue %s: transition %d has empty status", r.ID, i)
		}
		if t.At.IsZero() {
			return fmt.Errorf("issue %s: transition %d has zero timestamp", r.ID, i)
		}
	}
	for i, l := range r.Links {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("issue %s: link %d: %w", r.ID, i, err)
		}
	}
	return nil
}

// Validate rejects malformed links.
func (l LinkRecord) Validate() error {
	if l.SourceID == "" || l.TargetID == "" {
		return fmt.Errorf("link missing endpoint (source %q, target %q)", l.SourceID, l.TargetID)
	}
	if !l.Type.IsValid() {
		return fmt.Errorf("link %s->%s has unknown type %q", l.SourceID, l.TargetID, l.Type)
	}
	return nil
}

// FlattenLinks gathers the outgoing links of every issue into one slice,
// preserving issue order. Callers that track links separately can skip it.
func FlattenLinks(issues []IssueRecord) []LinkRecord {
	var links []LinkRecord
	for _, issue := range issues {
		links = append(links, issue.Links...)
	}
	return links
}
