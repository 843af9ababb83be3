package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"flowcast-mcp/internal/tracker"
)

// Store provides thread-safe storage for named snapshots of tracker
// data. It is the optional cache in front of the analysis core: callers
// load a snapshot once and run any number of analyses against it.
type Store struct {
	mu   sync.RWMutex
	sets map[string]*dataset
}

type dataset struct {
	issues   []tracker.IssueRecord
	links    []tracker.LinkRecord
	loadedAt time.Time
}

// Dataset is a point-in-time copy of one snapshot's contents.
type Dataset struct {
	Issues   []tracker.IssueRecord `json:"issues"`
	Links    []tracker.LinkRecord  `json:"links"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// Info describes a stored snapshot without copying its contents.
type Info struct {
	ID       string    `json:"id"`
	Issues   int       `json:"issues"`
	Links    int       `json:"links"`
	LoadedAt time.Time `json:"loaded_at"`
}

// MergeStats counts what a Merge call changed.
type MergeStats struct {
	IssuesAdded   int `json:"issues_added"`
	IssuesSkipped int `json:"issues_skipped"`
	LinksAdded    int `json:"links_added"`
	LinksSkipped  int `json:"links_skipped"`
}

func NewStore() *Store {
	return &Store{sets: make(map[string]*dataset)}
}

// Put replaces the snapshot's contents.
func (s *Store) Put(id string, issues []tracker.IssueRecord, links []tracker.LinkRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sets[id] = &dataset{
		issues:   slices.Clone(issues),
		links:    slices.Clone(links),
		loadedAt: time.Now().UTC(),
	}
}

// Merge appends to the snapshot, skipping issues whose ID is already
// present and links already seen with the same source, target and type.
func (s *Store) Merge(id string, issues []tracker.IssueRecord, links []tracker.LinkRecord) MergeStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.sets[id]
	if !ok {
		set = &dataset{}
		s.sets[id] = set
	}

	seenIssues := make(map[string]bool, len(set.issues))
	for _, issue := range set.issues {
		seenIssues[issue.ID] = true
	}
	seenLinks := make(map[string]bool, len(set.links))
	for _, l := range set.links {
		seenLinks[linkIdentity(l)] = true
	}

	var stats MergeStats
	for _, issue := range issues {
		if seenIssues[issue.ID] {
			stats.IssuesSkipped++
			continue
		}
		seenIssues[issue.ID] = true
		set.issues = append(set.issues, issue)
		stats.IssuesAdded++
	}
	for _, l := range links {
		if seenLinks[linkIdentity(l)] {
			stats.LinksSkipped++
			continue
		}
		seenLinks[linkIdentity(l)] = true
		set.links = append(set.links, l)
		stats.LinksAdded++
	}

	set.loadedAt = time.Now().UTC()
	return stats
}

// Get returns a copy of the snapshot's contents.
func (s *Store) Get(id string) (Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sets[id]
	if !ok {
		return Dataset{}, false
	}
	return Dataset{
		Issues:   slices.Clone(set.issues),
		Links:    slices.Clone(set.links),
		LoadedAt: set.loadedAt,
	}, true
}

// Clear drops the snapshot and reports whether it existed.
func (s *Store) Clear(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sets[id]
	delete(s.sets, id)
	return ok
}

// Count returns how many issues and links the snapshot holds.
func (s *Store) Count(id string) (issues, links int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set, ok := s.sets[id]
	if !ok {
		return 0, 0
	}
	return len(set.issues), len(set.links)
}

// Infos lists all stored snapshots sorted by id.
func (s *Store) Infos() []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]Info, 0, len(s.sets))
	for id, set := range s.sets {
		infos = append(infos, Info{
			ID:       id,
			Issues:   len(set.issues),
			Links:    len(set.links),
			LoadedAt: set.loadedAt,
		})
	}
	slices.SortFunc(infos, func(a, b Info) int {
		return strings.Compare(a.ID, b.ID)
	})
	return infos
}

// IDs lists the stored snapshot ids, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sets))
	for id := range s.sets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Save persists the snapshot to two JSONL files in dir, one line per
// record, written to a temp file and renamed into place.
func (s *Store) Save(dir, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	s.mu.RLock()
	set, ok := s.sets[id]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	if err := writeJSONL(issuesPath(dir, id), set.issues); err != nil {
		return err
	}
	if err := writeJSONL(linksPath(dir, id), set.links); err != nil {
		return err
	}

	log.Info().Str("snapshot", id).Int("issues", len(set.issues)).Int("links", len(set.links)).Msg("Snapshot saved to cache")
	return nil
}

// Load restores the snapshot from dir, replacing any in-memory
// contents. A missing cache is not an error. Invalid lines are skipped
// with a warning.
func (s *Store) Load(dir, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	issues, err := readJSONL[tracker.IssueRecord](issuesPath(dir, id), id)
	if err != nil {
		return err
	}
	links, err := readJSONL[tracker.LinkRecord](linksPath(dir, id), id)
	if err != nil {
		return err
	}
	if issues == nil && links == nil {
		return nil
	}

	s.Put(id, issues, links)
	log.Info().Str("snapshot", id).Int("issues", len(issues)).Int("links", len(links)).Msg("Snapshot loaded from cache")
	return nil
}

// LoadAll restores every snapshot cached in dir, loading them in
// parallel. Returns the ids restored, sorted.
func (s *Store) LoadAll(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.issues.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan cache dir: %w", err)
	}

	var g errgroup.Group
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := strings.TrimSuffix(filepath.Base(m), ".issues.jsonl")
		ids = append(ids, id)
		g.Go(func() error {
			return s.Load(dir, id)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.Sort(ids)
	return ids, nil
}

func issuesPath(dir, id string) string {
	return filepath.Join(dir, id+".issues.jsonl")
}

func linksPath(dir, id string) string {
	return filepath.Join(dir, id+".links.jsonl")
}

// validateID keeps snapshot ids usable as file names.
func validateID(id string) error {
	if id == "" || id != filepath.Base(id) || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("invalid snapshot id %q", id)
	}
	return nil
}

func writeJSONL[T any](path string, records []T) error {
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

func readJSONL[T any](path, id string) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	defer file.Close()

	var records []T
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var r T
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			log.Warn().Err(err).Str("snapshot", id).Msg("Skipping invalid JSON line in cache")
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading cache: %w", err)
	}
	return records, nil
}

func linkIdentity(l tracker.LinkRecord) string {
	return fmt.Sprintf("%s|%s|%s", l.SourceID, l.TargetID, l.Type)
}
