package summary

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/capitalize-ai/conversation-engine/internal/model"
)

// Store persists conversation summaries keyed by thread identifier. One
// summary per thread; Save overwrites any prior summary.
type Store interface {
	Save(summary model.ConversationSummary) error
	Load(threadID string) (*model.ConversationSummary, error)
	List() ([]model.ConversationSummary, error)
	Search(query string) ([]model.ConversationSummary, error)
	Delete(threadID string) (bool, error)
}

// FileStore keeps one JSON document per thread in a directory. Writes go
// through a temp file and rename so a crash never leaves a partial record.
type FileStore struct {
	dir string
}

// NewFileStore creates the storage directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create summary directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(threadID string) string {
	return filepath.Join(s.dir, threadID+".json")
}

// Save writes the summary, replacing any existing one for the thread.
func (s *FileStore) Save(summary model.ConversationSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".summary-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write summary: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close summary file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(summary.ThreadID)); err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}
	return nil
}

// Load retrieves the summary for a thread, or nil if none exists.
func (s *FileStore) Load(threadID string) (*model.ConversationSummary, error) {
	data, err := os.ReadFile(s.path(threadID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}

	var summary model.ConversationSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}
	return &summary, nil
}

// List returns all summaries, newest first.
func (s *FileStore) List() ([]model.ConversationSummary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}

	var summaries []model.ConversationSummary
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		summary, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil || summary == nil {
			continue
		}
		summaries = append(summaries, *summary)
	}

	sortByCreatedAtDesc(summaries)
	return summaries, nil
}

// Search returns summaries matching the query case-insensitively against
// title, summary text, main topics or tags.
func (s *FileStore) Search(query string) ([]model.ConversationSummary, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	return filterSummaries(all, query), nil
}

// Delete removes the summary for a thread. The bool reports whether a
// summary existed.
func (s *FileStore) Delete(threadID string) (bool, error) {
	err := os.Remove(s.path(threadID))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete summary: %w", err)
	}
	return true, nil
}

// MemoryStore is an in-process Store used in tests.
type MemoryStore struct {
	mu        sync.RWMutex
	summaries map[string]model.ConversationSummary
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{summaries: make(map[string]model.ConversationSummary)}
}

// Save stores the summary, replacing any existing one for the thread.
func (s *MemoryStore) Save(summary model.ConversationSummary) error {
	s.mu.Lock()
	s.summaries[summary.ThreadID] = summary
	s.mu.Unlock()
	return nil
}

// Load retrieves the summary for a thread, or nil if none exists.
func (s *MemoryStore) Load(threadID string) (*model.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, exists := s.summaries[threadID]
	if !exists {
		return nil, nil
	}
	return &summary, nil
}

// List returns all summaries, newest first.
func (s *MemoryStore) List() ([]model.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]model.ConversationSummary, 0, len(s.summaries))
	for _, summary := range s.summaries {
		summaries = append(summaries, summary)
	}
	sortByCreatedAtDesc(summaries)
	return summaries, nil
}

// Search returns summaries matching the query.
func (s *MemoryStore) Search(query string) ([]model.ConversationSummary, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	return filterSummaries(all, query), nil
}

// Delete removes the summary for a thread.
func (s *MemoryStore) Delete(threadID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.summaries[threadID]
	delete(s.summaries, threadID)
	return exists, nil
}

func sortByCreatedAtDesc(summaries []model.ConversationSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
}

func filterSummaries(all []model.ConversationSummary, query string) []model.ConversationSummary {
	query = strings.ToLower(query)

	results := make([]model.ConversationSummary, 0)
	for _, summary := range all {
		if matchesSummary(summary, query) {
			results = append(results, summary)
		}
	}
	return results
}

func matchesSummary(summary model.ConversationSummary, query string) bool {
	if strings.Contains(strings.ToLower(summary.Title), query) {
		return true
	}
	if strings.Contains(strings.ToLower(summary.SummaryText), query) {
		return true
	}
	for _, topic := range summary.MainTopics {
		if strings.Contains(strings.ToLower(topic), query) {
			return true
		}
	}
	for _, tag := range summary.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}
