package safety

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/harrison/orchestrator/internal/models"
)

// AncestryStore holds the chain of AncestryEntry records per sub-task,
// inserted on admission success and removed on sub-task terminalization or
// worker reset.
type AncestryStore struct {
	mu      sync.Mutex
	byID    map[string]models.AncestryEntry
	byOwner map[string][]string // workerID -> subTaskIDs, for Reset
}

// NewAncestryStore returns an empty store.
func NewAncestryStore() *AncestryStore {
	return &AncestryStore{
		byID:    make(map[string]models.AncestryEntry),
		byOwner: make(map[string][]string),
	}
}

// Insert records entry, indexed by both sub-task id and worker id.
func (s *AncestryStore) Insert(entry models.AncestryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[entry.SubTaskID] = entry
	s.byOwner[entry.WorkerID] = append(s.byOwner[entry.WorkerID], entry.SubTaskID)
}

// Remove drops the entry for subTaskID (called on terminalization).
func (s *AncestryStore) Remove(subTaskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, subTaskID)
}

// Reset drops every entry belonging to workerID.
func (s *AncestryStore) Reset(workerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.byOwner[workerID] {
		delete(s.byID, id)
	}
	delete(s.byOwner, workerID)
}

// chain walks from parentSubTaskID up to the root, returning entries in
// child-to-root order.
func (s *AncestryStore) chain(parentSubTaskID string) []models.AncestryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.AncestryEntry
	cur := parentSubTaskID
	seen := make(map[string]bool)
	for cur != "" && !seen[cur] {
		seen[cur] = true
		entry, ok := s.byID[cur]
		if !ok {
			break
		}
		out = append(out, entry)
		cur = entry.ParentSubTaskID
	}
	return out
}

// PromptHash computes SHA-256 of the normalized prompt, per spec.md §4.4.
func PromptHash(prompt string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(prompt)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// HasCycle reports whether (agentType, promptHash) already appears in the
// ancestry chain rooted at parentSubTaskID.
func (s *AncestryStore) HasCycle(parentSubTaskID, agentType, promptHash string) bool {
	for _, entry := range s.chain(parentSubTaskID) {
		if entry.AgentType == agentType && entry.PromptHash == promptHash {
			return true
		}
	}
	return false
}
