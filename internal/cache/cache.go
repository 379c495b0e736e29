package cache

import (
	"fmt"
	"sync"

	"github.com/plateful/recipe-feed/internal/models"
)

// Store is the keyed read-cache holding previously-fetched views:
// recipe details, paginated personal recipe lists, and per-user recipe
// counts. Entries are opaque to the store itself; reconciliation works
// through declarative Patch batches so that a single submission's
// updates are never observable half-applied.
type Store struct {
	mu      sync.RWMutex
	entries map[string]any
}

// New creates an empty cache store
func New() *Store {
	return &Store{entries: make(map[string]any)}
}

// Patch is one declarative cache update: the key it targets and the
// transform to apply to the cached value. Apply receives the current
// value and returns the replacement; it is skipped when the key is not
// cached (nothing fetched means nothing to patch).
type Patch struct {
	Key   string
	Apply func(v any) any
}

// Get returns the cached value for key
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok
}

// Put stores a freshly fetched value
func (s *Store) Put(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = v
}

// Invalidate drops a key so the next reader refetches
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// ApplyBatch applies all patches and invalidations of one
// reconciliation inside a single critical section. A reader either
// sees none of the batch or all of it.
func (s *Store) ApplyBatch(patches []Patch, invalidations []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range patches {
		if current, ok := s.entries[p.Key]; ok {
			s.entries[p.Key] = p.Apply(current)
		}
	}
	for _, key := range invalidations {
		delete(s.entries, key)
	}
}

// RecipeKey addresses the single-recipe detail cache
func RecipeKey(recipeID int) string {
	return fmt.Sprintf("recipe:%d", recipeID)
}

// PersonalRecipesKey addresses a user's paginated recipe-list cache
func PersonalRecipesKey(userID int) string {
	return fmt.Sprintf("all-personal-recipes:%d", userID)
}

// RecipesPerUserKey addresses the count-sensitive per-user view
func RecipesPerUserKey(userID int) string {
	return fmt.Sprintf("recipes-per-user:%d", userID)
}

// Page is one fetched page of a paginated recipe list
type Page struct {
	Offset int                    `json:"offset"`
	Items  []models.RecipeSummary `json:"items"`
}

// RecipeList is the cached shape behind PersonalRecipesKey: every page
// fetched so far plus the server-reported total
type RecipeList struct {
	Pages []Page `json:"pages"`
	Total int    `json:"total"`
}
