package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/plateful/recipe-feed/internal/draft"
	"github.com/plateful/recipe-feed/internal/models"
)

// Reconciler patches the read caches after a successful create or edit
// so the views stay consistent without a full refetch. The detail cache
// and every fetched page of the personal list are hand-patched; the
// count-sensitive recipes-per-user view cannot be recomputed locally
// and falls back to invalidation.
type Reconciler struct {
	store *Store
	now   func() time.Time
}

// NewReconciler creates a reconciler over the given cache store
func NewReconciler(store *Store) *Reconciler {
	return &Reconciler{store: store, now: time.Now}
}

// Reconcile applies all cache updates for one successful submission as
// a single batch. The recipe is the server's canonical copy with the
// client-side macro snapshots correlated back on, and totals is the
// aggregation derived from the submitted draft; detail and list patches
// are built from the same values so they can never disagree.
func (r *Reconciler) Reconcile(userID int, rec *models.Recipe, totals draft.Totals, created bool) {
	photoURL := bustPhotoURL(rec.PhotoURL, r.now())

	detail := *rec
	detail.PhotoURL = photoURL

	summary := models.RecipeSummary{
		ID:              rec.ID,
		Title:           rec.Title,
		PhotoURL:        photoURL,
		Type:            rec.Type,
		PreparationTime: rec.PreparationTime,
		TotalCalories:   totals.TotalCalories,
	}

	invalidations := []string{RecipesPerUserKey(userID)}
	if created {
		// a new recipe changes page membership and totals; hand-patching
		// pages cannot add an entry safely, so the list view refetches
		r.store.ApplyBatch(nil, append(invalidations, PersonalRecipesKey(userID)))
		r.store.Put(RecipeKey(rec.ID), &detail)
		return
	}

	patches := []Patch{
		{
			Key: RecipeKey(rec.ID),
			Apply: func(any) any {
				d := detail
				return &d
			},
		},
		{
			Key: PersonalRecipesKey(userID),
			Apply: func(v any) any {
				list, ok := v.(*RecipeList)
				if !ok {
					return v
				}
				return patchList(list, summary)
			},
		},
	}
	r.store.ApplyBatch(patches, invalidations)
}

// patchList scans every fetched page and replaces the entry matching
// the edited recipe; pages that do not contain it are left untouched
func patchList(list *RecipeList, summary models.RecipeSummary) *RecipeList {
	out := &RecipeList{Total: list.Total, Pages: make([]Page, len(list.Pages))}
	copy(out.Pages, list.Pages)
	for pi, page := range out.Pages {
		for ii, item := range page.Items {
			if item.ID != summary.ID {
				continue
			}
			items := make([]models.RecipeSummary, len(page.Items))
			copy(items, page.Items)
			items[ii] = summary
			out.Pages[pi] = Page{Offset: page.Offset, Items: items}
		}
	}
	return out
}

// bustPhotoURL appends a timestamp query parameter so clients re-fetch
// the image when the blob changed behind an unchanged URL. An empty URL
// (no photo, or photo removed) stays empty.
func bustPhotoURL(url string, now time.Time) string {
	if url == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%sv=%d", url, sep, now.Unix())
}
