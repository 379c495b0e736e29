package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plateful/recipe-feed/internal/draft"
	"github.com/plateful/recipe-feed/internal/models"
)

func fixedReconciler(store *Store) *Reconciler {
	return &Reconciler{
		store: store,
		now:   func() time.Time { return time.Unix(1700000000, 0) },
	}
}

func cachedRecipe() *models.Recipe {
	return &models.Recipe{
		ID:              42,
		UserID:          7,
		Title:           "Pancakes",
		PhotoURL:        "https://cdn.example.com/recipes/7/42.jpg",
		Type:            models.CategoryBreakfast,
		PreparationTime: 20,
	}
}

func TestReconcileEditPatchesDetailAndList(t *testing.T) {
	store := New()
	store.Put(RecipeKey(42), &models.Recipe{ID: 42, Title: "Old title"})
	store.Put(PersonalRecipesKey(7), &RecipeList{
		Total: 3,
		Pages: []Page{
			{Offset: 0, Items: []models.RecipeSummary{
				{ID: 41, Title: "Other"},
				{ID: 42, Title: "Old title", TotalCalories: 100},
			}},
			{Offset: 2, Items: []models.RecipeSummary{
				{ID: 43, Title: "Untouched"},
			}},
		},
	})
	store.Put(RecipesPerUserKey(7), 3)

	rec := cachedRecipe()
	totals := draft.Totals{TotalCalories: 350}
	fixedReconciler(store).Reconcile(7, rec, totals, false)

	v, ok := store.Get(RecipeKey(42))
	require.True(t, ok)
	detail := v.(*models.Recipe)
	assert.Equal(t, "Pancakes", detail.Title)

	v, ok = store.Get(PersonalRecipesKey(7))
	require.True(t, ok)
	list := v.(*RecipeList)
	require.Len(t, list.Pages, 2)

	patched := list.Pages[0].Items[1]
	assert.Equal(t, "Pancakes", patched.Title)
	assert.Equal(t, 350, patched.TotalCalories)
	// detail and list carry the same busted photo URL
	assert.Equal(t, detail.PhotoURL, patched.PhotoURL)
	// entries and pages not containing the recipe are untouched
	assert.Equal(t, "Other", list.Pages[0].Items[0].Title)
	assert.Equal(t, "Untouched", list.Pages[1].Items[0].Title)

	// the count-sensitive view always refetches
	_, ok = store.Get(RecipesPerUserKey(7))
	assert.False(t, ok)
}

func TestReconcileCreateInvalidatesListsAndCachesDetail(t *testing.T) {
	store := New()
	store.Put(PersonalRecipesKey(7), &RecipeList{Total: 3})
	store.Put(RecipesPerUserKey(7), 3)

	fixedReconciler(store).Reconcile(7, cachedRecipe(), draft.Totals{TotalCalories: 350}, true)

	// a created recipe cannot be hand-patched into pages
	_, ok := store.Get(PersonalRecipesKey(7))
	assert.False(t, ok)
	_, ok = store.Get(RecipesPerUserKey(7))
	assert.False(t, ok)

	v, ok := store.Get(RecipeKey(42))
	require.True(t, ok)
	assert.Equal(t, "Pancakes", v.(*models.Recipe).Title)
}

func TestReconcileSkipsUnfetchedViews(t *testing.T) {
	store := New()

	fixedReconciler(store).Reconcile(7, cachedRecipe(), draft.Totals{}, false)

	// nothing fetched means nothing to patch; edits never seed the
	// detail cache out of thin air
	_, ok := store.Get(PersonalRecipesKey(7))
	assert.False(t, ok)
	_, ok = store.Get(RecipeKey(42))
	assert.False(t, ok)
}

func TestBustPhotoURL(t *testing.T) {
	at := time.Unix(1700000000, 0)

	assert.Equal(t, "", bustPhotoURL("", at))
	assert.Equal(t, "https://cdn.example.com/a.jpg?v=1700000000",
		bustPhotoURL("https://cdn.example.com/a.jpg", at))
	assert.Equal(t, "https://cdn.example.com/a.jpg?x=1&v=1700000000",
		bustPhotoURL("https://cdn.example.com/a.jpg?x=1", at))
}

func TestApplyBatchSkipsMissingKeys(t *testing.T) {
	store := New()
	store.Put("present", 1)

	applied := 0
	store.ApplyBatch([]Patch{
		{Key: "present", Apply: func(v any) any { applied++; return v.(int) + 1 }},
		{Key: "absent", Apply: func(v any) any { applied++; return v }},
	}, []string{"present-too"})

	assert.Equal(t, 1, applied)
	v, ok := store.Get("present")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}
