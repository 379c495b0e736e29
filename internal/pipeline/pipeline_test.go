package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plateful/recipe-feed/internal/draft"
	"github.com/plateful/recipe-feed/internal/models"
)

type stubRecipes struct {
	createCalls int
	updateCalls int
	photoCalls  int

	lastPayload *models.RecipePayload
	lastPhoto   string

	createErr error
	updateErr error
	photoErr  error
}

func (s *stubRecipes) CreateRecipe(_ context.Context, userID int, p *models.RecipePayload) (*models.Recipe, error) {
	s.createCalls++
	s.lastPayload = p
	if s.createErr != nil {
		return nil, s.createErr
	}
	return canonicalFrom(99, userID, p), nil
}

func (s *stubRecipes) UpdateRecipe(_ context.Context, userID int, p *models.RecipePayload) (*models.Recipe, error) {
	s.updateCalls++
	s.lastPayload = p
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return canonicalFrom(*p.ID, userID, p), nil
}

func (s *stubRecipes) SetRecipePhoto(_ context.Context, _ int, url string) error {
	s.photoCalls++
	s.lastPhoto = url
	return s.photoErr
}

// canonicalFrom builds the server copy: ids assigned, macro values not
// echoed back
func canonicalFrom(id, userID int, p *models.RecipePayload) *models.Recipe {
	rec := &models.Recipe{
		ID:              id,
		UserID:          userID,
		Title:           p.Title,
		Servings:        p.Servings,
		Type:            p.Type,
		PreparationTime: p.PreparationTime,
	}
	if p.PhotoURL != nil {
		rec.PhotoURL = *p.PhotoURL
	}
	for i, ing := range p.Ingredients {
		srvID := 500 + i
		if ing.ID != nil {
			srvID = *ing.ID
		}
		rec.Ingredients = append(rec.Ingredients, models.Ingredient{
			ID: srvID, RecipeID: id, FoodID: ing.FoodID, Title: ing.Title,
		})
	}
	for i, st := range p.Steps {
		rec.Steps = append(rec.Steps, models.Step{ID: 600 + i, RecipeID: id, Number: st.Number, Description: st.Description})
	}
	return rec
}

type stubPhotos struct {
	promoteCalls int
	deleteCalls  int
	promotedKey  string
	promoteErr   error
}

func (s *stubPhotos) Promote(_ context.Context, stagedKey string, userID, recipeID int) (string, error) {
	s.promoteCalls++
	s.promotedKey = stagedKey
	if s.promoteErr != nil {
		return "", s.promoteErr
	}
	return "https://cdn.example.com/recipes/1/99.jpg", nil
}

func (s *stubPhotos) Delete(_ context.Context, _, _ int) error {
	s.deleteCalls++
	return nil
}

type stubReconciler struct {
	calls   int
	rec     *models.Recipe
	totals  draft.Totals
	created bool
}

func (s *stubReconciler) Reconcile(_ int, rec *models.Recipe, totals draft.Totals, created bool) {
	s.calls++
	s.rec = rec
	s.totals = totals
	s.created = created
}

func seedDraft(t *testing.T, drafts *draft.Store, userID int) {
	t.Helper()
	drafts.Begin(userID)
	_, err := drafts.Update(userID, func(s draft.Session) (draft.Session, error) {
		s = s.SetInfo(draft.Info{Title: "Pancakes", Servings: 4, Type: models.CategoryBreakfast, PreparationTime: 20})
		s, err := s.AddIngredient(draft.Ingredient{FoodID: "food_flour", Title: "Flour", Calories: 200.4})
		if err != nil {
			return s, err
		}
		s, err = s.AddIngredient(draft.Ingredient{FoodID: "food_egg", Title: "Egg", Calories: 150.4})
		if err != nil {
			return s, err
		}
		return s.SetSteps([]draft.Step{{Description: "mix"}, {Description: "fry"}}), nil
	})
	require.NoError(t, err)
}

func TestSubmitEmptyDraftMakesNoNetworkCall(t *testing.T) {
	drafts := draft.NewStore()
	recipes := &stubRecipes{}
	p := New(drafts, recipes, nil, &stubReconciler{})

	_, err := p.Submit(context.Background(), 1)

	assert.ErrorIs(t, err, ErrEmptyDraft)
	assert.Zero(t, recipes.createCalls)
	assert.Zero(t, recipes.updateCalls)

	var serr *SubmitError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageValidating, serr.Stage)
}

func TestSubmitCreateFlow(t *testing.T) {
	drafts := draft.NewStore()
	recipes := &stubRecipes{}
	caches := &stubReconciler{}
	p := New(drafts, recipes, nil, caches)

	seedDraft(t, drafts, 1)
	rec, err := p.Submit(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, recipes.createCalls)
	assert.Zero(t, recipes.updateCalls)
	assert.Nil(t, recipes.lastPayload.ID)
	assert.Nil(t, recipes.lastPayload.PhotoURL)

	// server-assigned ids correlated onto the local snapshots
	require.Len(t, rec.Ingredients, 2)
	assert.Equal(t, 500, rec.Ingredients[0].ID)
	assert.Equal(t, 200.4, rec.Ingredients[0].Calories)

	require.Equal(t, 1, caches.calls)
	assert.True(t, caches.created)
	assert.Equal(t, 350, caches.totals.TotalCalories)

	// draft reset after success
	assert.False(t, drafts.Get(1).Submittable())
}

func TestSubmitEditSendsDeletionIDs(t *testing.T) {
	drafts := draft.NewStore()
	recipes := &stubRecipes{}
	caches := &stubReconciler{}
	p := New(drafts, recipes, nil, caches)

	drafts.BeginEdit(1, &models.Recipe{
		ID: 42, UserID: 1, Title: "Pancakes",
		Ingredients: []models.Ingredient{
			{ID: 101, FoodID: "food_flour", Title: "Flour"},
			{ID: 102, FoodID: "food_egg", Title: "Egg"},
		},
		Steps: []models.Step{
			{ID: 201, Number: 1, Description: "mix"},
			{ID: 202, Number: 2, Description: "fry"},
		},
	})
	_, err := drafts.Update(1, func(s draft.Session) (draft.Session, error) {
		return s.RemoveIngredient(draft.Ingredient{FoodID: "food_egg"}), nil
	})
	require.NoError(t, err)

	_, err = p.Submit(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, recipes.updateCalls)
	require.NotNil(t, recipes.lastPayload.ID)
	assert.Equal(t, 42, *recipes.lastPayload.ID)
	assert.Equal(t, []int{102}, recipes.lastPayload.IngredientIDs)
	assert.Empty(t, recipes.lastPayload.StepsIDs)
	assert.False(t, caches.created)
}

func TestBuildPayloadOmitsEmptyDeletionArrays(t *testing.T) {
	sess := draft.EditSession("tok", &models.Recipe{
		ID: 42, Title: "Pancakes",
		Ingredients: []models.Ingredient{{ID: 101, FoodID: "food_flour", Title: "Flour"}},
		Steps:       []models.Step{{ID: 201, Number: 1, Description: "mix"}},
	})

	b, err := json.Marshal(BuildPayload(sess))
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &fields))
	assert.NotContains(t, fields, "ingredientIds")
	assert.NotContains(t, fields, "stepsIds")

	sess = sess.RemoveIngredient(draft.Ingredient{FoodID: "food_flour"})
	b, err = json.Marshal(BuildPayload(sess))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &fields))
	assert.Contains(t, fields, "ingredientIds")
	assert.NotContains(t, fields, "stepsIds")
}

func TestBuildPayloadCreateNeverCarriesIDOrPhoto(t *testing.T) {
	sess := draft.NewSession("tok")
	sess = sess.SetPhoto("staging/1/abc.jpg")
	sess, err := sess.AddIngredient(draft.Ingredient{FoodID: "food_rice", Title: "Rice"})
	require.NoError(t, err)
	sess = sess.SetSteps([]draft.Step{{Description: "cook"}})

	payload := BuildPayload(sess)
	assert.Nil(t, payload.ID)
	assert.Nil(t, payload.PhotoURL)
	assert.Empty(t, payload.IngredientIDs)
}

func TestSubmitPromotesStagedPhoto(t *testing.T) {
	drafts := draft.NewStore()
	recipes := &stubRecipes{}
	photos := &stubPhotos{}
	p := New(drafts, recipes, photos, &stubReconciler{})

	seedDraft(t, drafts, 1)
	_, err := drafts.Update(1, func(s draft.Session) (draft.Session, error) {
		return s.SetPhoto("staging/1/abc.jpg"), nil
	})
	require.NoError(t, err)

	rec, err := p.Submit(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, photos.promoteCalls)
	assert.Equal(t, "staging/1/abc.jpg", photos.promotedKey)
	assert.Equal(t, 1, recipes.photoCalls)
	assert.Equal(t, "https://cdn.example.com/recipes/1/99.jpg", rec.PhotoURL)
	assert.Zero(t, photos.deleteCalls)
}

func TestSubmitPhotoPatchFailureCleansUpAndPreservesDraft(t *testing.T) {
	drafts := draft.NewStore()
	recipes := &stubRecipes{photoErr: errors.New("boom")}
	photos := &stubPhotos{}
	p := New(drafts, recipes, photos, &stubReconciler{})

	seedDraft(t, drafts, 1)
	_, err := drafts.Update(1, func(s draft.Session) (draft.Session, error) {
		return s.SetPhoto("staging/1/abc.jpg"), nil
	})
	require.NoError(t, err)

	_, err = p.Submit(context.Background(), 1)
	require.Error(t, err)

	var serr *SubmitError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StageUploadingPhoto, serr.Stage)
	// the unreachable blob was dropped
	assert.Equal(t, 1, photos.deleteCalls)
	// the draft survives for a retry
	assert.True(t, drafts.Get(1).Submittable())
}

func TestSubmitClearedPhotoDeletesBlob(t *testing.T) {
	drafts := draft.NewStore()
	recipes := &stubRecipes{}
	photos := &stubPhotos{}
	caches := &stubReconciler{}
	p := New(drafts, recipes, photos, caches)

	drafts.BeginEdit(1, &models.Recipe{
		ID: 42, UserID: 1, Title: "Pancakes",
		PhotoURL:    "https://cdn.example.com/recipes/1/42.jpg",
		Ingredients: []models.Ingredient{{ID: 101, FoodID: "food_flour", Title: "Flour"}},
		Steps:       []models.Step{{ID: 201, Number: 1, Description: "mix"}},
	})
	_, err := drafts.Update(1, func(s draft.Session) (draft.Session, error) {
		return s.SetPhoto(""), nil
	})
	require.NoError(t, err)

	rec, err := p.Submit(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 1, photos.deleteCalls)
	assert.Zero(t, photos.promoteCalls)
	assert.Equal(t, "", rec.PhotoURL)
	assert.Equal(t, "", caches.rec.PhotoURL)
}

func TestSubmitPersistFailurePreservesDraft(t *testing.T) {
	drafts := draft.NewStore()
	recipes := &stubRecipes{createErr: errors.New("db down")}
	caches := &stubReconciler{}
	p := New(drafts, recipes, nil, caches)

	seedDraft(t, drafts, 1)
	_, err := p.Submit(context.Background(), 1)
	require.Error(t, err)

	var serr *SubmitError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StagePersisting, serr.Stage)
	assert.Zero(t, caches.calls)
	assert.True(t, drafts.Get(1).Submittable())
}

func TestCorrelateIngredientsKeepsLocalSnapshot(t *testing.T) {
	local := []draft.Ingredient{
		{FoodID: "food_flour", Title: "Flour", Calories: 455, Carbs: 95.4},
		{FoodID: "food_egg", Title: "Egg", Calories: 143},
	}
	server := []models.Ingredient{
		{ID: 101, RecipeID: 42, FoodID: "food_flour", Title: "flour (server)"},
		{ID: 102, RecipeID: 42, FoodID: "food_egg"},
	}

	out := CorrelateIngredients(local, server)
	require.Len(t, out, 2)
	assert.Equal(t, 101, out[0].ID)
	assert.Equal(t, 42, out[0].RecipeID)
	// the local title and macros win over the server echo
	assert.Equal(t, "Flour", out[0].Title)
	assert.Equal(t, 455.0, out[0].Calories)
	assert.Equal(t, 95.4, out[0].Carbs)
}
