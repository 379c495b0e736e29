package draft

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plateful/recipe-feed/internal/models"
)

func intPtr(v int) *int { return &v }

func sampleRecipe() *models.Recipe {
	return &models.Recipe{
		ID:              42,
		UserID:          7,
		Title:           "Pancakes",
		Servings:        4,
		PhotoURL:        "https://cdn.example.com/recipes/7/42.jpg",
		Type:            models.CategoryBreakfast,
		PreparationTime: 20,
		Ingredients: []models.Ingredient{
			{ID: 101, RecipeID: 42, FoodID: "food_flour", Title: "Flour", Measure: "cup", Quantity: 2, Calories: 455},
			{ID: 102, RecipeID: 42, FoodID: "food_egg", Title: "Egg", Measure: "whole", Quantity: 2, Calories: 143},
		},
		Steps: []models.Step{
			{ID: 201, RecipeID: 42, Number: 1, Description: "Mix dry ingredients"},
			{ID: 202, RecipeID: 42, Number: 2, Description: "Fry on both sides"},
		},
	}
}

func TestAddIngredientRejectsDuplicateFoodID(t *testing.T) {
	sess := NewSession("tok")

	sess, err := sess.AddIngredient(Ingredient{FoodID: "food_flour", Title: "Flour", Calories: 455})
	require.NoError(t, err)

	got, err := sess.AddIngredient(Ingredient{FoodID: "food_flour", Title: "Flour again", Calories: 10})
	assert.ErrorIs(t, err, ErrDuplicateIngredient)
	// the draft is returned unchanged
	assert.Equal(t, sess.Draft, got.Draft)
	assert.Len(t, got.Draft.Ingredients, 1)
	assert.Equal(t, "Flour", got.Draft.Ingredients[0].Title)
}

func TestRemoveIngredientTracksServerIDOnce(t *testing.T) {
	sess := EditSession("tok", sampleRecipe())

	sess = sess.RemoveIngredient(Ingredient{FoodID: "food_flour"})
	assert.Equal(t, []int{101}, sess.Deleted.IngredientIDs)
	assert.Len(t, sess.Draft.Ingredients, 1)

	// removing an already-absent ingredient is a no-op
	again := sess.RemoveIngredient(Ingredient{FoodID: "food_flour"})
	assert.Equal(t, []int{101}, again.Deleted.IngredientIDs)
	assert.Equal(t, sess.Draft, again.Draft)
}

func TestRemoveIngredientWithoutServerIDNotTracked(t *testing.T) {
	sess := NewSession("tok")
	sess, err := sess.AddIngredient(Ingredient{FoodID: "food_salt", Title: "Salt"})
	require.NoError(t, err)

	sess = sess.RemoveIngredient(Ingredient{FoodID: "food_salt"})
	assert.Empty(t, sess.Deleted.IngredientIDs)
	assert.Empty(t, sess.Draft.Ingredients)
}

func TestReAddReclaimsTrackedServerID(t *testing.T) {
	sess := EditSession("tok", sampleRecipe())

	sess = sess.RemoveIngredient(Ingredient{FoodID: "food_egg"})
	require.Equal(t, []int{102}, sess.Deleted.IngredientIDs)

	sess, err := sess.AddIngredient(Ingredient{FoodID: "food_egg", Title: "Egg", Calories: 143})
	require.NoError(t, err)

	// the server row is kept instead of deleted and recreated
	assert.Empty(t, sess.Deleted.IngredientIDs)
	var readded *Ingredient
	for i := range sess.Draft.Ingredients {
		if sess.Draft.Ingredients[i].FoodID == "food_egg" {
			readded = &sess.Draft.Ingredients[i]
		}
	}
	require.NotNil(t, readded)
	require.NotNil(t, readded.ID)
	assert.Equal(t, 102, *readded.ID)
}

func TestEditIngredientPreservesServerID(t *testing.T) {
	sess := EditSession("tok", sampleRecipe())

	sess = sess.EditIngredient(Ingredient{FoodID: "food_flour", Title: "Flour", Measure: "gram", Quantity: 250, Calories: 910})

	ing := sess.Draft.Ingredients[0]
	require.NotNil(t, ing.ID)
	assert.Equal(t, 101, *ing.ID)
	assert.Equal(t, "gram", ing.Measure)
	assert.Equal(t, 910.0, ing.Calories)
}

func TestEditIngredientNoMatchIsNoOp(t *testing.T) {
	sess := EditSession("tok", sampleRecipe())
	got := sess.EditIngredient(Ingredient{FoodID: "food_unknown", Title: "Mystery"})
	assert.Equal(t, sess.Draft, got.Draft)
}

func TestSetStepsRenumbersDensely(t *testing.T) {
	sess := NewSession("tok")
	sess = sess.SetSteps([]Step{
		{Number: 9, Description: "first"},
		{Number: 3, Description: "second"},
		{Description: "third"},
	})

	require.Len(t, sess.Draft.Steps, 3)
	for i, st := range sess.Draft.Steps {
		assert.Equal(t, i+1, st.Number)
	}
}

func TestRemoveStepRenumbersAndTracks(t *testing.T) {
	sess := EditSession("tok", sampleRecipe())

	sess = sess.RemoveStep(Step{ID: intPtr(201)})

	assert.Equal(t, []int{201}, sess.Deleted.StepIDs)
	require.Len(t, sess.Draft.Steps, 1)
	assert.Equal(t, 1, sess.Draft.Steps[0].Number)
	assert.Equal(t, "Fry on both sides", sess.Draft.Steps[0].Description)
}

func TestRemoveStepFallsBackToDescription(t *testing.T) {
	sess := NewSession("tok")
	sess = sess.SetSteps([]Step{
		{Description: "boil water"},
		{Description: "add pasta"},
	})

	// neither id nor a valid position, matched by description
	sess = sess.RemoveStep(Step{Number: 99, Description: "boil water"})

	require.Len(t, sess.Draft.Steps, 1)
	assert.Equal(t, "add pasta", sess.Draft.Steps[0].Description)
	assert.Equal(t, 1, sess.Draft.Steps[0].Number)
	assert.Empty(t, sess.Deleted.StepIDs)
}

func TestEditStepPreservesNumberAndID(t *testing.T) {
	sess := EditSession("tok", sampleRecipe())

	sess = sess.EditStep(Step{ID: intPtr(202), Description: "Fry until golden"})

	st := sess.Draft.Steps[1]
	assert.Equal(t, 2, st.Number)
	require.NotNil(t, st.ID)
	assert.Equal(t, 202, *st.ID)
	assert.Equal(t, "Fry until golden", st.Description)
}

func TestSessionValueSemantics(t *testing.T) {
	base := EditSession("tok", sampleRecipe())

	mutated := base.RemoveIngredient(Ingredient{FoodID: "food_flour"})
	mutated = mutated.RemoveStep(Step{ID: intPtr(201)})
	mutated, err := mutated.AddIngredient(Ingredient{FoodID: "food_milk", Title: "Milk"})
	require.NoError(t, err)

	// the original session observed none of it
	assert.Len(t, base.Draft.Ingredients, 2)
	assert.Len(t, base.Draft.Steps, 2)
	assert.Empty(t, base.Deleted.IngredientIDs)
	assert.Empty(t, base.Deleted.StepIDs)
	assert.Equal(t, 1, base.Draft.Steps[0].Number)
}

func TestResetClearsDraftAndTracker(t *testing.T) {
	sess := EditSession("tok", sampleRecipe())
	sess = sess.RemoveIngredient(Ingredient{FoodID: "food_flour"})
	sess = sess.RemoveStep(Step{ID: intPtr(201)})

	sess = sess.Reset()

	assert.Nil(t, sess.Draft.ID)
	assert.Empty(t, sess.Draft.Ingredients)
	assert.Empty(t, sess.Draft.Steps)
	assert.Empty(t, sess.Deleted.IngredientIDs)
	assert.Empty(t, sess.Deleted.StepIDs)
	assert.Equal(t, "tok", sess.Token)
}

func TestSubmittable(t *testing.T) {
	sess := NewSession("tok")
	assert.False(t, sess.Submittable())

	sess, err := sess.AddIngredient(Ingredient{FoodID: "food_rice", Title: "Rice"})
	require.NoError(t, err)
	assert.False(t, sess.Submittable())

	sess = sess.SetSteps([]Step{{Description: "cook"}})
	assert.True(t, sess.Submittable())
}

func TestSetInfoCoercesStringNumbers(t *testing.T) {
	var info Info
	err := json.Unmarshal([]byte(`{"title":"Soup","servings":"4","preparationTime":35,"type":"dinner"}`), &info)
	require.NoError(t, err)

	sess := NewSession("tok").SetInfo(info)
	assert.Equal(t, "Soup", sess.Draft.Title)
	assert.Equal(t, 4, sess.Draft.Servings)
	assert.Equal(t, 35, sess.Draft.PreparationTime)
	assert.Equal(t, models.CategoryDinner, sess.Draft.Type)
}

func TestDeletionsMarshalEmptyAsArrays(t *testing.T) {
	b, err := json.Marshal(Deletions{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ingredientIds":[],"stepIds":[]}`, string(b))
}
