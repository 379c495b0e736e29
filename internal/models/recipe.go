package models

import (
	"strings"
	"time"
)

// RecipeCategory classifies a recipe for browsing filters
type RecipeCategory string

const (
	CategoryBreakfast RecipeCategory = "breakfast"
	CategoryLunch     RecipeCategory = "lunch"
	CategoryDinner    RecipeCategory = "dinner"
	CategoryDessert   RecipeCategory = "dessert"
	CategorySnack     RecipeCategory = "snack"
	CategoryDrink     RecipeCategory = "drink"
)

// Valid reports whether the category is one of the known values
func (c RecipeCategory) Valid() bool {
	switch c {
	case CategoryBreakfast, CategoryLunch, CategoryDinner, CategoryDessert, CategorySnack, CategoryDrink:
		return true
	}
	return false
}

// Recipe represents a persisted recipe with its sub-items
type Recipe struct {
	ID              int            `json:"id"`
	UserID          int            `json:"userId"`
	Title           string         `json:"title"`
	Servings        int            `json:"servings"`
	PhotoURL        string         `json:"photoUrl"`
	Type            RecipeCategory `json:"type"`
	PreparationTime int            `json:"preparationTime"` // minutes
	Ingredients     []Ingredient   `json:"ingredients"`
	Steps           []Step         `json:"steps"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Ingredient is a persisted recipe ingredient with its macro snapshot
// at the selected quantity and unit
type Ingredient struct {
	ID       int       `json:"id"`
	RecipeID int       `json:"recipeId,omitempty"`
	FoodID   string    `json:"foodId"`
	Title    string    `json:"title"`
	Measure  string    `json:"measure"`
	Quantity float64   `json:"quantity"`
	Calories float64   `json:"calories"`
	Carbs    float64   `json:"carbs"`
	Proteins float64   `json:"proteins"`
	Fats     float64   `json:"fats"`
	Measures []Measure `json:"measures,omitempty"`
}

// Measure is one entry of an ingredient's alternate unit catalogue,
// carried through unchanged so the client can switch units later
type Measure struct {
	URI    string  `json:"uri"`
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// Step is a persisted preparation step; Number is 1-based and dense
type Step struct {
	ID          int    `json:"id"`
	RecipeID    int    `json:"recipeId,omitempty"`
	Number      int    `json:"number"`
	Description string `json:"description"`
}

// RecipeSummary is the projection used in list views
type RecipeSummary struct {
	ID              int            `json:"id"`
	Title           string         `json:"title"`
	PhotoURL        string         `json:"photoUrl"`
	Type            RecipeCategory `json:"type"`
	PreparationTime int            `json:"preparationTime"`
	TotalCalories   int            `json:"totalCalories"`
}

// RecipePayload is the create/edit request shaped by the submission
// pipeline. The deletion-id arrays are omitted entirely when empty.
type RecipePayload struct {
	ID              *int                `json:"id,omitempty"`
	Title           string              `json:"title"`
	Servings        int                 `json:"servings"`
	Type            RecipeCategory      `json:"type"`
	PreparationTime int                 `json:"preparationTime"`
	PhotoURL        *string             `json:"photoUrl,omitempty"`
	Ingredients     []IngredientPayload `json:"ingredients"`
	Steps           []StepPayload       `json:"steps"`
	IngredientIDs   []int               `json:"ingredientIds,omitempty"`
	StepsIDs        []int               `json:"stepsIds,omitempty"`
}

// IngredientPayload is one ingredient in a create/edit request; ID is
// present only for ingredients that already exist on the server copy
type IngredientPayload struct {
	ID       *int      `json:"id,omitempty"`
	FoodID   string    `json:"foodId"`
	Title    string    `json:"title"`
	Measure  string    `json:"measure"`
	Quantity float64   `json:"quantity"`
	Calories float64   `json:"calories"`
	Carbs    float64   `json:"carbs"`
	Proteins float64   `json:"proteins"`
	Fats     float64   `json:"fats"`
	Measures []Measure `json:"measures,omitempty"`
}

// StepPayload is one step in a create/edit request
type StepPayload struct {
	ID          *int   `json:"id,omitempty"`
	Number      int    `json:"number"`
	Description string `json:"description"`
}

// StagedPhotoPrefix marks draft photo references that point at a
// staged upload awaiting promotion, as opposed to a public URL
const StagedPhotoPrefix = "staging/"

// IsStagedPhoto reports whether a draft photo reference is staged
func IsStagedPhoto(uri string) bool {
	return strings.HasPrefix(uri, StagedPhotoPrefix)
}

// RecipeListParams contains parameters for listing recipes
type RecipeListParams struct {
	Limit    int
	Offset   int
	Search   string
	Category RecipeCategory
	UserID   int
}
