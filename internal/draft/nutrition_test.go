package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateSumsAndFloors(t *testing.T) {
	totals := Aggregate([]Ingredient{
		{FoodID: "food_chicken", Calories: 200.4, Carbs: 0.5, Proteins: 37.6, Fats: 4.4},
		{FoodID: "food_rice", Calories: 150.4, Carbs: 33.2, Proteins: 3.1, Fats: 0.3},
	})

	assert.Equal(t, 350, totals.TotalCalories)
	assert.Equal(t, 33, totals.TotalCarbs)
	assert.Equal(t, 40, totals.TotalProteins)
	assert.Equal(t, 4, totals.TotalFats)
}

func TestAggregateOrderIndependent(t *testing.T) {
	a := Ingredient{FoodID: "a", Calories: 123.7, Carbs: 10.1, Proteins: 5.9, Fats: 2.2}
	b := Ingredient{FoodID: "b", Calories: 88.3, Carbs: 4.4, Proteins: 1.1, Fats: 7.8}
	c := Ingredient{FoodID: "c", Calories: 300.05, Carbs: 55.5, Proteins: 12.3, Fats: 0.9}

	assert.Equal(t, Aggregate([]Ingredient{a, b, c}), Aggregate([]Ingredient{c, a, b}))
}

func TestAggregateEmptyAndMissingValues(t *testing.T) {
	assert.Equal(t, Totals{}, Aggregate(nil))

	// an ingredient without macro values contributes zero
	totals := Aggregate([]Ingredient{
		{FoodID: "food_water"},
		{FoodID: "food_bread", Calories: 80},
	})
	assert.Equal(t, 80, totals.TotalCalories)
	assert.Equal(t, 0, totals.TotalCarbs)
}

func TestAggregateFloorsTotalNotTerms(t *testing.T) {
	// 0.6 + 0.6 floors to 1, not 0
	totals := Aggregate([]Ingredient{
		{FoodID: "a", Calories: 0.6},
		{FoodID: "b", Calories: 0.6},
	})
	assert.Equal(t, 1, totals.TotalCalories)
}
