package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSectionedCard(t *testing.T) {
	parser := NewCardParser()

	card := parser.Parse(`Grandma's Pancakes
From the kitchen of Grandma
Serves 4

Ingredients:
2 cups flour
3 eggs
1/2 tsp salt
- butter for the pan

Directions:
1. Mix the dry ingredients together.
2. Whisk in the eggs and milk
until smooth.
3) Fry on both sides.`)

	assert.Equal(t, "Grandma's Pancakes", card.Title)

	require.Len(t, card.Ingredients, 4)
	assert.Equal(t, 2.0, card.Ingredients[0].Quantity)
	assert.Equal(t, "cups", card.Ingredients[0].Unit)
	assert.Equal(t, "flour", card.Ingredients[0].Name)
	assert.Equal(t, 3.0, card.Ingredients[1].Quantity)
	assert.Equal(t, "eggs", card.Ingredients[1].Name)
	assert.Equal(t, 0.5, card.Ingredients[2].Quantity)
	assert.Equal(t, "tsp", card.Ingredients[2].Unit)
	assert.Equal(t, "butter for the pan", card.Ingredients[3].Name)

	require.Len(t, card.Steps, 3)
	assert.Equal(t, "Mix the dry ingredients together.", card.Steps[0])
	// unnumbered line folded into the previous step
	assert.Equal(t, "Whisk in the eggs and milk until smooth.", card.Steps[1])
	assert.Equal(t, "Fry on both sides.", card.Steps[2])
}

func TestParseWithoutSectionHeaders(t *testing.T) {
	parser := NewCardParser()

	card := parser.Parse(`Quick Omelette
2 eggs
1 tbsp butter
1. Beat the eggs.
2. Cook in butter.`)

	assert.Equal(t, "Quick Omelette", card.Title)
	require.Len(t, card.Ingredients, 2)
	assert.Equal(t, "butter", card.Ingredients[1].Name)
	assert.Equal(t, "tbsp", card.Ingredients[1].Unit)
	require.Len(t, card.Steps, 2)
}

func TestParseExcludesCardFurniture(t *testing.T) {
	parser := NewCardParser()

	card := parser.Parse(`Prep time: 10 minutes
Cook time: 20 minutes
-----
42
Beef Stew`)

	assert.Equal(t, "Beef Stew", card.Title)
	assert.Empty(t, card.Ingredients)
	assert.Empty(t, card.Steps)
}

func TestParseKeepsRawLineInIngredientsSection(t *testing.T) {
	parser := NewCardParser()

	card := parser.Parse(`INGREDIENTS
salt and pepper to taste`)

	require.Len(t, card.Ingredients, 1)
	assert.Equal(t, "salt and pepper to taste", card.Ingredients[0].Name)
	assert.Equal(t, 1.0, card.Ingredients[0].Quantity)
}

func TestParseQuantity(t *testing.T) {
	assert.Equal(t, 2.0, parseQuantity("2"))
	assert.Equal(t, 0.5, parseQuantity("1/2"))
	assert.Equal(t, 1.5, parseQuantity("1 1/2"))
	assert.Equal(t, 2.5, parseQuantity("2.5"))
	assert.Equal(t, 0.0, parseQuantity("1/0"))
	assert.Equal(t, 0.0, parseQuantity("abc"))
}
