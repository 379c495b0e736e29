package draft

import "math"

// Totals holds the derived macro totals for a draft's ingredient list.
// The server never returns aggregate macros, so this derivation is the
// single source of the figure shown in previews and list views.
type Totals struct {
	TotalCalories int `json:"totalCalories"`
	TotalCarbs    int `json:"totalCarbs"`
	TotalProteins int `json:"totalProteins"`
	TotalFats     int `json:"totalFats"`
}

// Aggregate sums each macro field across the ingredient list and floors
// the totals for display. Summation is order-independent and the result
// is recomputed fresh on every call, never cached.
func Aggregate(ings []Ingredient) Totals {
	var calories, carbs, proteins, fats float64
	for _, ing := range ings {
		calories += ing.Calories
		carbs += ing.Carbs
		proteins += ing.Proteins
		fats += ing.Fats
	}
	return Totals{
		TotalCalories: int(math.Floor(calories)),
		TotalCarbs:    int(math.Floor(carbs)),
		TotalProteins: int(math.Floor(proteins)),
		TotalFats:     int(math.Floor(fats)),
	}
}
