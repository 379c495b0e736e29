package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/plateful/recipe-feed/internal/models"
)

const (
	foodParserURL    = "https://api.edamam.com/api/food-database/v2/parser"
	foodNutrientsURL = "https://api.edamam.com/api/food-database/v2/nutrients"
	foodAPITimeout   = 10 * time.Second
)

var (
	ErrFoodNotFound = errors.New("no matching food found")
	ErrFoodAPIError = errors.New("food database api error")
)

// FoodAPI is the client for the external food/nutrition lookup. It is
// used by the ingredient screen before a draft ingredient exists:
// search resolves a query to candidate foods with their unit
// catalogues, and Macros snapshots the macro values for a chosen
// food, unit, and quantity.
type FoodAPI struct {
	appID      string
	appKey     string
	httpClient *http.Client
}

// FoodMatch is one candidate food from a search
type FoodMatch struct {
	FoodID   string           `json:"foodId"`
	Label    string           `json:"label"`
	Measures []models.Measure `json:"measures"`
}

// MacroSnapshot holds macro values for a food at a given quantity+unit
type MacroSnapshot struct {
	Calories float64 `json:"calories"`
	Carbs    float64 `json:"carbs"`
	Proteins float64 `json:"proteins"`
	Fats     float64 `json:"fats"`
}

// NewFoodAPI creates a food lookup client
func NewFoodAPI(appID, appKey string) *FoodAPI {
	return &FoodAPI{
		appID:  appID,
		appKey: appKey,
		httpClient: &http.Client{
			Timeout: foodAPITimeout,
		},
	}
}

type parserResponse struct {
	Hints []struct {
		Food struct {
			FoodID string `json:"foodId"`
			Label  string `json:"label"`
		} `json:"food"`
		Measures []struct {
			URI    string  `json:"uri"`
			Label  string  `json:"label"`
			Weight float64 `json:"weight"`
		} `json:"measures"`
	} `json:"hints"`
}

type nutrientsResponse struct {
	TotalNutrients map[string]struct {
		Quantity float64 `json:"quantity"`
	} `json:"totalNutrients"`
}

// Search resolves a free-text query to candidate foods
func (f *FoodAPI) Search(ctx context.Context, query string) ([]FoodMatch, error) {
	params := url.Values{}
	params.Set("app_id", f.appID)
	params.Set("app_key", f.appKey)
	params.Set("ingr", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, foodParserURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("food search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFoodAPIError, resp.StatusCode)
	}

	var parsed parserResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode food search response: %w", err)
	}

	if len(parsed.Hints) == 0 {
		return nil, ErrFoodNotFound
	}

	matches := make([]FoodMatch, 0, len(parsed.Hints))
	for _, hint := range parsed.Hints {
		match := FoodMatch{
			FoodID: hint.Food.FoodID,
			Label:  hint.Food.Label,
		}
		for _, m := range hint.Measures {
			match.Measures = append(match.Measures, models.Measure{
				URI:    m.URI,
				Label:  m.Label,
				Weight: m.Weight,
			})
		}
		matches = append(matches, match)
	}

	return matches, nil
}

// Macros returns the macro snapshot for a food at the selected
// quantity and unit
func (f *FoodAPI) Macros(ctx context.Context, foodID, measureURI string, quantity float64) (*MacroSnapshot, error) {
	body := map[string]any{
		"ingredients": []map[string]any{
			{
				"quantity":   quantity,
				"measureURI": measureURI,
				"foodId":     foodID,
			},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("app_id", f.appID)
	params.Set("app_key", f.appKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		foodNutrientsURL+"?"+params.Encode(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nutrients request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrFoodNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrFoodAPIError, resp.StatusCode)
	}

	var nutrients nutrientsResponse
	if err := json.NewDecoder(resp.Body).Decode(&nutrients); err != nil {
		return nil, fmt.Errorf("failed to decode nutrients response: %w", err)
	}

	return &MacroSnapshot{
		Calories: nutrients.TotalNutrients["ENERC_KCAL"].Quantity,
		Carbs:    nutrients.TotalNutrients["CHOCDF"].Quantity,
		Proteins: nutrients.TotalNutrients["PROCNT"].Quantity,
		Fats:     nutrients.TotalNutrients["FAT"].Quantity,
	}, nil
}
