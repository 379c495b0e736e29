package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/plateful/recipe-feed/internal/models"
)

var (
	ErrRecipeNotFound = errors.New("recipe not found")
	ErrNotRecipeOwner = errors.New("not the owner of this recipe")
)

// CreateRecipe inserts a recipe with its ingredients and steps in one
// transaction and returns the canonical copy with server-assigned ids
func (db *DB) CreateRecipe(ctx context.Context, userID int, p *models.RecipePayload) (*models.Recipe, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rec := &models.Recipe{
		UserID:          userID,
		Title:           p.Title,
		Servings:        p.Servings,
		Type:            p.Type,
		PreparationTime: p.PreparationTime,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO recipes (user_id, title, servings, type, preparation_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, photo_url, created_at, updated_at
	`, userID, p.Title, p.Servings, p.Type, p.PreparationTime).Scan(
		&rec.ID, &rec.PhotoURL, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert recipe: %w", err)
	}

	rec.Ingredients, err = insertIngredients(ctx, tx, rec.ID, p.Ingredients)
	if err != nil {
		return nil, err
	}
	rec.Steps, err = replaceSteps(ctx, tx, rec.ID, p.Steps)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateRecipe applies an edit payload: scalar fields, ingredient and
// step upserts, and the deletion of sub-items whose server ids the
// client tracked while editing. Returns the canonical copy.
func (db *DB) UpdateRecipe(ctx context.Context, userID int, p *models.RecipePayload) (*models.Recipe, error) {
	if p.ID == nil {
		return nil, ErrRecipeNotFound
	}
	recipeID := *p.ID

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var ownerID int
	err = tx.QueryRow(ctx, "SELECT user_id FROM recipes WHERE id = $1", recipeID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}
	if ownerID != userID {
		return nil, ErrNotRecipeOwner
	}

	if p.PhotoURL != nil {
		_, err = tx.Exec(ctx, `
			UPDATE recipes
			SET title = $1, servings = $2, type = $3, preparation_time = $4, photo_url = $5, updated_at = NOW()
			WHERE id = $6
		`, p.Title, p.Servings, p.Type, p.PreparationTime, *p.PhotoURL, recipeID)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE recipes
			SET title = $1, servings = $2, type = $3, preparation_time = $4, updated_at = NOW()
			WHERE id = $5
		`, p.Title, p.Servings, p.Type, p.PreparationTime, recipeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update recipe: %w", err)
	}

	if len(p.IngredientIDs) > 0 {
		_, err = tx.Exec(ctx,
			"DELETE FROM recipe_ingredients WHERE recipe_id = $1 AND id = ANY($2)",
			recipeID, p.IngredientIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to delete ingredients: %w", err)
		}
	}
	if len(p.StepsIDs) > 0 {
		_, err = tx.Exec(ctx,
			"DELETE FROM recipe_steps WHERE recipe_id = $1 AND id = ANY($2)",
			recipeID, p.StepsIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to delete steps: %w", err)
		}
	}

	// update pre-existing ingredients in place, insert the new ones
	var newIngredients []models.IngredientPayload
	for _, ing := range p.Ingredients {
		if ing.ID == nil {
			newIngredients = append(newIngredients, ing)
			continue
		}
		measures, err := json.Marshal(ing.Measures)
		if err != nil {
			return nil, err
		}
		_, err = tx.Exec(ctx, `
			UPDATE recipe_ingredients
			SET food_id = $1, title = $2, measure = $3, quantity = $4,
				calories = $5, carbs = $6, proteins = $7, fats = $8, measures = $9
			WHERE id = $10 AND recipe_id = $11
		`, ing.FoodID, ing.Title, ing.Measure, ing.Quantity,
			ing.Calories, ing.Carbs, ing.Proteins, ing.Fats, measures,
			*ing.ID, recipeID)
		if err != nil {
			return nil, fmt.Errorf("failed to update ingredient: %w", err)
		}
	}
	if _, err := insertIngredients(ctx, tx, recipeID, newIngredients); err != nil {
		return nil, err
	}

	// pre-existing steps keep their ids; the payload's positions are
	// authoritative for numbering
	for i, st := range p.Steps {
		if st.ID != nil {
			_, err = tx.Exec(ctx, `
				UPDATE recipe_steps SET number = $1, description = $2
				WHERE id = $3 AND recipe_id = $4
			`, i+1, st.Description, *st.ID, recipeID)
		} else {
			_, err = tx.Exec(ctx, `
				INSERT INTO recipe_steps (recipe_id, number, description)
				VALUES ($1, $2, $3)
			`, recipeID, i+1, st.Description)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to upsert step: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return db.GetRecipeByID(ctx, recipeID)
}

// SetRecipePhoto patches only the photo URL, used as the follow-up
// after a photo upload
func (db *DB) SetRecipePhoto(ctx context.Context, recipeID int, url string) error {
	tag, err := db.Pool.Exec(ctx,
		"UPDATE recipes SET photo_url = $1, updated_at = NOW() WHERE id = $2",
		url, recipeID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecipeNotFound
	}
	return nil
}

// GetRecipeByID retrieves a recipe with all its sub-items
func (db *DB) GetRecipeByID(ctx context.Context, id int) (*models.Recipe, error) {
	rec := &models.Recipe{}
	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, title, servings, photo_url, type, preparation_time, created_at, updated_at
		FROM recipes
		WHERE id = $1
	`, id).Scan(
		&rec.ID, &rec.UserID, &rec.Title, &rec.Servings, &rec.PhotoURL,
		&rec.Type, &rec.PreparationTime, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecipeNotFound
		}
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, recipe_id, food_id, title, measure, quantity, calories, carbs, proteins, fats, measures
		FROM recipe_ingredients
		WHERE recipe_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		ing := models.Ingredient{}
		var measures []byte
		err := rows.Scan(
			&ing.ID, &ing.RecipeID, &ing.FoodID, &ing.Title, &ing.Measure,
			&ing.Quantity, &ing.Calories, &ing.Carbs, &ing.Proteins, &ing.Fats,
			&measures,
		)
		if err != nil {
			return nil, err
		}
		if len(measures) > 0 {
			if err := json.Unmarshal(measures, &ing.Measures); err != nil {
				return nil, fmt.Errorf("failed to decode measures: %w", err)
			}
		}
		rec.Ingredients = append(rec.Ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stepRows, err := db.Pool.Query(ctx, `
		SELECT id, recipe_id, number, description
		FROM recipe_steps
		WHERE recipe_id = $1
		ORDER BY number ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer stepRows.Close()

	for stepRows.Next() {
		st := models.Step{}
		if err := stepRows.Scan(&st.ID, &st.RecipeID, &st.Number, &st.Description); err != nil {
			return nil, err
		}
		rec.Steps = append(rec.Steps, st)
	}
	return rec, stepRows.Err()
}

// ListRecipes returns the public browse view with optional title search
// and category filter
func (db *DB) ListRecipes(ctx context.Context, params *models.RecipeListParams) ([]models.RecipeSummary, int, error) {
	where := "WHERE 1=1"
	args := []any{}
	if params.Search != "" {
		args = append(args, "%"+params.Search+"%")
		where += fmt.Sprintf(" AND r.title ILIKE $%d", len(args))
	}
	if params.Category != "" {
		args = append(args, params.Category)
		where += fmt.Sprintf(" AND r.type = $%d", len(args))
	}

	var total int
	err := db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM recipes r "+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	args = append(args, params.Limit, params.Offset)
	query := fmt.Sprintf(`
		SELECT
			r.id, r.title, r.photo_url, r.type, r.preparation_time,
			COALESCE((SELECT FLOOR(SUM(ri.calories)) FROM recipe_ingredients ri WHERE ri.recipe_id = r.id), 0) as total_calories
		FROM recipes r
		%s
		ORDER BY r.updated_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	return db.scanSummaries(ctx, query, args, total)
}

// ListUserRecipes returns one page of a user's own recipes
func (db *DB) ListUserRecipes(ctx context.Context, userID, limit, offset int) ([]models.RecipeSummary, int, error) {
	var total int
	err := db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM recipes WHERE user_id = $1", userID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT
			r.id, r.title, r.photo_url, r.type, r.preparation_time,
			COALESCE((SELECT FLOOR(SUM(ri.calories)) FROM recipe_ingredients ri WHERE ri.recipe_id = r.id), 0) as total_calories
		FROM recipes r
		WHERE r.user_id = $1
		ORDER BY r.updated_at DESC
		LIMIT $2 OFFSET $3
	`
	return db.scanSummaries(ctx, query, []any{userID, limit, offset}, total)
}

// CountUserRecipes returns the number of recipes a user owns
func (db *DB) CountUserRecipes(ctx context.Context, userID int) (int, error) {
	var count int
	err := db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM recipes WHERE user_id = $1", userID).Scan(&count)
	return count, err
}

// AddFavorite marks a recipe as a favorite of the user
func (db *DB) AddFavorite(ctx context.Context, userID, recipeID int) error {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM recipes WHERE id = $1)", recipeID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRecipeNotFound
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO favorites (user_id, recipe_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT DO NOTHING
	`, userID, recipeID)
	return err
}

// RemoveFavorite removes a recipe from the user's favorites
func (db *DB) RemoveFavorite(ctx context.Context, userID, recipeID int) error {
	_, err := db.Pool.Exec(ctx,
		"DELETE FROM favorites WHERE user_id = $1 AND recipe_id = $2",
		userID, recipeID)
	return err
}

// ListFavorites returns one page of the user's favorite recipes
func (db *DB) ListFavorites(ctx context.Context, userID, limit, offset int) ([]models.RecipeSummary, int, error) {
	var total int
	err := db.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM favorites WHERE user_id = $1", userID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT
			r.id, r.title, r.photo_url, r.type, r.preparation_time,
			COALESCE((SELECT FLOOR(SUM(ri.calories)) FROM recipe_ingredients ri WHERE ri.recipe_id = r.id), 0) as total_calories
		FROM favorites f
		JOIN recipes r ON r.id = f.recipe_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC
		LIMIT $2 OFFSET $3
	`
	return db.scanSummaries(ctx, query, []any{userID, limit, offset}, total)
}

func (db *DB) scanSummaries(ctx context.Context, query string, args []any, total int) ([]models.RecipeSummary, int, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	summaries := []models.RecipeSummary{}
	for rows.Next() {
		s := models.RecipeSummary{}
		err := rows.Scan(&s.ID, &s.Title, &s.PhotoURL, &s.Type, &s.PreparationTime, &s.TotalCalories)
		if err != nil {
			return nil, 0, err
		}
		summaries = append(summaries, s)
	}
	return summaries, total, rows.Err()
}

func insertIngredients(ctx context.Context, tx pgx.Tx, recipeID int, ings []models.IngredientPayload) ([]models.Ingredient, error) {
	out := make([]models.Ingredient, 0, len(ings))
	for _, ing := range ings {
		measures, err := json.Marshal(ing.Measures)
		if err != nil {
			return nil, err
		}
		row := models.Ingredient{
			RecipeID: recipeID,
			FoodID:   ing.FoodID,
			Title:    ing.Title,
			Measure:  ing.Measure,
			Quantity: ing.Quantity,
			Calories: ing.Calories,
			Carbs:    ing.Carbs,
			Proteins: ing.Proteins,
			Fats:     ing.Fats,
			Measures: ing.Measures,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO recipe_ingredients (recipe_id, food_id, title, measure, quantity, calories, carbs, proteins, fats, measures)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id
		`, recipeID, ing.FoodID, ing.Title, ing.Measure, ing.Quantity,
			ing.Calories, ing.Carbs, ing.Proteins, ing.Fats, measures).Scan(&row.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert ingredient: %w", err)
		}
		out = append(out, row)
	}
	return out, nil
}

func replaceSteps(ctx context.Context, tx pgx.Tx, recipeID int, steps []models.StepPayload) ([]models.Step, error) {
	out := make([]models.Step, 0, len(steps))
	for i, st := range steps {
		row := models.Step{
			RecipeID:    recipeID,
			Number:      i + 1,
			Description: st.Description,
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO recipe_steps (recipe_id, number, description)
			VALUES ($1, $2, $3)
			RETURNING id
		`, recipeID, i+1, st.Description).Scan(&row.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert step: %w", err)
		}
		out = append(out, row)
	}
	return out, nil
}
