package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/plateful/recipe-feed/internal/cache"
	"github.com/plateful/recipe-feed/internal/database"
	"github.com/plateful/recipe-feed/internal/models"
)

// getUserID extracts user ID from context using the middleware helper
func getUserID(c *fiber.Ctx) (int, error) {
	userID, ok := c.Locals("user_id").(int)
	if !ok || userID == 0 {
		return 0, errors.New("user not authenticated")
	}
	return userID, nil
}

// ListRecipes returns the public browse view with optional search and
// category filter
func (h *Handler) ListRecipes(c *fiber.Ctx) error {
	params := &models.RecipeListParams{
		Limit:    c.QueryInt("limit", 20),
		Offset:   c.QueryInt("offset", 0),
		Search:   c.Query("search"),
		Category: models.RecipeCategory(c.Query("type")),
	}

	if params.Limit < 1 || params.Limit > 100 {
		params.Limit = 20
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	if params.Category != "" && !params.Category.Valid() {
		return Error(c, fiber.StatusBadRequest, "invalid recipe type")
	}

	recipes, total, err := h.db.ListRecipes(c.Context(), params)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to list recipes")
	}

	return SuccessWithMeta(c, recipes, total, params.Limit, params.Offset)
}

// GetRecipe returns a single recipe, served from the detail cache when
// warm
func (h *Handler) GetRecipe(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid recipe id")
	}

	if v, ok := h.caches.Get(cache.RecipeKey(id)); ok {
		if rec, ok := v.(*models.Recipe); ok {
			return Success(c, rec)
		}
	}

	rec, err := h.db.GetRecipeByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrRecipeNotFound) {
			return Error(c, fiber.StatusNotFound, "recipe not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get recipe")
	}

	h.caches.Put(cache.RecipeKey(id), rec)
	return Success(c, rec)
}

// ListMyRecipes returns one page of the current user's recipes. Fetched
// pages are kept in the personal list cache, which the reconciler
// patches in place after edits.
func (h *Handler) ListMyRecipes(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	key := cache.PersonalRecipesKey(userID)
	if v, ok := h.caches.Get(key); ok {
		if list, ok := v.(*cache.RecipeList); ok {
			for _, page := range list.Pages {
				if page.Offset == offset {
					return SuccessWithMeta(c, page.Items, list.Total, limit, offset)
				}
			}
		}
	}

	recipes, total, err := h.db.ListUserRecipes(c.Context(), userID, limit, offset)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to list recipes")
	}

	list := &cache.RecipeList{Total: total}
	if v, ok := h.caches.Get(key); ok {
		if cached, ok := v.(*cache.RecipeList); ok {
			list.Pages = append(list.Pages, cached.Pages...)
		}
	}
	list.Pages = append(list.Pages, cache.Page{Offset: offset, Items: recipes})
	h.caches.Put(key, list)

	return SuccessWithMeta(c, recipes, total, limit, offset)
}

// GetRecipesPerUser returns how many recipes the user owns; the cached
// count is invalidated (not patched) by the reconciler because it is
// not locally recomputable
func (h *Handler) GetRecipesPerUser(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	key := cache.RecipesPerUserKey(userID)
	if v, ok := h.caches.Get(key); ok {
		if count, ok := v.(int); ok {
			return Success(c, fiber.Map{"count": count})
		}
	}

	count, err := h.db.CountUserRecipes(c.Context(), userID)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to count recipes")
	}

	h.caches.Put(key, count)
	return Success(c, fiber.Map{"count": count})
}

// AddFavorite marks a recipe as a favorite
func (h *Handler) AddFavorite(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid recipe id")
	}

	if err := h.db.AddFavorite(c.Context(), userID, id); err != nil {
		if errors.Is(err, database.ErrRecipeNotFound) {
			return Error(c, fiber.StatusNotFound, "recipe not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to add favorite")
	}

	return Success(c, fiber.Map{"favorited": true})
}

// RemoveFavorite removes a recipe from favorites
func (h *Handler) RemoveFavorite(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid recipe id")
	}

	if err := h.db.RemoveFavorite(c.Context(), userID, id); err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to remove favorite")
	}

	return Success(c, fiber.Map{"favorited": false})
}

// ListFavorites returns one page of the user's favorite recipes
func (h *Handler) ListFavorites(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	limit := c.QueryInt("limit", 20)
	offset := c.QueryInt("offset", 0)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	recipes, total, err := h.db.ListFavorites(c.Context(), userID, limit, offset)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to list favorites")
	}

	return SuccessWithMeta(c, recipes, total, limit, offset)
}
