package handlers

import (
	"errors"
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/plateful/recipe-feed/internal/database"
	"github.com/plateful/recipe-feed/internal/draft"
	"github.com/plateful/recipe-feed/internal/models"
	"github.com/plateful/recipe-feed/internal/pipeline"
	"github.com/plateful/recipe-feed/internal/services"
)

// GetDraft returns the user's current draft session with its running
// nutrition totals
func (h *Handler) GetDraft(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	sess := h.drafts.Get(userID)
	return Success(c, fiber.Map{
		"session": sess,
		"totals":  draft.Aggregate(sess.Draft.Ingredients),
	})
}

// BeginDraft starts a fresh empty draft, discarding whatever session
// the user had
func (h *Handler) BeginDraft(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	h.discardStagedPhoto(c, userID)
	sess := h.drafts.Begin(userID)
	return c.Status(fiber.StatusCreated).JSON(APIResponse{Success: true, Data: sess})
}

// BeginEditDraft seeds a draft session from one of the user's existing
// recipes
func (h *Handler) BeginEditDraft(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid recipe id")
	}

	rec, err := h.db.GetRecipeByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrRecipeNotFound) {
			return Error(c, fiber.StatusNotFound, "recipe not found")
		}
		return Error(c, fiber.StatusInternalServerError, "failed to get recipe")
	}

	if rec.UserID != userID {
		return Error(c, fiber.StatusForbidden, "you can only edit your own recipes")
	}

	h.discardStagedPhoto(c, userID)
	sess := h.drafts.BeginEdit(userID, rec)
	return c.Status(fiber.StatusCreated).JSON(APIResponse{Success: true, Data: sess})
}

// SetDraftInfo replaces the draft's title/servings/type/time fields
func (h *Handler) SetDraftInfo(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	var info draft.Info
	if err := c.BodyParser(&info); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	sess, _ := h.drafts.Update(userID, func(s draft.Session) (draft.Session, error) {
		return s.SetInfo(info), nil
	})
	return Success(c, sess)
}

// AddDraftIngredient appends an ingredient to the draft. A duplicate
// foodId is a conflict the screen surfaces to the user.
func (h *Handler) AddDraftIngredient(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	var ing draft.Ingredient
	if err := c.BodyParser(&ing); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if ing.FoodID == "" || ing.Title == "" {
		return Error(c, fiber.StatusBadRequest, "foodId and title are required")
	}

	sess, err := h.drafts.Update(userID, func(s draft.Session) (draft.Session, error) {
		return s.AddIngredient(ing)
	})
	if err != nil {
		if errors.Is(err, draft.ErrDuplicateIngredient) {
			return Error(c, fiber.StatusConflict, err.Error())
		}
		return Error(c, fiber.StatusInternalServerError, "failed to add ingredient")
	}

	return Success(c, sess)
}

// EditDraftIngredient replaces the matching draft ingredient
func (h *Handler) EditDraftIngredient(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	var ing draft.Ingredient
	if err := c.BodyParser(&ing); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	sess, _ := h.drafts.Update(userID, func(s draft.Session) (draft.Session, error) {
		return s.EditIngredient(ing), nil
	})
	return Success(c, sess)
}

// RemoveDraftIngredient removes the matching draft ingredient and
// tracks its server id if it had one
func (h *Handler) RemoveDraftIngredient(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	var ing draft.Ingredient
	if err := c.BodyParser(&ing); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	sess, _ := h.drafts.Update(userID, func(s draft.Session) (draft.Session, error) {
		return s.RemoveIngredient(ing), nil
	})
	return Success(c, sess)
}

// SetDraftSteps replaces the whole step list from the step-authoring
// screen
func (h *Handler) SetDraftSteps(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	var steps []draft.Step
	if err := c.BodyParser(&steps); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	sess, _ := h.drafts.Update(userID, func(s draft.Session) (draft.Session, error) {
		return s.SetSteps(steps), nil
	})
	return Success(c, sess)
}

// EditDraftStep replaces one step in place
func (h *Handler) EditDraftStep(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	var step draft.Step
	if err := c.BodyParser(&step); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	sess, _ := h.drafts.Update(userID, func(s draft.Session) (draft.Session, error) {
		return s.EditStep(step), nil
	})
	return Success(c, sess)
}

// RemoveDraftStep removes one step and renumbers the remainder
func (h *Handler) RemoveDraftStep(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	var step draft.Step
	if err := c.BodyParser(&step); err != nil {
		return Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	sess, _ := h.drafts.Update(userID, func(s draft.Session) (draft.Session, error) {
		return s.RemoveStep(step), nil
	})
	return Success(c, sess)
}

// GetDraftNutrition returns the draft's aggregated macro totals
func (h *Handler) GetDraftNutrition(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	sess := h.drafts.Get(userID)
	return Success(c, draft.Aggregate(sess.Draft.Ingredients))
}

// ResetDraft discards the current draft, including any staged photo
func (h *Handler) ResetDraft(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	h.discardStagedPhoto(c, userID)
	h.drafts.Reset(userID)
	return Success(c, h.drafts.Get(userID))
}

// StageDraftPhoto uploads a photo for the draft under a temporary key.
// The key travels with the draft and is promoted on submit.
func (h *Handler) StageDraftPhoto(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	if h.storage == nil {
		return Error(c, fiber.StatusServiceUnavailable, "photo storage is not configured")
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		return Error(c, fiber.StatusBadRequest, "no photo file provided")
	}
	if fileHeader.Size > 10*1024*1024 {
		return Error(c, fiber.StatusBadRequest, "photo must be smaller than 10MB")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to read photo")
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	// replacing a photo that was itself staged orphans the old object
	h.discardStagedPhoto(c, userID)

	key, err := h.storage.StagePhoto(c.Context(), userID, file, fileHeader.Size, contentType)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to upload photo")
	}

	sess, _ := h.drafts.Update(userID, func(s draft.Session) (draft.Session, error) {
		return s.SetPhoto(key), nil
	})
	return Success(c, sess)
}

// ClearDraftPhoto removes the draft's photo reference. If an existing
// server photo was cleared, submission deletes the blob.
func (h *Handler) ClearDraftPhoto(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	h.discardStagedPhoto(c, userID)
	sess, _ := h.drafts.Update(userID, func(s draft.Session) (draft.Session, error) {
		return s.SetPhoto(""), nil
	})
	return Success(c, sess)
}

// SubmitDraft runs the submission pipeline for the current draft
func (h *Handler) SubmitDraft(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
	}

	rec, err := h.submit.Submit(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyDraft) {
			return Error(c, fiber.StatusBadRequest, pipeline.ErrEmptyDraft.Error())
		}
		if errors.Is(err, database.ErrNotRecipeOwner) {
			return Error(c, fiber.StatusForbidden, "you can only edit your own recipes")
		}
		if errors.Is(err, database.ErrRecipeNotFound) {
			return Error(c, fiber.StatusNotFound, "recipe not found")
		}
		log.Printf("submission failed for user %d: %v", userID, err)
		return Error(c, fiber.StatusInternalServerError, "failed to save recipe")
	}

	return c.Status(fiber.StatusCreated).JSON(APIResponse{Success: true, Data: rec})
}

// SearchFood proxies the food lookup for the ingredient screen
func (h *Handler) SearchFood(c *fiber.Ctx) error {
	if h.food == nil {
		return Error(c, fiber.StatusServiceUnavailable, "food lookup is not configured")
	}

	query := c.Query("q")
	if query == "" {
		return Error(c, fiber.StatusBadRequest, "query parameter q is required")
	}

	matches, err := h.food.Search(c.Context(), query)
	if err != nil {
		if errors.Is(err, services.ErrFoodNotFound) {
			return Error(c, fiber.StatusNotFound, "no matching food found")
		}
		return Error(c, fiber.StatusBadGateway, "food lookup failed")
	}

	return Success(c, matches)
}

// GetFoodMacros returns the macro snapshot for a food at the selected
// quantity and unit
func (h *Handler) GetFoodMacros(c *fiber.Ctx) error {
	if h.food == nil {
		return Error(c, fiber.StatusServiceUnavailable, "food lookup is not configured")
	}

	foodID := c.Query("foodId")
	measureURI := c.Query("measureUri")
	if foodID == "" || measureURI == "" {
		return Error(c, fiber.StatusBadRequest, "foodId and measureUri are required")
	}

	quantity, err := strconv.ParseFloat(c.Query("quantity", "1"), 64)
	if err != nil || quantity <= 0 {
		return Error(c, fiber.StatusBadRequest, "invalid quantity")
	}

	macros, err := h.food.Macros(c.Context(), foodID, measureURI, quantity)
	if err != nil {
		if errors.Is(err, services.ErrFoodNotFound) {
			return Error(c, fiber.StatusNotFound, "no matching food found")
		}
		return Error(c, fiber.StatusBadGateway, "food lookup failed")
	}

	return Success(c, macros)
}

// discardStagedPhoto removes the draft's staged photo object, if any,
// before the session is replaced or cleared. Best-effort: an orphaned
// staged object never blocks the user.
func (h *Handler) discardStagedPhoto(c *fiber.Ctx, userID int) {
	if h.storage == nil {
		return
	}
	sess := h.drafts.Get(userID)
	if !models.IsStagedPhoto(sess.Draft.PhotoURI) {
		return
	}
	if err := h.storage.Discard(c.Context(), sess.Draft.PhotoURI); err != nil {
		log.Printf("failed to discard staged photo for user %d: %v", userID, err)
	}
}
