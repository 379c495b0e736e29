package handlers

import (
	"io"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/plateful/recipe-feed/internal/draft"
	"github.com/plateful/recipe-feed/internal/services"
)

// ImportHandler handles recipe-card photo import. It is registered only
// when OCR is enabled and available on the host.
type ImportHandler struct {
	drafts *draft.Store
	ocr    *services.OCRService
	parser *services.CardParser
}

// NewImportHandler creates a card import handler
func NewImportHandler(drafts *draft.Store, ocr *services.OCRService, parser *services.CardParser) *ImportHandler {
	return &ImportHandler{
		drafts: drafts,
		ocr:    ocr,
		parser: parser,
	}
}

// ImportCard accepts a photographed recipe card, runs OCR, and seeds
// the current draft with the parsed title and steps. Ingredient
// candidates are returned for the screen to resolve against the food
// lookup one by one; they cannot enter the draft directly because a
// draft ingredient needs a foodId and a macro snapshot.
func (h *ImportHandler) ImportCard(c *fiber.Ctx) error {
	userID, err := getUserID(c)
	if err != nil {
		return Error(c, fiber.StatusUnauthorized, err.Error())
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

	imageBytes, err := io.ReadAll(file)
	if err != nil {
		return Error(c, fiber.StatusInternalServerError, "failed to read photo")
	}

	result, err := h.ocr.ProcessImage(imageBytes)
	if err != nil {
		log.Printf("OCR failed for user %d: %v", userID, err)
		return Error(c, fiber.StatusUnprocessableEntity, "could not read text from the photo")
	}

	card := h.parser.Parse(result.Text)
	if card.Title == "" && len(card.Ingredients) == 0 && len(card.Steps) == 0 {
		return Error(c, fiber.StatusUnprocessableEntity, "no recipe content recognized in the photo")
	}

	sess, _ := h.drafts.Update(userID, func(s draft.Session) (draft.Session, error) {
		if card.Title != "" && s.Draft.Title == "" {
			s.Draft.Title = card.Title
		}
		if len(card.Steps) > 0 && len(s.Draft.Steps) == 0 {
			steps := make([]draft.Step, 0, len(card.Steps))
			for _, desc := range card.Steps {
				steps = append(steps, draft.Step{Description: desc})
			}
			s = s.SetSteps(steps)
		}
		return s, nil
	})

	return Success(c, fiber.Map{
		"session":    sess,
		"parsed":     card,
		"unresolved": card.Ingredients,
	})
}
