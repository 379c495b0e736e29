package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/plateful/recipe-feed/internal/draft"
	"github.com/plateful/recipe-feed/internal/models"
)

var (
	// ErrEmptyDraft is returned by validation; no network call happens
	ErrEmptyDraft = errors.New("a recipe needs at least one ingredient and one step")
)

// Stage identifies where a submission attempt is in its lifecycle
type Stage int

const (
	StageIdle Stage = iota
	StageValidating
	StageUploadingPhoto
	StagePersisting
	StageReconciling
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageValidating:
		return "validating"
	case StageUploadingPhoto:
		return "uploading-photo"
	case StagePersisting:
		return "persisting"
	case StageReconciling:
		return "reconciling"
	case StageDone:
		return "done"
	}
	return "idle"
}

// SubmitError carries the failed stage for logs; the user-facing
// message stays generic regardless of stage
type SubmitError struct {
	Stage Stage
	Err   error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submission failed while %s: %v", e.Stage, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// RecipeService is the persistence collaborator. Create and update
// return the server's canonical copy, whose ingredient rows carry the
// server-assigned ids.
type RecipeService interface {
	CreateRecipe(ctx context.Context, userID int, p *models.RecipePayload) (*models.Recipe, error)
	UpdateRecipe(ctx context.Context, userID int, p *models.RecipePayload) (*models.Recipe, error)
	SetRecipePhoto(ctx context.Context, recipeID int, url string) error
}

// PhotoStore is the blob storage collaborator
type PhotoStore interface {
	// Promote moves a staged photo to its final key for the recipe and
	// returns the public URL
	Promote(ctx context.Context, stagedKey string, userID, recipeID int) (string, error)
	// Delete removes the recipe's photo blob
	Delete(ctx context.Context, userID, recipeID int) error
}

// Reconciler patches the read caches after a successful submission
type Reconciler interface {
	Reconcile(userID int, rec *models.Recipe, totals draft.Totals, created bool)
}

// Pipeline runs one submission attempt: validate, persist, handle the
// photo branch, reconcile caches, reset the draft. Any failure aborts
// the attempt and leaves the draft store untouched so the user can
// resubmit without re-entering anything. There is no automatic retry.
type Pipeline struct {
	drafts  *draft.Store
	recipes RecipeService
	photos  PhotoStore
	caches  Reconciler
}

// New creates a submission pipeline. photos may be nil when blob
// storage is not configured; the photo branch is then skipped.
func New(drafts *draft.Store, recipes RecipeService, photos PhotoStore, caches Reconciler) *Pipeline {
	return &Pipeline{drafts: drafts, recipes: recipes, photos: photos, caches: caches}
}

// Submit runs the pipeline for the user's current draft session.
//
// Ordering matters: the create/edit call runs before the photo upload
// because a new recipe has no id to key the photo by until it is
// persisted; the follow-up photo patch needs the upload's returned URL.
// Once persisting starts the attempt runs to completion even if the
// caller goes away.
func (p *Pipeline) Submit(ctx context.Context, userID int) (*models.Recipe, error) {
	sess := p.drafts.Get(userID)

	if !sess.Submittable() {
		return nil, &SubmitError{Stage: StageValidating, Err: ErrEmptyDraft}
	}

	payload := BuildPayload(sess)
	created := sess.Draft.ID == nil
	ctx = context.WithoutCancel(ctx)

	var rec *models.Recipe
	var err error
	if created {
		rec, err = p.recipes.CreateRecipe(ctx, userID, payload)
	} else {
		rec, err = p.recipes.UpdateRecipe(ctx, userID, payload)
	}
	if err != nil {
		return nil, &SubmitError{Stage: StagePersisting, Err: err}
	}

	if err := p.runPhotoBranch(ctx, userID, sess, rec); err != nil {
		return nil, err
	}

	rec.Ingredients = CorrelateIngredients(sess.Draft.Ingredients, rec.Ingredients)
	totals := draft.Aggregate(sess.Draft.Ingredients)
	p.caches.Reconcile(userID, rec, totals, created)

	p.drafts.Reset(userID)
	return rec, nil
}

// runPhotoBranch handles the mutually exclusive photo cases: a staged
// photo is promoted and patched onto the recipe; a cleared photo that
// previously existed server-side is deleted best-effort; otherwise the
// branch is skipped entirely.
func (p *Pipeline) runPhotoBranch(ctx context.Context, userID int, sess draft.Session, rec *models.Recipe) error {
	if p.photos == nil {
		return nil
	}

	switch {
	case models.IsStagedPhoto(sess.Draft.PhotoURI):
		url, err := p.photos.Promote(ctx, sess.Draft.PhotoURI, userID, rec.ID)
		if err != nil {
			return &SubmitError{Stage: StageUploadingPhoto, Err: err}
		}
		if err := p.recipes.SetRecipePhoto(ctx, rec.ID, url); err != nil {
			// without the URL patch the blob is unreachable; drop it
			// rather than leak it
			if derr := p.photos.Delete(ctx, userID, rec.ID); derr != nil {
				log.Printf("failed to clean up photo for recipe %d: %v", rec.ID, derr)
			}
			return &SubmitError{Stage: StageUploadingPhoto, Err: err}
		}
		rec.PhotoURL = url

	case sess.Draft.PhotoURI == "" && sess.ServerPhotoURL != "":
		// best-effort: a dangling blob does not fail the edit
		if err := p.photos.Delete(ctx, userID, rec.ID); err != nil {
			log.Printf("failed to delete photo for recipe %d: %v", rec.ID, err)
		}
		rec.PhotoURL = ""
	}

	return nil
}

// BuildPayload shapes the create/edit request from a draft session. For
// edits it adds the recipe id, the photo URL, and the deletion-id
// arrays; the arrays are omitted from the JSON entirely when empty.
func BuildPayload(sess draft.Session) *models.RecipePayload {
	d := sess.Draft

	payload := &models.RecipePayload{
		Title:           d.Title,
		Servings:        d.Servings,
		Type:            d.Type,
		PreparationTime: d.PreparationTime,
		Ingredients:     make([]models.IngredientPayload, 0, len(d.Ingredients)),
		Steps:           make([]models.StepPayload, 0, len(d.Steps)),
	}

	for _, ing := range d.Ingredients {
		payload.Ingredients = append(payload.Ingredients, models.IngredientPayload{
			ID:       ing.ID,
			FoodID:   ing.FoodID,
			Title:    ing.Title,
			Measure:  ing.Measure,
			Quantity: float64(ing.Quantity),
			Calories: ing.Calories,
			Carbs:    ing.Carbs,
			Proteins: ing.Proteins,
			Fats:     ing.Fats,
			Measures: ing.Measures,
		})
	}
	for _, st := range d.Steps {
		payload.Steps = append(payload.Steps, models.StepPayload{
			ID:          st.ID,
			Number:      st.Number,
			Description: st.Description,
		})
	}

	if d.ID != nil {
		id := *d.ID
		payload.ID = &id
		if !models.IsStagedPhoto(d.PhotoURI) {
			// unchanged or cleared photo travels with the edit itself;
			// a staged photo is patched on after upload instead
			url := d.PhotoURI
			payload.PhotoURL = &url
		}
		if len(sess.Deleted.IngredientIDs) > 0 {
			payload.IngredientIDs = append([]int(nil), sess.Deleted.IngredientIDs...)
		}
		if len(sess.Deleted.StepIDs) > 0 {
			payload.StepsIDs = append([]int(nil), sess.Deleted.StepIDs...)
		}
	}

	return payload
}

// CorrelateIngredients joins the submitted drafts with the server's
// canonical list by foodId, the only identifier guaranteed present on
// both sides, and merges the server-assigned id onto each local
// snapshot. The local macro values and unit catalogue are kept; the
// server copy contributes identity only.
func CorrelateIngredients(local []draft.Ingredient, server []models.Ingredient) []models.Ingredient {
	byFood := make(map[string]models.Ingredient, len(server))
	for _, ing := range server {
		byFood[ing.FoodID] = ing
	}

	out := make([]models.Ingredient, 0, len(local))
	for _, ing := range local {
		merged := models.Ingredient{
			FoodID:   ing.FoodID,
			Title:    ing.Title,
			Measure:  ing.Measure,
			Quantity: float64(ing.Quantity),
			Calories: ing.Calories,
			Carbs:    ing.Carbs,
			Proteins: ing.Proteins,
			Fats:     ing.Fats,
			Measures: ing.Measures,
		}
		if srv, ok := byFood[ing.FoodID]; ok {
			merged.ID = srv.ID
			merged.RecipeID = srv.RecipeID
		} else if ing.ID != nil {
			merged.ID = *ing.ID
		}
		out = append(out, merged)
	}
	return out
}
