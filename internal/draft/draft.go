package draft

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/plateful/recipe-feed/internal/models"
)

var (
	ErrDuplicateIngredient = errors.New("ingredient already added to this recipe")
)

// Number is a float that also accepts numeric strings, which is how the
// composition screens send quantity and time fields.
type Number float64

// UnmarshalJSON accepts both 42 and "42"
func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Draft is the in-memory recipe under construction or edit. ID is set
// only when editing an existing server recipe.
type Draft struct {
	ID              *int                  `json:"id,omitempty"`
	Title           string                `json:"title"`
	Servings        int                   `json:"servings"`
	PhotoURI        string                `json:"photoUri"`
	Type            models.RecipeCategory `json:"type"`
	PreparationTime int                   `json:"preparationTime"`
	Ingredients     []Ingredient          `json:"ingredients"`
	Steps           []Step                `json:"steps"`
}

// Ingredient is one draft ingredient. FoodID is the stable identity key
// from the food lookup and is unique within a draft; ID is the
// server-assigned id, present only for ingredients that already exist
// on the server copy being edited.
type Ingredient struct {
	FoodID   string           `json:"foodId"`
	ID       *int             `json:"id,omitempty"`
	Title    string           `json:"title"`
	Measure  string           `json:"measure"`
	Quantity Number           `json:"quantity"`
	Calories float64          `json:"calories"`
	Carbs    float64          `json:"carbs"`
	Proteins float64          `json:"proteins"`
	Fats     float64          `json:"fats"`
	Measures []models.Measure `json:"measures,omitempty"`
}

// Step is one draft preparation step. Number always equals the step's
// position+1; every structural change renumbers.
type Step struct {
	ID          *int   `json:"id,omitempty"`
	Number      int    `json:"number"`
	Description string `json:"description"`
}

// Deletions records the server ids of sub-items removed during the
// current edit session. Only items that had a server id at removal time
// are recorded; an id appears at most once.
type Deletions struct {
	IngredientIDs []int `json:"ingredientIds"`
	StepIDs       []int `json:"stepIds"`
}

// Info carries the title/servings/photo/type/time fields set by the
// first composition screen. Numeric fields tolerate string input.
type Info struct {
	Title           string                `json:"title"`
	Servings        Number                `json:"servings"`
	PhotoURI        string                `json:"photoUri"`
	Type            models.RecipeCategory `json:"type"`
	PreparationTime Number                `json:"preparationTime"`
}

// Session is one user's draft flow: the draft itself, the deletion
// tracker, and the snapshot of the server photo taken when an edit
// began (used to decide the delete-photo branch on submit).
//
// Sessions are values; every mutation returns a new Session and leaves
// the receiver untouched, so a failed submission can always retry with
// the draft it started from.
type Session struct {
	Token          string    `json:"token"`
	Draft          Draft     `json:"draft"`
	Deleted        Deletions `json:"deleted"`
	ServerPhotoURL string    `json:"-"`

	// server ids of ingredients removed this session, keyed by foodId,
	// so a re-add can reclaim the id instead of delete-and-recreate
	removedIngredients map[string]int
}

// NewSession returns an empty draft session for the add-recipe flow
func NewSession(token string) Session {
	return Session{Token: token, Draft: Draft{}}
}

// EditSession seeds a session from a server recipe for the edit flow
func EditSession(token string, r *models.Recipe) Session {
	id := r.ID
	d := Draft{
		ID:              &id,
		Title:           r.Title,
		Servings:        r.Servings,
		PhotoURI:        r.PhotoURL,
		Type:            r.Type,
		PreparationTime: r.PreparationTime,
	}
	for _, ing := range r.Ingredients {
		serverID := ing.ID
		d.Ingredients = append(d.Ingredients, Ingredient{
			FoodID:   ing.FoodID,
			ID:       &serverID,
			Title:    ing.Title,
			Measure:  ing.Measure,
			Quantity: Number(ing.Quantity),
			Calories: ing.Calories,
			Carbs:    ing.Carbs,
			Proteins: ing.Proteins,
			Fats:     ing.Fats,
			Measures: ing.Measures,
		})
	}
	for i, st := range r.Steps {
		serverID := st.ID
		d.Steps = append(d.Steps, Step{
			ID:          &serverID,
			Number:      i + 1,
			Description: st.Description,
		})
	}
	return Session{Token: token, Draft: d, ServerPhotoURL: r.PhotoURL}
}

// SetInfo replaces the draft's scalar fields. No validation beyond
// numeric coercion; the screens own their own field validation.
func (s Session) SetInfo(info Info) Session {
	s.Draft.Title = info.Title
	s.Draft.Servings = int(info.Servings)
	s.Draft.PhotoURI = info.PhotoURI
	s.Draft.Type = info.Type
	s.Draft.PreparationTime = int(info.PreparationTime)
	return s
}

// SetPhoto replaces only the photo reference
func (s Session) SetPhoto(uri string) Session {
	s.Draft.PhotoURI = uri
	return s
}

// AddIngredient appends an ingredient. Adding a foodId that is already
// present is a user-visible conflict, not an exception: the draft is
// returned unchanged with ErrDuplicateIngredient.
//
// Re-adding an ingredient whose server id was tracked for deletion this
// session reclaims that id and drops it from the tracker, so the server
// row is kept instead of deleted and recreated.
func (s Session) AddIngredient(ing Ingredient) (Session, error) {
	for _, existing := range s.Draft.Ingredients {
		if existing.FoodID == ing.FoodID {
			return s, ErrDuplicateIngredient
		}
	}

	if id, ok := s.removedIngredients[ing.FoodID]; ok {
		reclaimed := id
		ing.ID = &reclaimed
		s.Deleted.IngredientIDs = removeID(s.Deleted.IngredientIDs, id)
		s.removedIngredients = cloneIDMap(s.removedIngredients)
		delete(s.removedIngredients, ing.FoodID)
	}

	s.Draft.Ingredients = append(cloneIngredients(s.Draft.Ingredients), ing)
	return s, nil
}

// EditIngredient replaces the entry matched by foodId, falling back to
// the server id when the foodId is unavailable. No-op if nothing
// matches.
func (s Session) EditIngredient(ing Ingredient) Session {
	for i, existing := range s.Draft.Ingredients {
		if matchIngredient(existing, ing) {
			// keep the server identity of the row being replaced
			if ing.ID == nil {
				ing.ID = existing.ID
			}
			ings := cloneIngredients(s.Draft.Ingredients)
			ings[i] = ing
			s.Draft.Ingredients = ings
			return s
		}
	}
	return s
}

// RemoveIngredient removes the matching entry. If it had a server id,
// the id is tracked for server-side deletion exactly once; removing an
// already-absent ingredient is a no-op.
func (s Session) RemoveIngredient(ing Ingredient) Session {
	for i, existing := range s.Draft.Ingredients {
		if !matchIngredient(existing, ing) {
			continue
		}
		ings := cloneIngredients(s.Draft.Ingredients)
		s.Draft.Ingredients = append(ings[:i], ings[i+1:]...)
		if existing.ID != nil {
			s.Deleted.IngredientIDs = appendIDOnce(s.Deleted.IngredientIDs, *existing.ID)
			s.removedIngredients = cloneIDMap(s.removedIngredients)
			s.removedIngredients[existing.FoodID] = *existing.ID
		}
		return s
	}
	return s
}

// SetSteps replaces the whole step list, as returned by the
// step-authoring screen, and renumbers densely from 1.
func (s Session) SetSteps(steps []Step) Session {
	renumbered := make([]Step, len(steps))
	for i, st := range steps {
		st.Number = i + 1
		renumbered[i] = st
	}
	s.Draft.Steps = renumbered
	return s
}

// EditStep replaces a step matched by server id, or by position when it
// has none, preserving its number
func (s Session) EditStep(step Step) Session {
	for i, existing := range s.Draft.Steps {
		if !matchStep(existing, step, i) {
			continue
		}
		step.Number = existing.Number
		if step.ID == nil {
			step.ID = existing.ID
		}
		steps := cloneSteps(s.Draft.Steps)
		steps[i] = step
		s.Draft.Steps = steps
		return s
	}
	return s
}

// RemoveStep removes a step matched by server id, or by position, or by
// description as a last resort; tracks its server id and renumbers the
// remainder contiguously
func (s Session) RemoveStep(step Step) Session {
	idx := -1
	for i, existing := range s.Draft.Steps {
		if matchStep(existing, step, i) {
			idx = i
			break
		}
	}
	if idx < 0 {
		for i, existing := range s.Draft.Steps {
			if existing.Description == step.Description {
				idx = i
				break
			}
		}
	}
	if idx < 0 {
		return s
	}

	removed := s.Draft.Steps[idx]
	steps := cloneSteps(s.Draft.Steps)
	steps = append(steps[:idx], steps[idx+1:]...)
	for i := range steps {
		steps[i].Number = i + 1
	}
	s.Draft.Steps = steps
	if removed.ID != nil {
		s.Deleted.StepIDs = appendIDOnce(s.Deleted.StepIDs, *removed.ID)
	}
	return s
}

// Reset restores the empty draft and clears the deletion tracker
func (s Session) Reset() Session {
	return NewSession(s.Token)
}

// Submittable reports whether the draft meets the minimum shape for
// submission: at least one ingredient and one step
func (s Session) Submittable() bool {
	return len(s.Draft.Ingredients) > 0 && len(s.Draft.Steps) > 0
}

func matchIngredient(existing, target Ingredient) bool {
	if target.FoodID != "" {
		return existing.FoodID == target.FoodID
	}
	return target.ID != nil && existing.ID != nil && *existing.ID == *target.ID
}

func matchStep(existing, target Step, position int) bool {
	if target.ID != nil {
		return existing.ID != nil && *existing.ID == *target.ID
	}
	return target.Number == position+1
}

func appendIDOnce(ids []int, id int) []int {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	out := make([]int, len(ids), len(ids)+1)
	copy(out, ids)
	return append(out, id)
}

func removeID(ids []int, id int) []int {
	out := make([]int, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

func cloneIngredients(ings []Ingredient) []Ingredient {
	out := make([]Ingredient, len(ings))
	copy(out, ings)
	return out
}

func cloneSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}

func cloneIDMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// MarshalJSON keeps zero-value deletion arrays rendering as [] instead
// of null for the screens
func (d Deletions) MarshalJSON() ([]byte, error) {
	type alias Deletions
	a := alias(d)
	if a.IngredientIDs == nil {
		a.IngredientIDs = []int{}
	}
	if a.StepIDs == nil {
		a.StepIDs = []int{}
	}
	return json.Marshal(a)
}
