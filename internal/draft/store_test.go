package draft

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreGetCreatesEmptySession(t *testing.T) {
	st := NewStore()

	sess := st.Get(1)
	assert.NotEmpty(t, sess.Token)
	assert.False(t, sess.Submittable())

	// stable across calls
	assert.Equal(t, sess.Token, st.Get(1).Token)
}

func TestStoreBeginDiscardsPreviousSession(t *testing.T) {
	st := NewStore()

	_, err := st.Update(1, func(s Session) (Session, error) {
		return s.AddIngredient(Ingredient{FoodID: "food_rice", Title: "Rice"})
	})
	require.NoError(t, err)

	sess := st.Begin(1)
	assert.Empty(t, sess.Draft.Ingredients)
	assert.Empty(t, st.Get(1).Draft.Ingredients)
}

func TestStoreUpdateLeavesSessionUntouchedOnError(t *testing.T) {
	st := NewStore()
	_, err := st.Update(1, func(s Session) (Session, error) {
		return s.AddIngredient(Ingredient{FoodID: "food_rice", Title: "Rice"})
	})
	require.NoError(t, err)

	_, err = st.Update(1, func(s Session) (Session, error) {
		return s.AddIngredient(Ingredient{FoodID: "food_rice", Title: "Rice again"})
	})
	assert.ErrorIs(t, err, ErrDuplicateIngredient)

	sess := st.Get(1)
	require.Len(t, sess.Draft.Ingredients, 1)
	assert.Equal(t, "Rice", sess.Draft.Ingredients[0].Title)
}

func TestStoreSessionsAreIndependentPerUser(t *testing.T) {
	st := NewStore()
	st.Begin(1)
	st.Begin(2)

	_, err := st.Update(1, func(s Session) (Session, error) {
		return s.AddIngredient(Ingredient{FoodID: "food_rice", Title: "Rice"})
	})
	require.NoError(t, err)

	assert.Len(t, st.Get(1).Draft.Ingredients, 1)
	assert.Empty(t, st.Get(2).Draft.Ingredients)
}

func TestStoreConcurrentUpdates(t *testing.T) {
	st := NewStore()
	st.Begin(1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st.Update(1, func(s Session) (Session, error) {
				return s.AddIngredient(Ingredient{
					FoodID: fmt.Sprintf("food_%d", i),
					Title:  fmt.Sprintf("Ingredient %d", i),
				})
			})
		}(i)
	}
	wg.Wait()

	assert.Len(t, st.Get(1).Draft.Ingredients, 50)
}
