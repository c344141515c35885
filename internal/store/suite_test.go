package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the Store contract against any backend.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("EnsureProfile creates empty profile once", func(t *testing.T) {
		s := newStore(t)

		p, created, err := s.EnsureProfile(ctx, "  New@Example.com ", base)
		require.NoError(t, err)
		assert.True(t, created, "Expected first call to create the profile")
		assert.Equal(t, "new@example.com", p.Email)
		assert.Empty(t, p.Name)
		assert.Empty(t, p.Preferences)
		assert.Empty(t, p.Timeline)
		assert.Empty(t, p.Concerns)
		assert.Empty(t, p.Notes)
		assert.True(t, base.Equal(p.UpdatedAt), "Expected updated_at %v, got %v", base, p.UpdatedAt)

		again, created, err := s.EnsureProfile(ctx, "new@example.com", base.Add(time.Hour))
		require.NoError(t, err)
		assert.False(t, created, "Expected second call to find the existing profile")
		assert.Equal(t, p.ID, again.ID)
	})

	t.Run("EnsureProfile converges under concurrency", func(t *testing.T) {
		s := newStore(t)

		const workers = 8
		ids := make([]int64, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p, _, err := s.EnsureProfile(ctx, "race@example.com", base)
				if assert.NoError(t, err) {
					ids[i] = p.ID
				}
			}(i)
		}
		wg.Wait()

		for _, id := range ids {
			assert.Equal(t, ids[0], id, "Expected every caller to see the same profile row")
		}
	})

	t.Run("GetProfileByEmail not found", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetProfileByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.GetProfile(ctx, 424242)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpdateProfile keeps notes and never rewinds updated_at", func(t *testing.T) {
		s := newStore(t)

		p, _, err := s.EnsureProfile(ctx, "a@x.com", base)
		require.NoError(t, err)
		require.NoError(t, s.UpdateNotes(ctx, "a@x.com", "Follow up next week", base.Add(time.Minute)))

		p.Name = "James"
		p.Preferences = "2BR"
		p.Timeline = "June"
		p.Concerns = "price"
		p.Notes = "should be ignored"
		p.UpdatedAt = base.Add(2 * time.Minute)
		require.NoError(t, s.UpdateProfile(ctx, p))

		got, err := s.GetProfile(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "James", got.Name)
		assert.Equal(t, "2BR", got.Preferences)
		assert.Equal(t, "June", got.Timeline)
		assert.Equal(t, "price", got.Concerns)
		assert.Equal(t, "Follow up next week", got.Notes)
		assert.True(t, base.Add(2*time.Minute).Equal(got.UpdatedAt))

		require.NoError(t, s.TouchProfile(ctx, p.ID, base))
		got, err = s.GetProfile(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, base.Add(2*time.Minute).Equal(got.UpdatedAt), "Expected updated_at not to move backwards")

		require.NoError(t, s.TouchProfile(ctx, p.ID, base.Add(time.Hour)))
		got, err = s.GetProfile(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, base.Add(time.Hour).Equal(got.UpdatedAt))
	})

	t.Run("UpdateNotes unknown email", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateNotes(ctx, "ghost@example.com", "hi", base)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Messages are listed in thread order", func(t *testing.T) {
		s := newStore(t)

		p, _, err := s.EnsureProfile(ctx, "order@example.com", base)
		require.NoError(t, err)

		_, err = s.InsertMessage(ctx, p.ID, "second", base.Add(2*time.Minute))
		require.NoError(t, err)
		_, err = s.InsertMessage(ctx, p.ID, "first", base.Add(time.Minute))
		require.NoError(t, err)
		_, err = s.InsertMessage(ctx, p.ID, "third", base.Add(2*time.Minute))
		require.NoError(t, err)

		msgs, err := s.ListMessages(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, "first", msgs[0].Content)
		assert.Equal(t, "second", msgs[1].Content)
		assert.Equal(t, "third", msgs[2].Content)
		assert.Equal(t, p.ID, msgs[0].ProfileID)
	})

	t.Run("DeleteMessage and ReplaceMessage", func(t *testing.T) {
		s := newStore(t)

		p, _, err := s.EnsureProfile(ctx, "replace@example.com", base)
		require.NoError(t, err)

		oldID, err := s.InsertMessage(ctx, p.ID, "Hi", base)
		require.NoError(t, err)

		newID, err := s.ReplaceMessage(ctx, oldID, p.ID, "Re: Hi", base.Add(time.Minute))
		require.NoError(t, err)
		assert.NotEqual(t, oldID, newID)

		msgs, err := s.ListMessages(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "Re: Hi", msgs[0].Content)
		assert.Equal(t, newID, msgs[0].ID)

		_, err = s.ReplaceMessage(ctx, oldID, p.ID, "again", base.Add(2*time.Minute))
		assert.ErrorIs(t, err, ErrNotFound, "Expected replacing a missing message to fail")

		msgs, err = s.ListMessages(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, msgs, 1, "Expected failed replacement to leave history untouched")

		require.NoError(t, s.DeleteMessage(ctx, newID))
		assert.ErrorIs(t, s.DeleteMessage(ctx, newID), ErrNotFound)

		msgs, err = s.ListMessages(ctx, p.ID)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}
