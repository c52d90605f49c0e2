package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/predefine/adapters/memory"
	"github.com/artpar/predefine/config"
	"github.com/artpar/predefine/core/locale"
	"github.com/artpar/predefine/core/schema"
	"github.com/artpar/predefine/domain/predefine"
)

func newStore(t *testing.T) *memory.PredefineStore {
	t.Helper()
	desc, err := schema.NewBuilder(&config.Config{
		Locale:    config.LocaleConfig{Default: "en", Supported: []string{"en", "sw"}},
		Predefine: config.PredefineConfig{Namespaces: []string{"Unit"}},
	}).Build()
	require.NoError(t, err)
	return memory.NewPredefineStore(desc)
}

func unit(id, code, name string, weight float64) predefine.Document {
	return predefine.Document{
		ID:        id,
		Namespace: "Unit",
		Bucket:    "units",
		Code:      code,
		Name:      locale.Value{"en": name, "sw": name},
		Weight:    weight,
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, int(weight), 0, time.UTC),
	}
}

func TestPredefineStore_UniqueIndex(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, unit("u1", "kg", "Kilogram", 0)))
	assert.ErrorIs(t, s.Create(ctx, unit("u2", "kg", "Kilogram", 0)), predefine.ErrDuplicate)
	assert.ErrorIs(t, s.Create(ctx, unit("u1", "g", "Gram", 0)), predefine.ErrDuplicate)
	assert.ErrorIs(t, s.Create(ctx, unit("u3", "kg", "Kilo", 0)), predefine.ErrDuplicate)
	require.NoError(t, s.Create(ctx, unit("u3", "g", "Gram", 0)))

	renamed := unit("u3", "kg", "Kilo", 0)
	assert.ErrorIs(t, s.Update(ctx, renamed), predefine.ErrDuplicate)

	require.NoError(t, s.SoftDelete(ctx, "u1", time.Now()))
	require.NoError(t, s.Create(ctx, unit("u4", "kg", "Kilo", 0)))
}

func TestPredefineStore_ListSkipPastEnd(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, unit("u1", "kg", "Kilogram", 0)))

	for _, skip := range []int{-5, 1, 100} {
		page, err := s.List(ctx, predefine.Query{Limit: 10, Skip: skip})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Total)
		if skip < 0 {
			assert.Len(t, page.Data, 1)
		} else {
			assert.Empty(t, page.Data)
		}
	}
}

func TestPredefineStore_ListAndDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, unit("u1", "kg", "Kilogram", 3)))
	require.NoError(t, s.Create(ctx, unit("u2", "g", "Gram", 1)))
	require.NoError(t, s.Create(ctx, unit("u3", "t", "Tonne", 2)))

	q, err := predefine.Query{Limit: 2}.Normalize()
	require.NoError(t, err)
	page, err := s.List(ctx, q)
	require.NoError(t, err)

	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "u2", page.Data[0].ID)
	assert.Equal(t, "u3", page.Data[1].ID)
	assert.Equal(t, 3, page.LastModified.Second())

	q, err = predefine.Query{Q: "TON", Sort: "-weight"}.Normalize()
	require.NoError(t, err)
	page, err = s.List(ctx, q)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "u3", page.Data[0].ID)

	require.NoError(t, s.Delete(ctx, "u3"))
	assert.ErrorIs(t, s.Delete(ctx, "u3"), predefine.ErrNotFound)

	_, err = s.Get(ctx, "u3")
	assert.ErrorIs(t, err, predefine.ErrNotFound)

	got, err := s.GetMany(ctx, []string{"u1", "u3"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
