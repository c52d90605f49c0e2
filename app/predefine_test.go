package app_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/predefine/adapters/clock"
	"github.com/artpar/predefine/adapters/idgen"
	"github.com/artpar/predefine/adapters/memory"
	"github.com/artpar/predefine/adapters/metrics"
	"github.com/artpar/predefine/app"
	"github.com/artpar/predefine/config"
	"github.com/artpar/predefine/core/events"
	"github.com/artpar/predefine/core/locale"
	"github.com/artpar/predefine/core/schema"
	"github.com/artpar/predefine/domain/predefine"
)

var start = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *app.PredefineService
	clock  *clock.Fake
	events []events.Event
}

func setup(t *testing.T) *fixture {
	t.Helper()

	desc, err := schema.NewBuilder(&config.Config{
		Locale: config.LocaleConfig{Default: "en", Supported: []string{"en", "sw"}},
		Predefine: config.PredefineConfig{
			Namespaces: []string{"Currency", "Unit"},
			Relations:  map[string]map[string]any{"owner": {"ref": "Party"}},
		},
	}).Build()
	require.NoError(t, err)

	f := &fixture{clock: clock.NewFake(start)}
	bus := events.NewBus(zerolog.Nop())
	bus.Subscribe("predefine.*", func(_ context.Context, e events.Event) error {
		f.events = append(f.events, e)
		return nil
	})

	f.svc = app.NewPredefineService(app.PredefineDeps{
		Store:   memory.NewPredefineStore(desc),
		Schema:  desc,
		IDs:     idgen.NewSequential("p"),
		Clock:   f.clock,
		Bus:     bus,
		Metrics: metrics.New(),
		Logger:  zerolog.Nop(),
	})
	return f
}

func (f *fixture) post(t *testing.T, doc predefine.Document) predefine.Document {
	t.Helper()
	created, err := f.svc.Post(context.Background(), doc)
	require.NoError(t, err)
	return created
}

func TestPost(t *testing.T) {
	f := setup(t)

	doc := f.post(t, predefine.Document{Code: "TMT", Name: locale.Value{"en": "Tomato"}})

	assert.Equal(t, "p1", doc.ID)
	assert.Equal(t, "Setting", doc.Namespace)
	assert.Equal(t, "settings", doc.Bucket)
	assert.Equal(t, locale.Value{"en": "Tomato", "sw": "Tomato"}, doc.Name)
	assert.Equal(t, start, doc.CreatedAt)
	assert.Equal(t, start, doc.UpdatedAt)

	require.Len(t, f.events, 1)
	assert.Equal(t, events.Created, f.events[0].Name)
	assert.Equal(t, "p1", f.events[0].ID)
}

func TestPost_Duplicate(t *testing.T) {
	f := setup(t)
	doc := predefine.Document{Namespace: "Unit", Code: "kg", Name: locale.Value{"en": "Kilogram"}}
	f.post(t, doc)

	_, err := f.svc.Post(context.Background(), doc)
	assert.ErrorIs(t, err, predefine.ErrDuplicate)
	assert.Len(t, f.events, 1)
}

func TestPost_SameCodeOtherName(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.post(t, predefine.Document{Namespace: "Currency", Code: "USD", Name: locale.Value{"en": "US Dollar"}})

	_, err := f.svc.Post(ctx, predefine.Document{Namespace: "Currency", Code: "USD", Name: locale.Value{"en": "Dollar"}})
	assert.ErrorIs(t, err, predefine.ErrDuplicate)

	_, err = f.svc.Post(ctx, predefine.Document{Namespace: "Unit", Code: "USD", Name: locale.Value{"en": "Dollar"}})
	assert.NoError(t, err)
}

func TestPost_Validation(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Post(context.Background(), predefine.Document{Namespace: "Color"})
	assert.True(t, predefine.IsValidation(err))
}

func TestPost_RelationTargetsMustExist(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Post(ctx, predefine.Document{
		Namespace: "Currency",
		Code:      "TZS",
		Name:      locale.Value{"en": "Shilling"},
		Relations: map[string]predefine.Ref{"unit": {ID: "missing"}},
	})
	var verr *predefine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "relations.unit", verr.Fields[0].Field)

	// relations to other models are not checked
	kg := f.post(t, predefine.Document{Namespace: "Unit", Code: "kg", Name: locale.Value{"en": "Kilogram"}})
	doc, err := f.svc.Post(ctx, predefine.Document{
		Namespace: "Currency",
		Code:      "TZS",
		Name:      locale.Value{"en": "Shilling"},
		Relations: map[string]predefine.Ref{"unit": {ID: kg.ID}, "owner": {ID: "party-1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, kg.ID, doc.Relations["unit"].ID)
}

func TestGetByID(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	kg := f.post(t, predefine.Document{Namespace: "Unit", Code: "kg", Name: locale.Value{"en": "Kilogram"}, Color: "red", Icon: "weight"})
	tzs := f.post(t, predefine.Document{
		Namespace: "Currency",
		Code:      "TZS",
		Name:      locale.Value{"en": "Shilling"},
		Relations: map[string]predefine.Ref{"unit": {ID: kg.ID}, "owner": {ID: "party-1"}},
	})

	got, err := f.svc.GetByID(ctx, app.GetOptions{ID: tzs.ID})
	require.NoError(t, err)
	assert.Nil(t, got.Relations["unit"].Doc)

	got, err = f.svc.GetByID(ctx, app.GetOptions{ID: tzs.ID, Populate: true})
	require.NoError(t, err)
	unit := got.Relations["unit"].Doc
	require.NotNil(t, unit)
	assert.Equal(t, "kg", unit.Code)
	assert.Equal(t, "red", unit.Color)
	assert.Empty(t, unit.Icon, "populated documents only carry the populate select")
	assert.Empty(t, unit.Relations)
	assert.Nil(t, got.Relations["owner"].Doc)

	got, err = f.svc.GetByID(ctx, app.GetOptions{ID: tzs.ID, Select: []string{"code"}})
	require.NoError(t, err)
	assert.Equal(t, predefine.Document{ID: tzs.ID, Code: "TZS"}, got)

	_, err = f.svc.GetByID(ctx, app.GetOptions{ID: tzs.ID, Bucket: "units"})
	assert.ErrorIs(t, err, predefine.ErrNotFound)

	_, err = f.svc.GetByID(ctx, app.GetOptions{ID: tzs.ID, Bucket: "colors"})
	assert.ErrorIs(t, err, predefine.ErrNotFound)

	_, err = f.svc.GetByID(ctx, app.GetOptions{ID: "missing"})
	assert.ErrorIs(t, err, predefine.ErrNotFound)
}

func TestGet(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.post(t, predefine.Document{Namespace: "Unit", Code: "kg", Name: locale.Value{"en": "Kilogram"}, Weight: 2})
	f.post(t, predefine.Document{Namespace: "Unit", Code: "g", Name: locale.Value{"en": "Gram"}, Weight: 1})
	f.post(t, predefine.Document{Namespace: "Currency", Code: "TZS", Name: locale.Value{"en": "Shilling"}})

	page, err := f.svc.Get(ctx, predefine.Query{Bucket: "units"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, "g", page.Data[0].Code)
	assert.Equal(t, 10, page.Limit)
	assert.Equal(t, 1, page.Pages)

	page, err = f.svc.Get(ctx, predefine.Query{Select: []string{"code"}})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Nil(t, page.Data[0].Name)

	_, err = f.svc.Get(ctx, predefine.Query{Bucket: "colors"})
	assert.ErrorIs(t, err, predefine.ErrNotFound)

	_, err = f.svc.Get(ctx, predefine.Query{Sort: "password"})
	assert.True(t, predefine.IsValidation(err))

	_, err = f.svc.Get(ctx, predefine.Query{Page: math.MaxInt, Limit: 10})
	var verr *predefine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "page", verr.Fields[0].Field)
}

func TestPatch(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	doc := f.post(t, predefine.Document{
		Namespace:   "Unit",
		Code:        "kg",
		Name:        locale.Value{"en": "Kilogram"},
		Description: locale.Value{"en": "Mass"},
	})
	f.clock.Advance(time.Minute)

	updated, err := f.svc.Patch(ctx, app.Target{ID: doc.ID}, predefine.Changes{
		"name.sw": "Kilo",
		"weight":  4,
	})
	require.NoError(t, err)

	assert.Equal(t, locale.Value{"en": "Kilogram", "sw": "Kilo"}, updated.Name)
	assert.Equal(t, locale.Value{"en": "Mass", "sw": "Mass"}, updated.Description)
	assert.Equal(t, float64(4), updated.Weight)
	assert.Equal(t, start, updated.CreatedAt)
	assert.Equal(t, start.Add(time.Minute), updated.UpdatedAt)

	got, err := f.svc.GetByID(ctx, app.GetOptions{ID: doc.ID})
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	assert.Equal(t, events.Updated, f.events[len(f.events)-1].Name)
}

func TestPatch_RenameUpdatesDerivedAbbreviation(t *testing.T) {
	f := setup(t)

	doc := f.post(t, predefine.Document{Namespace: "Unit", Code: "kg", Name: locale.Value{"en": "Kilogram"}})
	require.Equal(t, locale.Value{"en": "K", "sw": "K"}, doc.Abbreviation)

	updated, err := f.svc.Patch(context.Background(), app.Target{ID: doc.ID}, predefine.Changes{"name.en": "Kilo Gram"})
	require.NoError(t, err)
	assert.Equal(t, locale.Value{"en": "KG", "sw": "K"}, updated.Abbreviation)
}

func TestPatch_MovesNamespace(t *testing.T) {
	f := setup(t)

	doc := f.post(t, predefine.Document{Namespace: "Unit", Code: "kg", Name: locale.Value{"en": "Kilogram"}})

	updated, err := f.svc.Patch(context.Background(), app.Target{ID: doc.ID}, predefine.Changes{"namespace": "Currency"})
	require.NoError(t, err)
	assert.Equal(t, "currencies", updated.Bucket)
}

func TestPatch_Errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Patch(ctx, app.Target{ID: "missing"}, predefine.Changes{"code": "x"})
	assert.ErrorIs(t, err, predefine.ErrNotFound)

	kg := f.post(t, predefine.Document{Namespace: "Unit", Code: "kg", Name: locale.Value{"en": "Kilogram"}})
	f.post(t, predefine.Document{Namespace: "Unit", Code: "g", Name: locale.Value{"en": "Gram"}})

	_, err = f.svc.Patch(ctx, app.Target{ID: kg.ID, Bucket: "currencies"}, predefine.Changes{"code": "x"})
	assert.ErrorIs(t, err, predefine.ErrNotFound)

	_, err = f.svc.Patch(ctx, app.Target{ID: kg.ID}, predefine.Changes{"code": "g"})
	assert.ErrorIs(t, err, predefine.ErrDuplicate)

	_, err = f.svc.Patch(ctx, app.Target{ID: kg.ID}, predefine.Changes{"code": ""})
	assert.True(t, predefine.IsValidation(err))
}

func TestPut_KeepsUnsentFields(t *testing.T) {
	f := setup(t)

	doc := f.post(t, predefine.Document{Namespace: "Unit", Code: "kg", Name: locale.Value{"en": "Kilogram"}})

	updated, err := f.svc.Put(context.Background(), app.Target{ID: doc.ID, Bucket: "units"}, predefine.Changes{
		"description": map[string]any{"en": "Mass"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Kilogram", updated.Name["en"])
	assert.Equal(t, "Mass", updated.Description["sw"])
}

func TestDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	doc := f.post(t, predefine.Document{Namespace: "Unit", Code: "kg", Name: locale.Value{"en": "Kilogram"}})
	f.clock.Advance(time.Hour)

	deleted, err := f.svc.Delete(ctx, app.DeleteOptions{ID: doc.ID})
	require.NoError(t, err)
	require.NotNil(t, deleted.DeletedAt)
	assert.Equal(t, start.Add(time.Hour), *deleted.DeletedAt)

	_, err = f.svc.GetByID(ctx, app.GetOptions{ID: doc.ID})
	assert.ErrorIs(t, err, predefine.ErrNotFound)

	_, err = f.svc.Delete(ctx, app.DeleteOptions{ID: doc.ID})
	assert.ErrorIs(t, err, predefine.ErrNotFound)

	// the soft-deleted document no longer holds its unique key
	again := f.post(t, predefine.Document{Namespace: "Unit", Code: "kg", Name: locale.Value{"en": "Kilogram"}})
	_, err = f.svc.Delete(ctx, app.DeleteOptions{ID: again.ID, Hard: true})
	require.NoError(t, err)
	assert.Equal(t, events.Deleted, f.events[len(f.events)-1].Name)
}
