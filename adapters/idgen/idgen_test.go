package idgen_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/artpar/predefine/adapters/idgen"
	"github.com/artpar/predefine/config"
)

func TestUUID_New(t *testing.T) {
	id := idgen.UUID{}.New()

	// UUID v4 format: 8-4-4-4-12 hex chars
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`), id)
	assert.NotEqual(t, id, idgen.UUID{}.New())
}

func TestObjectID_New(t *testing.T) {
	id := idgen.ObjectID{}.New()

	assert.Len(t, id, 24)
	_, err := primitive.ObjectIDFromHex(id)
	assert.NoError(t, err)
}

func TestSequential(t *testing.T) {
	g := idgen.NewSequential("p")

	assert.Equal(t, "p1", g.New())
	assert.Equal(t, "p2", g.New())
}

func TestForFormat(t *testing.T) {
	g, err := idgen.ForFormat(config.IDFormatObjectID)
	require.NoError(t, err)
	assert.IsType(t, idgen.ObjectID{}, g)

	g, err = idgen.ForFormat("")
	require.NoError(t, err)
	assert.IsType(t, idgen.UUID{}, g)

	_, err = idgen.ForFormat("serial")
	assert.Error(t, err)
}
