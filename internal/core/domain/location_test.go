package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocation(t *testing.T) {
	loc, err := ParseLocation("minio://recipes/alice/meat_dish/braised pork.md")

	require.NoError(t, err)
	assert.Equal(t, "minio", loc.Scheme)
	assert.Equal(t, "recipes", loc.Bucket)
	assert.Equal(t, "alice/meat_dish/braised pork.md", loc.Object)
	assert.Equal(t, "minio://recipes/alice/meat_dish/braised pork.md", loc.String())
}

func TestParseLocation_Malformed(t *testing.T) {
	for _, s := range []string{"", "recipes/alice/a.md", "://recipes/a.md", "minio://recipes", "minio:///a.md", "minio://recipes/"} {
		_, err := ParseLocation(s)
		assert.True(t, errors.Is(err, ErrInvalidInput), s)
	}
}

func TestOwnerOf(t *testing.T) {
	owner, ok := OwnerOf("alice/soup/tomato.md")
	assert.True(t, ok)
	assert.Equal(t, "alice", owner)

	_, ok = OwnerOf("tomato.md")
	assert.False(t, ok)

	_, ok = OwnerOf("/tomato.md")
	assert.False(t, ok)
}

func TestDishNameOf(t *testing.T) {
	assert.Equal(t, "tomato egg", DishNameOf("alice/soup/tomato egg.md"))
	assert.Equal(t, "plain", DishNameOf("plain"))
}
