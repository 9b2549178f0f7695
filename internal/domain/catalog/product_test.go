package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProduct(t *testing.T) {
	t.Run("derives base prefix", func(t *testing.T) {
		p, err := NewProduct("  Gold Hoop Earrings ")
		require.NoError(t, err)
		assert.Equal(t, "Gold Hoop Earrings", p.Name)
		assert.Equal(t, "GHE", p.BasePrefix)
		assert.Equal(t, ProductStatusActive, p.Status)
		assert.False(t, p.IsArchived())
	})

	t.Run("publishes ProductCreated event", func(t *testing.T) {
		p, err := NewProduct("Gold Hoop Earrings")
		require.NoError(t, err)
		events := p.GetDomainEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventTypeProductCreated, events[0].EventType())
	})

	t.Run("fails with empty name", func(t *testing.T) {
		_, err := NewProduct("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "name cannot be empty")
	})
}

func TestProduct_Rename(t *testing.T) {
	p, err := NewProduct("Gold Hoop Earrings")
	require.NoError(t, err)

	require.NoError(t, p.Rename("Silver Hoop Earrings"))
	assert.Equal(t, "Silver Hoop Earrings", p.Name)
	assert.Equal(t, "GHE", p.BasePrefix, "the prefix outlives the name")
	assert.Equal(t, "GHE", p.SKUPrefix())

	assert.Error(t, p.Rename("  "))
	assert.Equal(t, "Silver Hoop Earrings", p.Name)

	legacy := &Product{Name: "Pearl Drop"}
	assert.Equal(t, "PD", legacy.SKUPrefix())
}

func TestProduct_Lifecycle(t *testing.T) {
	p, err := NewProduct("Gold Hoop Earrings")
	require.NoError(t, err)

	require.NoError(t, p.Deactivate())
	assert.Error(t, p.Deactivate())
	require.NoError(t, p.Activate())
	require.NoError(t, p.Discontinue())
	assert.True(t, p.IsDiscontinued())
	assert.Error(t, p.Activate())
	assert.Error(t, p.Deactivate())
}

func TestProduct_InCategory(t *testing.T) {
	p, err := NewProduct("Gold Hoop Earrings")
	require.NoError(t, err)
	cat, sub := uuid.New(), uuid.New()
	assert.False(t, p.InCategory(cat, sub))
	p.SetCategory(&cat, &sub)
	assert.True(t, p.InCategory(cat, sub))
}

func TestNormalizeCategoryName(t *testing.T) {
	assert.Equal(t, DefaultCategoryName, NormalizeCategoryName("   ", DefaultCategoryName))
	assert.Equal(t, "Fine Jewelry", NormalizeCategoryName(" Fine   Jewelry ", DefaultCategoryName))

	c, err := NewCategory("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCategoryName, c.Name)

	_, err = NewSubCategory(uuid.Nil, "x")
	assert.Error(t, err)
}
