package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	c := New("Mega Summer Sale!")

	assert.Equal(t, StatusDraft, c.Status)
	assert.Equal(t, "mega-summer-sale", c.Slug)
	assert.Equal(t, DefaultPriority, c.Priority)
	assert.Equal(t, SelectionAllProducts, c.SelectionType)
	assert.Equal(t, "and", c.ConditionsLogic)
	assert.Equal(t, "UTC", c.Timezone)
	assert.NotEmpty(t, c.UUID)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Summer Sale":          "summer-sale",
		"  50% Off -- Today ":  "50-off-today",
		"Déjà Vu Deal":         "d-j-vu-deal",
		"UPPER lower 123":      "upper-lower-123",
		"---":                  "",
		"":                     "",
		"trailing punctuation!": "trailing-punctuation",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), "input %q", in)
	}
}

func TestSetPriorityClamps(t *testing.T) {
	c := New("P")

	c.SetPriority(0)
	assert.Equal(t, MinPriority, c.Priority)

	c.SetPriority(99)
	assert.Equal(t, MaxPriority, c.Priority)

	c.SetPriority(7)
	assert.Equal(t, 7, c.Priority)
}

func TestSetScheduleNormalizesToUTC(t *testing.T) {
	c := New("S")
	nairobi, err := time.LoadLocation("Africa/Nairobi")
	require.NoError(t, err)

	starts := time.Date(2025, 6, 1, 12, 0, 0, 0, nairobi)
	c.SetSchedule(&starts, nil, "Africa/Nairobi")

	require.True(t, c.StartsAt.Valid)
	assert.Equal(t, time.UTC, c.StartsAt.Time.Location())
	assert.Equal(t, starts.UTC(), c.StartsAt.Time)
	assert.Equal(t, "Africa/Nairobi", c.Timezone)
	assert.False(t, c.EndsAt.Valid)

	c.SetSchedule(nil, nil, "")
	assert.False(t, c.StartsAt.Valid)
	assert.Equal(t, "Africa/Nairobi", c.Timezone, "empty timezone leaves the stored one")
}

func TestSetIDsFilterNonPositive(t *testing.T) {
	c := New("IDs")
	c.SetProductIDs([]int64{5, 0, -3, 9})
	assert.EqualValues(t, []int64{5, 9}, []int64(c.ProductIDs))
}

func TestHasProductTargeting(t *testing.T) {
	c := New("T")
	assert.True(t, c.HasProductTargeting(), "all_products always targets")

	c.SelectionType = SelectionSpecificProducts
	assert.False(t, c.HasProductTargeting())

	c.SetCategoryIDs([]int64{3})
	assert.True(t, c.HasProductTargeting())
}

func TestNeedsRecompilation(t *testing.T) {
	c := New("C")
	assert.False(t, c.NeedsRecompilation(), "static selections never recompile")

	c.SelectionType = SelectionSmartSelection
	assert.True(t, c.NeedsRecompilation(), "uncompiled dynamic selection")

	c.MarkCompiled("smart_selection", time.Now())
	assert.False(t, c.NeedsRecompilation(), "compiled smart selection is fresh")

	c.SelectionType = SelectionRandomProducts
	assert.True(t, c.NeedsRecompilation(), "random selections recompile every time")
}
