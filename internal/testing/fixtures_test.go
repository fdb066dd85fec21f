package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalSeries_Deterministic(t *testing.T) {
	a := NormalSeries("X", 50, 0.01, 7)
	b := NormalSeries("X", 50, 0.01, 7)

	assert.Equal(t, a.Returns(), b.Returns())
	assert.Equal(t, 50, a.Len())
	assert.True(t, a.Observations[0].Timestamp.Equal(FixtureStart))
}

func TestNewTestDB(t *testing.T) {
	db := NewTestDB(t, "cache")

	var count int
	err := db.Conn().QueryRow("SELECT COUNT(*) FROM fit_cache").Scan(&count)
	assert.NoError(t, err)
	assert.Zero(t, count)
}
