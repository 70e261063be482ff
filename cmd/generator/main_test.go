package main

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateProperties(t *testing.T) {
	properties := generateProperties(rand.New(rand.NewSource(42)), 12, 3)
	assert.Len(t, properties, 12)

	owners := map[string]int{}
	for _, p := range properties {
		owners[p.OwnerID]++
		assert.GreaterOrEqual(t, p.MaxGuests, 1)
		assert.LessOrEqual(t, p.MaxGuests, 6)
		assert.Greater(t, p.BasePrice, 0.0)
		assert.NotEmpty(t, p.Name)
	}
	assert.Len(t, owners, 3)
	for _, n := range owners {
		assert.Equal(t, 4, n)
	}
}

func TestGeneratePropertiesIsDeterministic(t *testing.T) {
	a := generateProperties(rand.New(rand.NewSource(7)), 5, 2)
	b := generateProperties(rand.New(rand.NewSource(7)), 5, 2)
	assert.Equal(t, a, b)
}
