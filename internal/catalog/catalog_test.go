package catalog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() *Catalog {
	c := New()
	c.BulkAdd(Seed())
	return c
}

func TestSearchRanksExactNameFirst(t *testing.T) {
	c := seeded()

	got := c.Search("Paracetamol 500mg", 3)
	require.Len(t, got, 3)
	assert.Equal(t, "PARA-500", got[0].SKU)
}

func TestSearchReturnsKCandidates(t *testing.T) {
	c := seeded()

	assert.Len(t, c.Search("Ibuprofen 400mg", 5), 5)
	assert.Len(t, c.Search("anything", 10), c.Len(), "k larger than catalog returns everything")
	assert.Empty(t, c.Search("Ibuprofen", 0))
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	c := seeded()
	got := c.Search("OMEPRAZOLE 20MG", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "OMEP-20", got[0].SKU)
}

func TestAddReplacesExistingSKU(t *testing.T) {
	c := seeded()
	before := c.Len()

	c.Add(Product{SKU: "PARA-500", Description: "Paracetamol 500mg - updated", ATC: "N02BE01", ShelfLifeMonths: 48})
	assert.Equal(t, before, c.Len())

	p, ok := c.Get("PARA-500")
	require.True(t, ok)
	assert.Equal(t, 48, p.ShelfLifeMonths)
}

func TestProductName(t *testing.T) {
	p := Product{Description: "Losartan 50mg - ATC Code: C09CA01 - Antihypertensive"}
	assert.Equal(t, "Losartan 50mg", p.Name())
	assert.Equal(t, "bare", Product{Description: "bare"}.Name())
}

func TestGetMissing(t *testing.T) {
	_, ok := seeded().Get("NOPE-1")
	assert.False(t, ok)
}

func TestConcurrentAddAndSearch(t *testing.T) {
	c := seeded()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Add(Product{SKU: fmt.Sprintf("NEW-%d", i), Description: fmt.Sprintf("Product %d", i)})
			c.Search("Paracetamol", 3)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, len(Seed())+8, c.Len())
}
