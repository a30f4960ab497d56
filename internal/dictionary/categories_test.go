package dictionary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tinoosan/fintrack/internal/ledger"
	"github.com/tinoosan/fintrack/internal/slug"
)

func TestCategoriesForType(t *testing.T) {
	income := ledger.TxIncome
	for _, d := range CategoriesFor(&income) {
		assert.Equal(t, ledger.TxIncome, d.Type, d.Code)
	}
	all := CategoriesFor(nil)
	assert.Greater(t, len(all), len(CategoriesFor(&income)))
	assert.Equal(t, ledger.TxIncome, all[0].Type, "income listed first")
}

func TestCodesAreSlugsOfLabels(t *testing.T) {
	seen := map[string]bool{}
	for _, d := range CategoriesFor(nil) {
		assert.True(t, slug.IsSlug(d.Code), d.Code)
		assert.Equal(t, d.Code, slug.Slugify(d.Label))
		assert.False(t, seen[d.Code], "duplicate code %s", d.Code)
		seen[d.Code] = true
	}
}

func TestDefaultsCoverBothTypes(t *testing.T) {
	types := map[ledger.TxType]int{}
	for _, d := range Defaults() {
		assert.True(t, d.Default)
		types[d.Type]++
	}
	assert.NotZero(t, types[ledger.TxIncome])
	assert.NotZero(t, types[ledger.TxExpense])
}
