// Package dictionary lists the suggested categories offered to new users.
package dictionary

import "github.com/tinoosan/fintrack/internal/ledger"

type CategoryDef struct {
	Code  string        `json:"code"`
	Label string        `json:"label"`
	Type  ledger.TxType `json:"type"`
	// Default categories are created for every new user by EnsureDefaults.
	Default bool `json:"default"`
}

var curated = map[ledger.TxType][]CategoryDef{
	ledger.TxIncome: {
		{Code: "salary", Label: "Salary", Default: true},
		{Code: "bonus", Label: "Bonus"},
		{Code: "interest", Label: "Interest"},
		{Code: "refund", Label: "Refund"},
		{Code: "gift", Label: "Gift"},
		{Code: "other_income", Label: "Other Income", Default: true},
	},
	ledger.TxExpense: {
		{Code: "groceries", Label: "Groceries", Default: true},
		{Code: "eating_out", Label: "Eating Out", Default: true},
		{Code: "rent", Label: "Rent"},
		{Code: "utilities", Label: "Utilities", Default: true},
		{Code: "transport", Label: "Transport", Default: true},
		{Code: "shopping", Label: "Shopping"},
		{Code: "entertainment", Label: "Entertainment"},
		{Code: "health", Label: "Health"},
		{Code: "education", Label: "Education"},
		{Code: "general", Label: "General", Default: true},
	},
}

var typeOrder = []ledger.TxType{ledger.TxIncome, ledger.TxExpense}

// CategoriesFor returns suggestions for t, or for every type when t is nil.
// Output order is stable: income before expense, then curated order.
func CategoriesFor(t *ledger.TxType) []CategoryDef {
	out := make([]CategoryDef, 0)
	for _, typ := range typeOrder {
		if t != nil && *t != typ {
			continue
		}
		for _, d := range curated[typ] {
			d.Type = typ
			out = append(out, d)
		}
	}
	return out
}

// Defaults returns the categories every new user starts with.
func Defaults() []CategoryDef {
	out := make([]CategoryDef, 0)
	for _, d := range CategoriesFor(nil) {
		if d.Default {
			out = append(out, d)
		}
	}
	return out
}
