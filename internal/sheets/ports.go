// Package sheets exports committed transactions to a spreadsheet ledger.
package sheets

import (
	"context"
	"time"

	"finboard/internal/core"
)

// LedgerWriter appends one transaction as a ledger row.
type LedgerWriter interface {
	AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
}

// Header names the ledger columns in Row order.
var Header = []string{"Date", "Type", "Amount", "Category", "Account", "Description", "Transaction ID", "User ID"}

// Row renders t as ledger cells. The date is the calendar day in loc and
// expenses carry a negative amount so a column sum gives the net flow.
func Row(t core.Transaction, loc *time.Location) []any {
	if loc == nil {
		loc = time.UTC
	}
	account := ""
	if t.Account != nil {
		account = t.Account.Name
	}
	return []any{
		t.Date.In(loc).Format(time.DateOnly),
		string(t.Type),
		t.SignedAmount().String(),
		t.CategoryName(),
		account,
		t.Description,
		t.ID,
		t.UserID,
	}
}
