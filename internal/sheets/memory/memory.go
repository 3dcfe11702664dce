// Package memory is a LedgerWriter for local runs without a spreadsheet.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/sheets"
)

// Ledger keeps rows in memory and logs each one. Appending a transaction
// that is already present returns its existing reference.
type Ledger struct {
	mu    sync.Mutex
	loc   *time.Location
	rows  [][]any
	index map[string]int
}

var _ sheets.LedgerWriter = (*Ledger)(nil)

func New(loc *time.Location) *Ledger {
	return &Ledger{loc: loc, index: make(map[string]int)}
}

func (l *Ledger) AppendTransaction(ctx context.Context, t core.Transaction) (string, error) {
	if t.ID == "" {
		return "", fmt.Errorf("append transaction: missing id")
	}

	l.mu.Lock()
	if n, ok := l.index[t.ID]; ok {
		l.mu.Unlock()
		return ref(n), nil
	}
	row := sheets.Row(t, l.loc)
	l.rows = append(l.rows, row)
	n := len(l.rows)
	l.index[t.ID] = n
	l.mu.Unlock()

	log.FromContext(ctx).InfoContext(ctx, "Ledger row recorded",
		log.FieldComponent, log.ComponentSheets,
		log.FieldTransactionID, t.ID,
		"row", row)
	return ref(n), nil
}

// Rows returns a copy of the recorded rows in append order.
func (l *Ledger) Rows() [][]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]any, len(l.rows))
	copy(out, l.rows)
	return out
}

func ref(n int) string { return fmt.Sprintf("mem:%d", n) }
