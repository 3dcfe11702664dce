// Package backend selects the ledger the export worker writes to.
package backend

import (
	"context"

	"finboard/internal/sheets"
)

// LedgerType names a LedgerWriter implementation.
type LedgerType string

const (
	SheetsLedger LedgerType = "sheets"
	MemoryLedger LedgerType = "memory"
)

func (t LedgerType) IsValid() bool {
	return t == SheetsLedger || t == MemoryLedger
}

func (t LedgerType) String() string { return string(t) }

// Result is a constructed ledger and what it is.
type Result struct {
	Ledger sheets.LedgerWriter
	Type   LedgerType
}

// Factory builds ledgers from Config.
type Factory interface {
	CreateLedger(ctx context.Context, cfg Config) (*Result, error)
}
