package backend

import (
	"context"
	"fmt"

	goption "google.golang.org/api/option"

	"finboard/internal/log"
	gsheet "finboard/internal/sheets/google"
	"finboard/internal/sheets/memory"
)

// DefaultFactory builds the real implementations. SheetsOptions, when set,
// replace the credential options passed to the Sheets client.
type DefaultFactory struct {
	SheetsOptions []goption.ClientOption
}

func NewFactory() *DefaultFactory {
	return &DefaultFactory{}
}

func (f *DefaultFactory) CreateLedger(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := log.FromContext(ctx).WithComponent(log.ComponentSheets)

	switch cfg.Type {
	case SheetsLedger:
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
			Location:        cfg.Location,
		}, f.SheetsOptions...)
		if err != nil {
			return nil, fmt.Errorf("initialize Google Sheets ledger: %w", err)
		}
		return &Result{Ledger: client, Type: SheetsLedger}, nil
	default:
		logger.InfoContext(ctx, "Google Sheets disabled - ledger rows are only logged")
		return &Result{Ledger: memory.New(cfg.Location), Type: MemoryLedger}, nil
	}
}
