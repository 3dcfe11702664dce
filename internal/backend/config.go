package backend

import (
	"errors"
	"fmt"
	"time"

	"finboard/internal/config"
)

// Config holds what any ledger implementation may need.
type Config struct {
	Type LedgerType

	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	Location *time.Location
}

// FromAppConfig picks the Sheets ledger when a spreadsheet is configured
// and the in-memory ledger otherwise.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	t := MemoryLedger
	if appConfig.SheetsEnabled() {
		t = SheetsLedger
	}
	return Config{
		Type:                     t,
		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleSheetName:          appConfig.GoogleSheetName,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		Location:                 appConfig.Location(),
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid ledger type: %s", c.Type)
	}
	if c.Type == SheetsLedger {
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets ledger")
		}
		if c.GoogleSheetName == "" {
			return errors.New("Google Sheet name is required for sheets ledger")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			return errors.New("either GoogleServiceAccountJSON or GoogleServiceAccountFile must be provided for sheets ledger")
		}
	}
	return nil
}

// LedgerTypes returns all valid ledger types.
func LedgerTypes() []LedgerType {
	return []LedgerType{SheetsLedger, MemoryLedger}
}
