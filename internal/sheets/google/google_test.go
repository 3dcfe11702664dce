package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goption "google.golang.org/api/option"

	"finboard/internal/core"
)

func TestNew_RequiresSpreadsheetAndSheet(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"no spreadsheet", Config{SheetName: "Ledger", CredentialsJSON: "{}"}, "missing spreadsheet id"},
		{"no sheet", Config{SpreadsheetID: "id", CredentialsJSON: "{}"}, "missing sheet name"},
		{"no credentials", Config{SpreadsheetID: "id", SheetName: "Ledger"}, "missing service account credentials"},
		{"unreadable file", Config{SpreadsheetID: "id", SheetName: "Ledger", CredentialsFile: "/nonexistent/sa.json"}, "read service account file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("New() error = %v, want %q", err, tt.want)
			}
		})
	}
}

type appendCall struct {
	path   string
	query  map[string]string
	values [][]any
}

func fakeSheets(t *testing.T, status int, calls *[]appendCall) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, ":append") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			Values [][]any `json:"values"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		*calls = append(*calls, appendCall{
			path: r.URL.Path,
			query: map[string]string{
				"valueInputOption": r.URL.Query().Get("valueInputOption"),
				"insertDataOption": r.URL.Query().Get("insertDataOption"),
			},
			values: body.Values,
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"code":400,"message":"bad range"}}`))
			return
		}
		w.Write([]byte(`{"spreadsheetId":"sheet-id","updates":{"updatedRange":"Ledger!A5:H5","updatedRows":1}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(context.Background(),
		Config{SpreadsheetID: "sheet-id", SheetName: "Ledger", Location: time.UTC},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func sample() core.Transaction {
	return core.Transaction{
		ID:          "tx-1",
		Amount:      core.Cents(50000),
		Description: "Salary",
		Type:        core.TransactionIncome,
		Date:        time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		UserID:      "user-1",
		Category:    &core.Category{Name: "Income"},
		Account:     &core.Account{Name: "Checking"},
	}
}

func TestAppendTransaction(t *testing.T) {
	var calls []appendCall
	c := newTestClient(t, fakeSheets(t, http.StatusOK, &calls))

	ref, err := c.AppendTransaction(context.Background(), sample())
	if err != nil {
		t.Fatalf("AppendTransaction: %v", err)
	}
	if ref != "Ledger!A5:H5" {
		t.Errorf("ref = %q", ref)
	}
	if len(calls) != 1 {
		t.Fatalf("got %d calls", len(calls))
	}

	call := calls[0]
	if !strings.Contains(call.path, "/spreadsheets/sheet-id/values/Ledger!A:H") {
		t.Errorf("path = %q", call.path)
	}
	if call.query["valueInputOption"] != "USER_ENTERED" || call.query["insertDataOption"] != "INSERT_ROWS" {
		t.Errorf("query = %v", call.query)
	}
	if len(call.values) != 1 || len(call.values[0]) != 8 {
		t.Fatalf("values = %v", call.values)
	}
	if call.values[0][0] != "2024-03-01" || call.values[0][2] != "500.00" || call.values[0][6] != "tx-1" {
		t.Errorf("row = %v", call.values[0])
	}
}

func TestAppendTransaction_Errors(t *testing.T) {
	var calls []appendCall
	c := newTestClient(t, fakeSheets(t, http.StatusBadRequest, &calls))

	if _, err := c.AppendTransaction(context.Background(), core.Transaction{}); err == nil {
		t.Fatal("expected error for transaction without id")
	}
	if len(calls) != 0 {
		t.Fatalf("transaction without id reached the API")
	}

	_, err := c.AppendTransaction(context.Background(), sample())
	if err == nil || !strings.Contains(err.Error(), "append to sheet Ledger") {
		t.Fatalf("AppendTransaction error = %v", err)
	}
}
