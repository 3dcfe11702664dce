package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"finboard/internal/core"
	"finboard/internal/services"
)

// UserReader loads user profiles.
type UserReader interface {
	GetUser(ctx context.Context, id string) (core.User, error)
}

type createAccountRequest struct {
	Name    string          `json:"name"`
	Balance json.RawMessage `json:"balance"`
	UserID  string          `json:"userId"`
}

type createCategoryRequest struct {
	Name   string `json:"name"`
	Icon   string `json:"icon"`
	Color  string `json:"color"`
	UserID string `json:"userId"`
}

type createTransactionRequest struct {
	Amount      json.RawMessage `json:"amount"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	CategoryID  string          `json:"categoryId"`
	AccountID   string          `json:"accountId"`
	UserID      string          `json:"userId"`
	Date        string          `json:"date"`
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := userIDParam(r)
	if err != nil {
		writeServiceError(ctx, w, "list_accounts", err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, s.deps.Accounts.List(ctx, userID).Value)
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, msgBadBody)
		return
	}
	balance, present, err := core.ParseJSONAmount(req.Balance)
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.UserID) == "" || !present {
		writeServiceError(ctx, w, "create_account", core.ErrMissingFields)
		return
	}
	if err != nil {
		writeServiceError(ctx, w, "create_account", core.ErrInvalidBalance)
		return
	}

	account, err := s.deps.Accounts.Create(ctx, sanitize(req.Name), balance, req.UserID)
	if err != nil {
		writeServiceError(ctx, w, "create_account", err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, account)
}

// handleListCategories seeds the default set on a user's first visit.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := userIDParam(r)
	if err != nil {
		writeServiceError(ctx, w, "list_categories", err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, s.deps.Categories.EnsureDefaults(ctx, userID).Value)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, msgBadBody)
		return
	}
	category, err := s.deps.Categories.Create(ctx, sanitize(req.Name), req.Icon, req.Color, req.UserID)
	if err != nil {
		writeServiceError(ctx, w, "create_category", err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, category)
}

// handleListTransactions lists all transactions, or the inclusive from/to
// range when either is present; a range needs both bounds. A date-only to
// covers that whole day.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := userIDParam(r)
	if err != nil {
		writeServiceError(ctx, w, "list_transactions", err)
		return
	}

	q := r.URL.Query()
	if q.Get("from") == "" && q.Get("to") == "" {
		writeJSON(ctx, w, http.StatusOK, s.deps.Transactions.List(ctx, userID).Value)
		return
	}
	loc := s.deps.Analytics.Location()
	from, err := core.ParseDate(q.Get("from"), loc)
	if err != nil {
		writeServiceError(ctx, w, "list_transactions", err)
		return
	}
	to, err := core.ParseDateEnd(q.Get("to"), loc)
	if err != nil {
		writeServiceError(ctx, w, "list_transactions", err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, s.deps.Transactions.ListByDateRange(ctx, userID, from, to).Value)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createTransactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(ctx, w, http.StatusBadRequest, msgBadBody)
		return
	}

	amount, present, amountErr := core.ParseJSONAmount(req.Amount)
	if !present ||
		strings.TrimSpace(req.Description) == "" ||
		strings.TrimSpace(req.Type) == "" ||
		strings.TrimSpace(req.CategoryID) == "" ||
		strings.TrimSpace(req.AccountID) == "" ||
		strings.TrimSpace(req.UserID) == "" {
		writeServiceError(ctx, w, "create_transaction", core.ErrMissingFields)
		return
	}
	if amountErr != nil || !amount.IsPositive() {
		writeServiceError(ctx, w, "create_transaction", core.ErrInvalidAmount)
		return
	}
	txType, err := core.ParseTransactionType(req.Type)
	if err != nil {
		writeServiceError(ctx, w, "create_transaction", err)
		return
	}

	in := services.NewTransaction{
		Amount:      amount,
		Description: sanitize(req.Description),
		Type:        txType,
		CategoryID:  req.CategoryID,
		AccountID:   req.AccountID,
		UserID:      req.UserID,
	}
	if strings.TrimSpace(req.Date) != "" {
		if in.Date, err = core.ParseDate(req.Date, s.deps.Analytics.Location()); err != nil {
			writeServiceError(ctx, w, "create_transaction", err)
			return
		}
	}

	created, err := s.deps.Transactions.Create(ctx, in)
	if err != nil {
		writeServiceError(ctx, w, "create_transaction", err)
		return
	}
	writeJSON(ctx, w, http.StatusCreated, created)
}

// handleAnalytics serves the monthly summary (default), the weekly series or
// the monthly trend, each relative to the optional date parameter.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := userIDParam(r)
	if err != nil {
		writeServiceError(ctx, w, "analytics", err)
		return
	}
	ref, err := dateParam(r, "date", s.now(), s.deps.Analytics.Location())
	if err != nil {
		writeServiceError(ctx, w, "analytics", err)
		return
	}

	switch kind := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type"))); kind {
	case "", "monthly":
		writeJSON(ctx, w, http.StatusOK, s.deps.Analytics.Monthly(ctx, userID, ref).Value)
	case "weekly":
		writeJSON(ctx, w, http.StatusOK, s.deps.Analytics.Weekly(ctx, userID, ref).Value)
	case "trends":
		months, err := intParam(r, "months", 0)
		if err != nil {
			writeServiceError(ctx, w, "analytics", err)
			return
		}
		writeJSON(ctx, w, http.StatusOK, s.deps.Analytics.Trends(ctx, userID, ref, months).Value)
	default:
		writeError(ctx, w, http.StatusBadRequest, msgInvalidKind)
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := userIDParam(r)
	if err != nil {
		writeServiceError(ctx, w, "dashboard", err)
		return
	}
	ref, err := dateParam(r, "date", s.now(), s.deps.Analytics.Location())
	if err != nil {
		writeServiceError(ctx, w, "dashboard", err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, s.deps.Dashboard.Build(ctx, userID, ref).Value)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := s.deps.Users.GetUser(ctx, r.PathValue("id"))
	if err != nil {
		writeServiceError(ctx, w, "get_user", err)
		return
	}
	writeJSON(ctx, w, http.StatusOK, user)
}
