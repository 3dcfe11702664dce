package core

import (
	"errors"
	"strings"
	"time"
)

const (
	TransactionIncome  TransactionType = "INCOME"
	TransactionExpense TransactionType = "EXPENSE"
)

type (
	TransactionType string

	User struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Image string `json:"image"`
	}

	Account struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Balance   Money     `json:"balance"`
		UserID    string    `json:"userId"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	Category struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Icon      string    `json:"icon"`
		Color     string    `json:"color"`
		UserID    string    `json:"userId"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// Transaction is immutable once stored. Amount is always positive; Type
	// carries the sign applied to the account balance.
	Transaction struct {
		ID          string          `json:"id"`
		Amount      Money           `json:"amount"`
		Description string          `json:"description"`
		Date        time.Time       `json:"date"`
		Type        TransactionType `json:"type"`
		CategoryID  string          `json:"categoryId"`
		AccountID   string          `json:"accountId"`
		UserID      string          `json:"userId"`
		CreatedAt   time.Time       `json:"createdAt"`

		// Populated by joined reads.
		Category *Category `json:"category,omitempty"`
		Account  *Account  `json:"account,omitempty"`
	}
)

// ValidationError is a caller mistake that the API reports as 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

var (
	ErrUserIDRequired   = &ValidationError{Message: "User ID is required"}
	ErrMissingFields    = &ValidationError{Message: "Missing required fields"}
	ErrInvalidAmount    = &ValidationError{Message: "Amount must be a positive number"}
	ErrInvalidBalance   = &ValidationError{Message: "Balance must be a number"}
	ErrInvalidType      = &ValidationError{Message: "Invalid transaction type"}
	ErrInvalidDate      = &ValidationError{Message: "Invalid date"}
	ErrAccountNotOwned  = &ValidationError{Message: "Account not found for user"}
	ErrCategoryNotOwned = &ValidationError{Message: "Category not found for user"}
)

// IsValidation reports whether err (or anything it wraps) is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ParseTransactionType accepts the type case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// Signed returns the balance delta for amount under this type.
func (t TransactionType) Signed(amount Money) Money {
	if t == TransactionExpense {
		return amount.Neg()
	}
	return amount
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.UserID) == "" {
		return ErrUserIDRequired
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrMissingFields
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrUserIDRequired
	}
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Icon) == "" || strings.TrimSpace(c.Color) == "" {
		return ErrMissingFields
	}
	return nil
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrUserIDRequired
	}
	if strings.TrimSpace(t.Description) == "" || t.CategoryID == "" || t.AccountID == "" || t.Type == "" {
		return ErrMissingFields
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// SignedAmount is the transaction's effect on its account balance.
func (t Transaction) SignedAmount() Money {
	return t.Type.Signed(t.Amount)
}

// CategoryName is the display name used in breakdowns.
func (t Transaction) CategoryName() string {
	if t.Category == nil || t.Category.Name == "" {
		return UncategorizedName
	}
	return t.Category.Name
}
