package core

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/badoux/checkmail"
)

const (
	CategoryExpense CategoryType = "expense"
	CategoryIncome  CategoryType = "income"
)

const (
	KindExpense EntryKind = "expense"
	KindIncome  EntryKind = "income"
)

const (
	maxDescriptionLen  = 200
	maxCategoryNameLen = 100
)

type (
	// CategoryType partitions categories into the expense and income namespaces.
	CategoryType string

	// EntryKind selects which ledger an Entry belongs to.
	EntryKind string

	User struct {
		ID           int64
		Email        string
		PasswordHash string
	}

	// Profile is the public projection of a User.
	Profile struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}

	// Session is returned by register and login.
	Session struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
		Token string `json:"token"`
	}

	Category struct {
		ID     int64        `json:"id"`
		Name   string       `json:"name"`
		Type   CategoryType `json:"type"`
		UserID int64        `json:"user_id"`
	}

	// Entry is an income or expense row joined with its category name.
	Entry struct {
		ID           int64   `json:"id"`
		Amount       float64 `json:"amount"`
		Description  string  `json:"description"`
		CategoryID   int64   `json:"category_id"`
		UserID       int64   `json:"user_id"`
		Date         string  `json:"date"`
		CategoryName string  `json:"category_name"`
	}

	Budget struct {
		ID           int64   `json:"id"`
		CategoryID   int64   `json:"category_id"`
		Amount       float64 `json:"amount"`
		UserID       int64   `json:"user_id"`
		CategoryName string  `json:"category_name"`
	}
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrNotFound           = errors.New("not found")
)

// ValidationError reports a request body that failed shape checks.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// ParseCategoryType maps an optional wire value to a CategoryType.
// The empty string selects the expense namespace.
func ParseCategoryType(s string) (CategoryType, error) {
	switch CategoryType(strings.TrimSpace(s)) {
	case "", CategoryExpense:
		return CategoryExpense, nil
	case CategoryIncome:
		return CategoryIncome, nil
	default:
		return "", invalid("type", fmt.Sprintf("must be %q or %q", CategoryExpense, CategoryIncome))
	}
}

func (k EntryKind) Valid() bool {
	return k == KindExpense || k == KindIncome
}

// Credentials is the register/login request body.
type Credentials struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (c Credentials) Validate() error {
	if c.Email == nil || strings.TrimSpace(*c.Email) == "" {
		return invalid("email", "is required")
	}
	if err := checkmail.ValidateFormat(strings.TrimSpace(*c.Email)); err != nil {
		return invalid("email", "invalid format")
	}
	if c.Password == nil || *c.Password == "" {
		return invalid("password", "is required")
	}
	return nil
}

// CategoryInput is the create-category request body.
type CategoryInput struct {
	Name *string `json:"name"`
	Type string  `json:"type"`
}

// Normalize validates the input and returns the trimmed name and resolved type.
func (in CategoryInput) Normalize() (string, CategoryType, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return "", "", invalid("name", "is required")
	}
	name := strings.TrimSpace(*in.Name)
	if len(name) > maxCategoryNameLen {
		return "", "", invalid("name", fmt.Sprintf("too long (max %d characters)", maxCategoryNameLen))
	}
	typ, err := ParseCategoryType(in.Type)
	if err != nil {
		return "", "", err
	}
	return name, typ, nil
}

// EntryInput is the create/update body shared by income and expenses.
type EntryInput struct {
	Amount      *float64 `json:"amount"`
	Description *string  `json:"description"`
	CategoryID  *int64   `json:"category_id"`
}

// EntryParams is an EntryInput that passed validation.
type EntryParams struct {
	Amount      float64
	Description string
	CategoryID  int64
}

func (in EntryInput) Params() (EntryParams, error) {
	if in.Amount == nil {
		return EntryParams{}, invalid("amount", "is required")
	}
	if math.IsNaN(*in.Amount) || math.IsInf(*in.Amount, 0) || *in.Amount <= 0 {
		return EntryParams{}, invalid("amount", "must be a positive number")
	}
	if in.Description == nil || strings.TrimSpace(*in.Description) == "" {
		return EntryParams{}, invalid("description", "is required")
	}
	desc := strings.TrimSpace(*in.Description)
	if len(desc) > maxDescriptionLen {
		return EntryParams{}, invalid("description", fmt.Sprintf("too long (max %d characters)", maxDescriptionLen))
	}
	if in.CategoryID == nil || *in.CategoryID <= 0 {
		return EntryParams{}, invalid("category_id", "is required")
	}
	return EntryParams{Amount: *in.Amount, Description: desc, CategoryID: *in.CategoryID}, nil
}

// BudgetInput is the set-budget request body.
type BudgetInput struct {
	CategoryID *int64   `json:"category_id"`
	Amount     *float64 `json:"amount"`
}

func (in BudgetInput) Validate() error {
	if in.CategoryID == nil || *in.CategoryID <= 0 {
		return invalid("category_id", "is required")
	}
	if in.Amount == nil {
		return invalid("amount", "is required")
	}
	if math.IsNaN(*in.Amount) || math.IsInf(*in.Amount, 0) || *in.Amount < 0 {
		return invalid("amount", "must be zero or a positive number")
	}
	return nil
}
