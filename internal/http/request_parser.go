package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"conti/internal/core"
	"conti/internal/middleware/trace"
)

// HeaderUserID carries the authenticated caller, set by the upstream gateway.
const HeaderUserID = "X-User-ID"

const maxBodyBytes = 1 << 20

type ctxKey string

const userIDKey ctxKey = "user_id"

// requireUser rejects /api requests without a caller identity.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := sanitizeInput(r.Header.Get(HeaderUserID))
		if userID == "" {
			UnauthorizedError("missing " + HeaderUserID + " header").Write(w)
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func requestIDFrom(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

// DecodeJSONBody reads a single JSON object into dst, rejecting unknown
// fields, trailing data and bodies over 1 MiB.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// ParseDateQuery reads an optional YYYY-MM-DD query parameter.
func ParseDateQuery(query url.Values, key string) (core.Date, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid %s date %q, want YYYY-MM-DD", key, v)
	}
	return d, nil
}

// ParseDateRange reads the optional from and to query parameters.
func ParseDateRange(query url.Values) (from, to core.Date, err error) {
	if from, err = ParseDateQuery(query, "from"); err != nil {
		return core.Date{}, core.Date{}, err
	}
	if to, err = ParseDateQuery(query, "to"); err != nil {
		return core.Date{}, core.Date{}, err
	}
	return from, to, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, then trims whitespace.
func sanitizeInput(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

type recurrenceRequest struct {
	Frequency string    `json:"frequency"`
	Interval  int       `json:"interval"`
	EndDate   core.Date `json:"end_date"`
}

type createExpenseRequest struct {
	Amount      string             `json:"amount"`
	Currency    string             `json:"currency"`
	Description string             `json:"description"`
	Date        core.Date          `json:"date"`
	CategoryID  string             `json:"category_id"`
	WalletID    string             `json:"wallet_id"`
	GroupID     string             `json:"group_id"`
	TagIDs      []string           `json:"tag_ids"`
	Recurrence  *recurrenceRequest `json:"recurrence"`
}

// updateRecurringRequest patches a rule. Absent fields are left as they are;
// an empty end_date removes the end date.
type updateRecurringRequest struct {
	Amount      *string    `json:"amount"`
	Description *string    `json:"description"`
	CategoryID  *string    `json:"category_id"`
	WalletID    *string    `json:"wallet_id"`
	EndDate     *core.Date `json:"end_date"`
}

type createCategoryRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Icon    string `json:"icon"`
	Color   string `json:"color"`
	GroupID string `json:"group_id"`
}

type updateCategoryRequest struct {
	Name  *string `json:"name"`
	Type  *string `json:"type"`
	Icon  *string `json:"icon"`
	Color *string `json:"color"`
}

type updateTagRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

type createTagRequest struct {
	Name    string `json:"name"`
	Color   string `json:"color"`
	GroupID string `json:"group_id"`
}

// Wallet balances may be negative, such as a credit card.
type createWalletRequest struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
	GroupID  string `json:"group_id"`
}

type updateWalletRequest struct {
	Name     *string `json:"name"`
	Type     *string `json:"type"`
	Balance  *string `json:"balance"`
	Currency *string `json:"currency"`
	Color    *string `json:"color"`
	Icon     *string `json:"icon"`
}

// sanitizedPtr applies sanitizeInput to an optional field.
func sanitizedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}
