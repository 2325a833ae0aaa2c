// Package httpapi holds the request parameter helpers shared by the domain handlers.
package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ParamError reports a malformed path or query parameter.
type ParamError struct {
	Name    string
	Message string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Fields renders the error as a field error map for problem documents.
func (e *ParamError) Fields() map[string][]string {
	return map[string][]string{e.Name: {e.Message}}
}

// PathUUID parses the chi URL parameter name as a UUID.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, &ParamError{Name: name, Message: "must be a valid UUID"}
	}
	return id, nil
}

// Page reads the page and pageSize query parameters. Absent values are returned as zero
// so services apply their own defaults.
func Page(r *http.Request) (page, pageSize int, err error) {
	if page, err = QueryInt(r, "page", 1); err != nil {
		return 0, 0, err
	}
	if pageSize, err = QueryInt(r, "pageSize", 1); err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

// QueryInt parses an optional integer query parameter that must be at least min.
func QueryInt(r *http.Request, name string, min int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < min {
		return 0, &ParamError{Name: name, Message: fmt.Sprintf("must be an integer >= %d", min)}
	}
	return value, nil
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &ParamError{Name: name, Message: "must be true or false"}
	}
	return &value, nil
}

// QueryUUID parses an optional UUID query parameter.
func QueryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &ParamError{Name: name, Message: "must be a valid UUID"}
	}
	return &id, nil
}

// QueryString returns an optional trimmed query parameter.
func QueryString(r *http.Request, name string) *string {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil
	}
	return &raw
}

// TotalPages rounds totalItems up to whole pages of pageSize.
func TotalPages(totalItems, pageSize int) int {
	if pageSize <= 0 || totalItems <= 0 {
		return 0
	}
	return (totalItems + pageSize - 1) / pageSize
}
