// Package problem renders RFC 7807 problem documents and small JSON helpers shared by handlers.
package problem

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Problem type URIs shared by every domain handler.
const (
	TypeValidation   = "https://marmoreal.stone/problems/validation-error"
	TypeNotFound     = "https://marmoreal.stone/problems/not-found"
	TypeConflict     = "https://marmoreal.stone/problems/conflict"
	TypeUnauthorized = "https://marmoreal.stone/problems/unauthorized"
	TypeRateLimited  = "https://marmoreal.stone/problems/rate-limited"
	TypeTooLarge     = "https://marmoreal.stone/problems/payload-too-large"
	TypeInternal     = "https://marmoreal.stone/problems/internal-error"
)

// ContentType is the media type for problem documents.
const ContentType = "application/problem+json"

// MaxJSONBody caps JSON request bodies accepted by DecodeJSON.
const MaxJSONBody = 1 << 20

// Details is the RFC 7807 body returned for every failed request.
type Details struct {
	Type   *string              `json:"type,omitempty"`
	Title  string               `json:"title"`
	Status int                  `json:"status"`
	Detail *string              `json:"detail,omitempty"`
	Errors *map[string][]string `json:"errors,omitempty"`
}

// Build assembles a problem document, copying the field error map.
func Build(title, detail, problemType string, status int, fieldErrors map[string][]string) Details {
	problem := Details{
		Title:  title,
		Status: status,
	}

	if detail != "" {
		problem.Detail = &detail
	}
	if problemType != "" {
		problem.Type = &problemType
	}

	if len(fieldErrors) > 0 {
		copied := make(map[string][]string, len(fieldErrors))
		for field, messages := range fieldErrors {
			copied[field] = append([]string(nil), messages...)
		}
		problem.Errors = &copied
	}

	return problem
}

// Write serialises problem with its status code.
func Write(w http.ResponseWriter, problem Details) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(problem.Status)
	_ = json.NewEncoder(w).Encode(problem)
}

// BadRequest writes a 400 validation problem without field errors.
func BadRequest(w http.ResponseWriter, detail string) {
	Write(w, Build("Invalid request", detail, TypeValidation, http.StatusBadRequest, nil))
}

// WriteJSON writes v as a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON strictly decodes a single JSON object from the request body.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, MaxJSONBody))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %s", strings.TrimPrefix(err.Error(), "json: "))
	}

	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}

	return nil
}
