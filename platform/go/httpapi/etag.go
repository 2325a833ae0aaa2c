package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ETag returns a strong entity tag for a JSON payload. Insignificant whitespace does not change it;
// key order does.
func ETag(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("payload is required to compute etag")
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return "", fmt.Errorf("compact json: %w", err)
	}

	sum := sha256.Sum256(compact.Bytes())
	return `"` + hex.EncodeToString(sum[:16]) + `"`, nil
}

// NotModified reports whether the request's If-None-Match already names etag.
func NotModified(r *http.Request, etag string) bool {
	header := r.Header.Get("If-None-Match")
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
