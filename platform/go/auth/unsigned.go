package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// UnsignedTokenVerifier decodes unsigned JWT payloads without validation. Local development only.
func UnsignedTokenVerifier() VerifyFunc {
	return func(ctx context.Context, token string) (map[string]interface{}, error) {
		return parseUnsignedJWTClaims(token)
	}
}

// BuildUnsignedToken returns an alg "none" JWT for subject that the dev verifier accepts.
func BuildUnsignedToken(subject Subject, now time.Time, expiresIn time.Duration) (string, error) {
	if strings.TrimSpace(subject.ID) == "" {
		return "", errors.New("subject id is required")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	payload := map[string]interface{}{
		"sub":     subject.ID,
		"email":   subject.Email,
		"name":    subject.Name,
		"isAdmin": subject.IsAdmin,
		"iat":     now.Unix(),
		"exp":     now.Add(expiresIn).Unix(),
	}

	headerSegment, err := encodeSegment(map[string]interface{}{"alg": "none", "typ": "JWT"})
	if err != nil {
		return "", err
	}
	payloadSegment, err := encodeSegment(payload)
	if err != nil {
		return "", err
	}

	return headerSegment + "." + payloadSegment + ".", nil
}

func parseUnsignedJWTClaims(token string) (map[string]interface{}, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, errors.New("invalid token format")
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	claims := make(map[string]interface{})
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal claims: %w", err)
	}

	return claims, nil
}

func encodeSegment(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
