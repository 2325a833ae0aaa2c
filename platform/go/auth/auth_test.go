package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultCredentialExtractor(t *testing.T) {
	testCases := []struct {
		name    string
		claims  map[string]interface{}
		wantID  string
		admin   bool
		wantErr bool
	}{
		{
			name:   "sub claim",
			claims: map[string]interface{}{"sub": "admin-1", "email": "ops@marmoreal.stone", "isAdmin": true},
			wantID: "admin-1",
			admin:  true,
		},
		{
			name:   "uid wins over sub",
			claims: map[string]interface{}{"uid": "fb-1", "sub": "ignored"},
			wantID: "fb-1",
		},
		{
			name:    "missing subject",
			claims:  map[string]interface{}{"email": "x@example.com"},
			wantErr: true,
		},
		{
			name:    "nil claims",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			creds, err := DefaultCredentialExtractor(tc.claims)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantID, creds.ID)
			require.Equal(t, tc.admin, creds.IsAdmin)
		})
	}
}

func TestJWTAndRequireRole(t *testing.T) {
	verify := func(ctx context.Context, token string) (map[string]interface{}, error) {
		switch token {
		case "admin":
			return map[string]interface{}{"sub": "a-1", "isAdmin": true}, nil
		case "viewer":
			return map[string]interface{}{"sub": "v-1"}, nil
		default:
			return nil, errors.New("bad token")
		}
	}

	handler := JWT(verify, nil)(RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds, ok := UserFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "a-1", creds.ID)
		w.WriteHeader(http.StatusNoContent)
	})))

	testCases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "anonymous", header: "", want: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "not admin", header: "Bearer viewer", want: http.StatusForbidden},
		{name: "admin", header: "bearer admin", want: http.StatusNoContent},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestUnsignedTokenRoundTrip(t *testing.T) {
	token, err := BuildUnsignedToken(Subject{ID: "dev-1", Email: "dev@example.com", IsAdmin: true}, time.Now(), time.Hour)
	require.NoError(t, err)

	claims, err := UnsignedTokenVerifier()(context.Background(), token)
	require.NoError(t, err)

	creds, err := DefaultCredentialExtractor(claims)
	require.NoError(t, err)
	require.Equal(t, "dev-1", creds.ID)
	require.True(t, creds.IsAdmin)
}

func TestUnsignedTokenVerifierRejectsGarbage(t *testing.T) {
	_, err := UnsignedTokenVerifier()(context.Background(), "not-a-token")
	require.Error(t, err)
}
