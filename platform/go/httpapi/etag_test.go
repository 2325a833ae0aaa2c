package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestETagIgnoresWhitespace(t *testing.T) {
	t.Parallel()

	a, err := ETag([]byte(`{"siteName": "Marmoreal",  "tagline": "Stone"}`))
	require.NoError(t, err)
	b, err := ETag([]byte(`{"siteName":"Marmoreal","tagline":"Stone"}`))
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 34)

	c, err := ETag([]byte(`{"siteName":"Marmoreal","tagline":"Marble"}`))
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}

func TestETagRejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	_, err := ETag(nil)
	require.Error(t, err)

	_, err = ETag([]byte(`{"broken"`))
	require.Error(t, err)
}

func TestNotModified(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		header string
		want   bool
	}{
		{name: "absent", header: "", want: false},
		{name: "exact", header: `"abc"`, want: true},
		{name: "weak", header: `W/"abc"`, want: true},
		{name: "list", header: `"zzz", "abc"`, want: true},
		{name: "wildcard", header: "*", want: true},
		{name: "other", header: `"zzz"`, want: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("If-None-Match", tc.header)
			}
			require.Equal(t, tc.want, NotModified(r, `"abc"`))
		})
	}
}
