package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckSlug(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		input string
		ok    bool
	}{
		{name: "canonical", input: "carrara-white", ok: true},
		{name: "suffixed", input: "carrara-white-2", ok: true},
		{name: "empty", input: "", ok: false},
		{name: "suffix of empty base", input: "-1", ok: false},
		{name: "upper case", input: "Carrara", ok: false},
		{name: "double hyphen", input: "a--b", ok: false},
		{name: "whitespace", input: " carrara ", ok: false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := checkSlug(tc.input)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidSlug)
		})
	}
}

func TestValidateSluggedName(t *testing.T) {
	t.Parallel()

	require.NoError(t, validateSluggedName("Carrara", "carrara"))
	require.Error(t, validateSluggedName("  ", "carrara"))
	require.ErrorIs(t, validateSluggedName("Carrara", ""), ErrInvalidSlug)
}
