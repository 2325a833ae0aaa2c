package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDocumentValidatorPostContent(t *testing.T) {
	t.Parallel()

	v := NewDocumentValidator()

	testCases := []struct {
		name    string
		payload string
		ok      bool
	}{
		{name: "empty list", payload: `[]`, ok: true},
		{name: "all block kinds", payload: `[
			{"type":"heading","level":2,"text":"Quarrying Carrara"},
			{"type":"paragraph","text":"Blocks are cut with diamond wire."},
			{"type":"image","url":"https://cdn.example/slab.jpg","alt":"slab"},
			{"type":"quote","text":"Stone remembers.","cite":"Anon"}
		]`, ok: true},
		{name: "unknown block", payload: `[{"type":"video","url":"x"}]`},
		{name: "paragraph without text", payload: `[{"type":"paragraph"}]`},
		{name: "heading level out of range", payload: `[{"type":"heading","level":1,"text":"x"}]`},
		{name: "extra property", payload: `[{"type":"quote","text":"x","color":"red"}]`},
		{name: "not an array", payload: `{"type":"paragraph","text":"x"}`},
		{name: "not json", payload: `[{`},
		{name: "blank", payload: `  `},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(DocumentPostContent, []byte(tc.payload))
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestDocumentValidatorSpecificationsAndSettings(t *testing.T) {
	t.Parallel()

	v := NewDocumentValidator()

	require.NoError(t, v.Validate(DocumentProductSpecifications, []byte(`{"density":"2.7 g/cm3","waterAbsorption":0.2,"frostResistant":true}`)))
	require.ErrorIs(t, v.Validate(DocumentProductSpecifications, []byte(`{"nested":{"a":1}}`)), ErrInvalidDocument)

	require.NoError(t, v.Validate(DocumentSiteSettings, []byte(`{"siteName":"Marmoreal","contact":{"email":"hello@marmoreal.stone"}}`)))
	require.ErrorIs(t, v.Validate(DocumentSiteSettings, []byte(`{"siteName":"Marmoreal","contact":{"email":"not-an-email"}}`)), ErrInvalidDocument)
	require.ErrorIs(t, v.Validate(DocumentSiteSettings, []byte(`{"contact":{"email":"a@b.co"}}`)), ErrInvalidDocument)
}

func TestDocumentValidatorUnknownDocument(t *testing.T) {
	t.Parallel()

	err := NewDocumentValidator().Validate(Document("nope"), []byte(`{}`))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidDocument)
}
