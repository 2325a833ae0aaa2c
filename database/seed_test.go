package database

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	defaults, err := LoadDefaults()
	require.NoError(t, err)
	require.NotEmpty(t, defaults.Collections)
	require.Equal(t, "Marble", defaults.Collections[0].Name)

	raw, err := defaults.SettingsJSON()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Equal(t, "Marmoreal Stone", doc["siteName"])
	require.IsType(t, map[string]any{}, doc["contact"])
}

func TestParseDefaultsValidation(t *testing.T) {
	_, err := ParseDefaults([]byte("collections:\n  - name: ''\nsettings:\n  siteName: x\n"))
	require.Error(t, err)

	_, err = ParseDefaults([]byte("collections: []\n"))
	require.Error(t, err)

	_, err = ParseDefaults([]byte(":::"))
	require.Error(t, err)
}

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/cms?sslmode=disable", migrateURL("postgres://u:p@db:5432/cms?sslmode=disable"))
	require.Equal(t, "pgx5://db/cms", migrateURL("postgresql://db/cms"))
	require.Equal(t, "pgx5://db/cms", migrateURL("pgx5://db/cms"))
}
