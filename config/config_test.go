package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"MAX_CONCURRENCY", "REQUEST_TIMEOUT", "COMMERCIAL_ONLY", "STORE_BACKEND"} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.CommercialOnly)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Contains(t, cfg.DSN(), "dbname=listings_db")
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MAX_CONCURRENCY", "3")
	t.Setenv("REQUEST_TIMEOUT", "1500ms")
	t.Setenv("COMMERCIAL_ONLY", "true")
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("TOP_N", "not-a-number")

	cfg := FromEnv()
	assert.Equal(t, 3, cfg.MaxConcurrency)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestTimeout)
	assert.True(t, cfg.CommercialOnly)
	assert.Equal(t, "postgres", cfg.StoreBackend)
	assert.Equal(t, 10, cfg.TopN, "invalid ints fall back to the default")
}

func TestDefaultProfileParses(t *testing.T) {
	p, err := DefaultProfile()
	require.NoError(t, err)

	assert.Equal(t, "he", p.DefaultLocale)
	he := p.Locale("he")
	require.NotNil(t, he)
	assert.Contains(t, he.CurrencySymbols, "₪")
	assert.Equal(t, 6, he.NumberWords["שש"])
	assert.Equal(t, p.Locale("he"), p.Locale("unknown"), "unknown locales fall back to the default")

	require.NotEmpty(t, p.Gazetteer)
	assert.Equal(t, "תל אביב", p.Gazetteer[0].Name)
	assert.NotEmpty(t, p.Keywords.Commercial)
	assert.NotEmpty(t, p.Keywords.Residential)
	assert.Equal(t, "office", p.PropertyTypes[0].Name)
}

func TestSourceFor(t *testing.T) {
	p, err := DefaultProfile()
	require.NoError(t, err)

	s := p.SourceFor("https://www.yad2.co.il/item/abc")
	require.NotNil(t, s)
	assert.Equal(t, "yad2", s.Name)
	assert.Equal(t, ".price", s.Fields["price"])

	assert.Nil(t, p.SourceFor("https://notyad2.co.il/item"))
	assert.Nil(t, p.SourceFor("https://example.com/listing/1"))
}

func TestLoadProfileFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_locale: en
locales:
  en:
    currency_symbols: ['$']
sources:
  - name: demo
    hosts: ['demo.test']
    locale: en
`), 0o644))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"$"}, p.Locale("en").CurrencySymbols)
	assert.Equal(t, "demo", p.SourceFor("http://demo.test/x").Name)
}

func TestParseProfileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no locales", "default_locale: he\n", "no locales"},
		{"missing default", "default_locale: fr\nlocales:\n  he: {}\n", "not defined"},
		{"bad source locale", "default_locale: he\nlocales:\n  he: {}\nsources:\n  - name: x\n    locale: de\n", "undefined locale"},
		{"bad yaml", "default_locale: [", "decode yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile: read")
}
