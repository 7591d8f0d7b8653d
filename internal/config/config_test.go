package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dyluth/osechi/pkg/box"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "osechi.yml")

	validConfig := `version: "1.0"
box:
  name: family-2026
  slots_per_tier: 4
  tiers:
    - id: top
      name: "Top Tier"
    - id: bottom
      name: "Bottom Tier"
store:
  redis_url: redis://cache:6379/2
  resync_interval: 10s
rules:
  limits:
    title: 40
  diversity:
    attribute: White
    grace_threshold: 0
    max_fraction: 0.25
  title_messages:
    natto: "Natto again?"
rate_limit:
  max_requests: 3
  window: 30s
logging:
  format: json
`
	err := os.WriteFile(configPath, []byte(validConfig), 0644)
	require.NoError(t, err)

	config, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, "family-2026", config.Box.Name)
	assert.Equal(t, box.Layout{
		Tiers:        []box.TierSpec{{ID: "top", Name: "Top Tier"}, {ID: "bottom", Name: "Bottom Tier"}},
		SlotsPerTier: 4,
	}, config.Layout())
	assert.Equal(t, "redis://cache:6379/2", config.Store.RedisURL)
	assert.Equal(t, 10*time.Second, config.Store.ResyncInterval)
	assert.Equal(t, 5*time.Second, config.Store.WriteTimeout)

	assert.Equal(t, 40, config.Rules.Limits.Title)
	assert.Equal(t, 30, config.Rules.Limits.OwnerLabel)
	assert.Equal(t, box.AttributeWhite, config.Rules.Diversity.Attribute)
	assert.Equal(t, 0, *config.Rules.Diversity.GraceThreshold, "explicit zero must survive defaults")
	assert.Equal(t, 0.25, config.Rules.Diversity.MaxFraction)
	assert.Equal(t, map[string]string{"natto": "Natto again?"}, config.Rules.TitleMessages)

	assert.Equal(t, 3, config.RateLimit.MaxRequests)
	assert.Equal(t, 30*time.Second, config.RateLimit.Window)
	assert.Equal(t, 5*time.Minute, config.RateLimit.SweepInterval)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, "info", config.Logging.Level)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/osechi.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "osechi.yml")

	invalidYAML := `version: "1.0"
box:
  - this is invalid
    yaml syntax
`
	err := os.WriteFile(configPath, []byte(invalidYAML), 0644)
	require.NoError(t, err)

	config, err := Load(configPath)
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestDefault(t *testing.T) {
	config := Default()

	assert.Equal(t, box.DefaultLayout(), config.Layout())
	assert.Equal(t, 50, config.Rules.Limits.Title)
	assert.Equal(t, 30, config.Rules.Limits.OwnerLabel)
	assert.Equal(t, 200, config.Rules.Limits.Note)
	assert.Equal(t, 30, config.Rules.Limits.Category)
	assert.Equal(t, 30, config.Rules.Limits.Origin)
	assert.Equal(t, box.AttributeBrown, config.Rules.Diversity.Attribute)
	assert.Equal(t, 3, *config.Rules.Diversity.GraceThreshold)
	assert.Equal(t, 0.5, config.Rules.Diversity.MaxFraction)
	assert.Contains(t, config.Rules.TitleMessages, "potato salad")
	assert.Equal(t, 10, config.RateLimit.MaxRequests)
	assert.Equal(t, time.Minute, config.RateLimit.Window)
	assert.Equal(t, ":8080", config.Server.Addr)
	assert.Equal(t, "console", config.Logging.Format)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unsupported version",
			yaml:    "version: \"2.0\"\nbox:\n  name: b\n",
			wantErr: "unsupported version: 2.0",
		},
		{
			name:    "missing box name",
			yaml:    "version: \"1.0\"\n",
			wantErr: "box.name is required",
		},
		{
			name:    "box name with colon",
			yaml:    "version: \"1.0\"\nbox:\n  name: a:b\n",
			wantErr: "must not contain ':'",
		},
		{
			name:    "duplicate tier ids",
			yaml:    "version: \"1.0\"\nbox:\n  name: b\n  tiers:\n    - id: x\n    - id: x\n",
			wantErr: "duplicate tier id 'x'",
		},
		{
			name:    "unknown diversity attribute",
			yaml:    "version: \"1.0\"\nbox:\n  name: b\nrules:\n  diversity:\n    attribute: Purple\n",
			wantErr: "rules.diversity.attribute",
		},
		{
			name:    "max fraction above one",
			yaml:    "version: \"1.0\"\nbox:\n  name: b\nrules:\n  diversity:\n    max_fraction: 1.5\n",
			wantErr: "max_fraction must be in (0, 1]",
		},
		{
			name:    "negative limit",
			yaml:    "version: \"1.0\"\nbox:\n  name: b\nrules:\n  limits:\n    note: -1\n",
			wantErr: "rules.limits.note must be >= 1",
		},
		{
			name:    "uppercase title message key",
			yaml:    "version: \"1.0\"\nbox:\n  name: b\nrules:\n  title_messages:\n    Natto: nope\n",
			wantErr: "must be lowercase and trimmed",
		},
		{
			name:    "unknown log format",
			yaml:    "version: \"1.0\"\nbox:\n  name: b\nlogging:\n  format: xml\n",
			wantErr: "invalid logging.format: xml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	config := Default()
	env := map[string]string{
		"REDIS_URL":           "redis://other:6380/0",
		"OSECHI_BOX":          "office",
		"OSECHI_API_KEY":      "key-123",
		"OSECHI_TOKEN_SECRET": "s3cret",
	}

	config.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "redis://other:6380/0", config.Store.RedisURL)
	assert.Equal(t, "office", config.Box.Name)
	assert.Equal(t, "key-123", config.TextGen.APIKey)
	assert.Equal(t, "s3cret", config.Server.TokenSecret)

	t.Run("empty variables leave values alone", func(t *testing.T) {
		config.ApplyEnv(func(string) string { return "" })
		assert.Equal(t, "office", config.Box.Name)
	})
}
