package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/config"
)

func TestProjectConfigTemplate_MatchesDefaults(t *testing.T) {
	// Given: the embedded template decoded over the defaults
	cfg := config.NewConfig()
	require.NoError(t, yaml.Unmarshal([]byte(ProjectConfigTemplate), cfg))

	// Then: the documented values are the hardcoded defaults
	defaults := config.NewConfig()
	assert.Equal(t, defaults.Index, cfg.Index)
	assert.Equal(t, defaults.Localization, cfg.Localization)
	assert.Equal(t, defaults.Cache.Backend, cfg.Cache.Backend)
	assert.Equal(t, defaults.ContentTypes.Enabled, cfg.ContentTypes.Enabled)
	assert.Empty(t, cfg.ContentTypes.Custom)
}
