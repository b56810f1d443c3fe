package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSIRSyncFromFile(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		c, err := NewSIRSyncFromFile("../../dev/examples/sirsync.yml")
		require.NoError(t, err)
		require.NotNil(t, c)

		assert.Equal(t, "sirsync-example-1", c.Sync.Name)
		assert.Equal(t, "filesystem", c.Sync.Cursor.Type)
		assert.Equal(t, "https://portal.example.gov/api/items", c.Sync.Portal.ItemURL)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewSIRSyncFromFile("../../dev/examples/nope.yml")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *SIRSync {
		return &SIRSync{
			Sync: Sync{
				Source: Source{URL: "https://grc"},
				Portal: Portal{
					AuthURL: "https://portal/auth",
					ItemURL: "https://portal/items",
				},
				Pipeline: Pipeline{MappingPath: "mapping.csv"},
				Cursor:   Cursor{Type: "filesystem"},
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*SIRSync)
		field  string
	}{
		{
			name:   "missing source url",
			mutate: func(c *SIRSync) { c.Sync.Source.URL = "" },
			field:  "sync.source.url",
		},
		{
			name:   "missing item url",
			mutate: func(c *SIRSync) { c.Sync.Portal.ItemURL = "" },
			field:  "sync.portal.item_url",
		},
		{
			name:   "missing auth url",
			mutate: func(c *SIRSync) { c.Sync.Portal.AuthURL = "" },
			field:  "sync.portal.auth_url",
		},
		{
			name:   "missing mapping path",
			mutate: func(c *SIRSync) { c.Sync.Pipeline.MappingPath = "" },
			field:  "sync.pipeline.mapping_path",
		},
		{
			name:   "unknown cursor type",
			mutate: func(c *SIRSync) { c.Sync.Cursor.Type = "redis" },
			field:  "sync.cursor.type",
		},
		{
			name: "conflicting credential sources",
			mutate: func(c *SIRSync) {
				c.Sync.Credential.PKCS12Path = "a.p12"
				c.Sync.Credential.SecretID = "sirsync/cert"
			},
			field: "sync.credential",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)

			err := c.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestPipelineFilters(t *testing.T) {
	t.Run("omitted filters default to enabled", func(t *testing.T) {
		rejected, untriaged, cur := Filters{}.PipelineFilters()
		assert.True(t, rejected)
		assert.True(t, untriaged)
		assert.True(t, cur)
	})

	t.Run("explicit false disables", func(t *testing.T) {
		off := false
		rejected, untriaged, cur := Filters{Cursor: &off}.PipelineFilters()
		assert.True(t, rejected)
		assert.True(t, untriaged)
		assert.False(t, cur)
	})
}
