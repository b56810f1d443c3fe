package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCategoryMapping(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		mapping, err := LoadCategoryMapping("testdata/category_mapping.csv")
		require.NoError(t, err)
		require.Len(t, mapping, 3)

		got, ok := mapping[MappingKey{Type: "A", Category: "X", Subtype: "Y"}]
		require.True(t, ok)
		assert.Equal(t, MappingValue{Type: "Phishing", Subtype: "Email", Sharing: "Green"}, got)
	})

	t.Run("missing file is fatal", func(t *testing.T) {
		_, err := LoadCategoryMapping("testdata/nope.csv")
		var terr *TransformationError
		require.ErrorAs(t, err, &terr)
	})

	t.Run("missing columns are named", func(t *testing.T) {
		_, err := LoadCategoryMapping("testdata/missing_columns.csv")
		var terr *TransformationError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, []string{"Sub_Category_Type", "sharing"}, terr.MissingColumns)
	})
}
