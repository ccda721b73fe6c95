package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTable(t *testing.T) {
	out, err := NewCSVExporter().RenderTable(Table{
		Columns: []string{"id", "module_title", "status"},
		Rows: [][]string{
			{"A1", "Questioning, Wait Time", "completed"},
			{"A2"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "id,module_title,status\nA1,\"Questioning, Wait Time\",completed\nA2,,\n", string(out))
}

func TestRenderTableValidation(t *testing.T) {
	_, err := NewCSVExporter().RenderTable(Table{})
	require.Error(t, err)

	_, err = NewCSVExporter().RenderTable(Table{Columns: []string{"id"}, Rows: [][]string{{"A1", "extra"}}})
	require.Error(t, err)
}
