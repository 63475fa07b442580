package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStepsOrder(t *testing.T) {
	assert.Equal(t, []string{"create l50_runs table", "create l50_rows table", "create indexes"}, Steps())
	assert.Equal(t, "1.0.0", NewRunner().Version())
	var _ Migrator = NewRunner()
}
