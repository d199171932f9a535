package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsSortedAndNonEmpty(t *testing.T) {
	migrations, err := LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
	assert.Equal(t, 1, migrations[0].Version)
}

func TestCoreSchemaDeclaresBookingConstraints(t *testing.T) {
	migrations, err := LoadMigrations()
	require.NoError(t, err)

	core := migrations[0].SQL
	assert.Contains(t, core, "is_booked BOOLEAN NOT NULL DEFAULT false")
	assert.Contains(t, core, "CONSTRAINT appointments_slot_id_key UNIQUE (slot_id)")
	assert.True(t, strings.Contains(core, "CHECK (status IN ('taken', 'missed', 'delayed'))"))
}
