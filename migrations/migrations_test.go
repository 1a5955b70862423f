package migrations

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, Validate(FS()))

	list, err := List(FS())
	require.NoError(t, err)
	require.Len(t, list, 4)

	assert.Equal(t, "create_users", list[0].Name)
	assert.Equal(t, "001_create_users.up.sql", list[0].Up)
	assert.Equal(t, "001_create_users.down.sql", list[0].Down)
	assert.Equal(t, "create_sessions", list[3].Name)
}

func TestValidate(t *testing.T) {
	sql := &fstest.MapFile{Data: []byte("SELECT 1;")}

	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name:    "empty",
			fsys:    fstest.MapFS{},
			wantErr: "no migration files found",
		},
		{
			name: "bad filename",
			fsys: fstest.MapFS{
				"1_users.up.sql": sql,
			},
			wantErr: "invalid migration filename",
		},
		{
			name: "missing down",
			fsys: fstest.MapFS{
				"001_users.up.sql": sql,
			},
			wantErr: "missing its up or down file",
		},
		{
			name: "sequence gap",
			fsys: fstest.MapFS{
				"001_users.up.sql":   sql,
				"001_users.down.sql": sql,
				"003_units.up.sql":   sql,
				"003_units.down.sql": sql,
			},
			wantErr: "sequence gap",
		},
		{
			name: "conflicting names",
			fsys: fstest.MapFS{
				"001_users.up.sql":     sql,
				"001_members.down.sql": sql,
			},
			wantErr: "conflicting names",
		},
		{
			name: "empty file",
			fsys: fstest.MapFS{
				"001_users.up.sql":   sql,
				"001_users.down.sql": &fstest.MapFile{},
			},
			wantErr: "is empty",
		},
		{
			name: "valid",
			fsys: fstest.MapFS{
				"001_users.up.sql":   sql,
				"001_users.down.sql": sql,
				"002_units.up.sql":   sql,
				"002_units.down.sql": sql,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.fsys)
			if tt.wantErr == "" {
				assert.NoError(t, err)

				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
