package persistence

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrations_RejectMissingLocations(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	tests := []struct {
		name    string
		url     string
		path    string
		wantErr string
	}{
		{name: "no migrations path", url: "postgres://ledger", path: "", wantErr: "migrations path cannot be empty"},
		{name: "no database url", url: "", path: "migrations/postgres", wantErr: "database URL cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunMigrations(logger, tt.url, tt.path)
			assert.EqualError(t, err, tt.wantErr)

			_, err = MigrationStatus(tt.url, tt.path)
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestErrDirtySchema_Message(t *testing.T) {
	err := ErrDirtySchema{Version: 3}
	assert.Contains(t, err.Error(), "dirty at version 3")
}
