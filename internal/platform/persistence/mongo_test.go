package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terra-payments-ledger/internal/config"
)

func TestAuditClientOptions(t *testing.T) {
	cfg := &config.MongoDBConfig{
		URI:             "mongodb://localhost:27017",
		Database:        "payments_audit",
		Timeout:         5 * time.Second,
		MaxPoolSize:     20,
		MinPoolSize:     2,
		MaxConnIdleTime: time.Minute,
	}

	opts := auditClientOptions(cfg)

	require.NoError(t, opts.Validate())
	require.NotNil(t, opts.MaxPoolSize)
	assert.Equal(t, uint64(20), *opts.MaxPoolSize)
	require.NotNil(t, opts.MinPoolSize)
	assert.Equal(t, uint64(2), *opts.MinPoolSize)
	require.NotNil(t, opts.Timeout)
	assert.Equal(t, 5*time.Second, *opts.Timeout)
	require.NotNil(t, opts.RetryWrites)
	assert.True(t, *opts.RetryWrites)
	require.NotNil(t, opts.WriteConcern)
	assert.Equal(t, "majority", opts.WriteConcern.W)
}
