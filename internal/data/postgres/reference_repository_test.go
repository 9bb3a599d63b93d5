package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terra-payments-ledger/internal/domain/reference"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

func TestReferenceRepository_GetProvider(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ReferenceRepository{querier: mock, logger: newTestLogger()}
	id := uuid.New()

	mock.ExpectQuery(`FROM providers WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "language", "active"}).AddRow(id, "Hôtel Laurier", "Français", true))

	p, err := repo.GetProvider(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, shared.LanguageFrench, p.TemplateLanguage())

	mock.ExpectQuery(`FROM providers WHERE id = \$1`).WithArgs(id).WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetProvider(ctx, id)
	assert.ErrorIs(t, err, reference.ErrNotFound{Entity: "provider"})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepository_GetUser(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ReferenceRepository{querier: mock, logger: newTestLogger()}
	id := uuid.New()

	mock.ExpectQuery(`FROM users WHERE id = \$1`).WithArgs(id).WillReturnError(pgx.ErrNoRows)
	_, err = repo.GetUser(ctx, id)
	assert.ErrorIs(t, err, reference.ErrNotFound{Entity: "user", ID: id.String()})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepository_FirstActiveAddress(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ReferenceRepository{querier: mock, logger: newTestLogger()}
	providerID := uuid.New()
	addrID := uuid.New()

	t.Run("primary first", func(t *testing.T) {
		mock.ExpectQuery(`ORDER BY is_primary DESC, id`).
			WithArgs(providerID).
			WillReturnRows(pgxmock.NewRows([]string{"id", "provider_id", "email", "is_primary", "active"}).
				AddRow(addrID, providerID, "pagos@hotel.mx", true, true))

		addr, err := repo.FirstActiveAddress(ctx, providerID)
		require.NoError(t, err)
		assert.Equal(t, "pagos@hotel.mx", addr.Email)
		assert.True(t, addr.Primary)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no active address", func(t *testing.T) {
		mock.ExpectQuery(`FROM provider_addresses`).
			WithArgs(providerID).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.FirstActiveAddress(ctx, providerID)
		assert.ErrorIs(t, err, reference.ErrNotFound{Entity: "provider address"})
	})
}

func TestReferenceRepository_FindProviderAddress(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ReferenceRepository{querier: mock, logger: newTestLogger()}
	providerID := uuid.New()

	mock.ExpectQuery(`lower\(email\) = lower\(\$2\)`).
		WithArgs(providerID, "old@hotel.mx").
		WillReturnRows(pgxmock.NewRows([]string{"id", "provider_id", "email", "is_primary", "active"}).
			AddRow(uuid.New(), providerID, "old@hotel.mx", false, false))

	addr, err := repo.FindProviderAddress(ctx, providerID, "  old@hotel.mx ")
	require.NoError(t, err)
	assert.False(t, addr.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReferenceRepository_CountClients(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &ReferenceRepository{querier: mock, logger: newTestLogger()}
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	n, err := repo.CountClients(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM clients`).
		WithArgs(uuidStrings(ids)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	n, err = repo.CountClients(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
