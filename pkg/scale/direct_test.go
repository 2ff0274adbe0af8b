package scale

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/quackbench/quackbench/pkg/errors"
)

func newTestMultiplier(t *testing.T) (*Multiplier, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMultiplier(db, "main", "sales_big", "sales_view", zerolog.Nop()), mock
}

func TestScaleByCrossJoin(t *testing.T) {
	m, mock := newTestMultiplier(t)

	expectCount(mock, "sales_big", 1000)
	expectExec(mock, `CREATE OR REPLACE TABLE "main"."sales_big_new" AS SELECT original.* FROM "main"."sales_big" AS original CROSS JOIN (SELECT generate_series AS replicate_id FROM generate_series(1, 10)) AS replicator`)
	expectCount(mock, "sales_big_new", 10000)
	expectExec(mock, `DROP TABLE "main"."sales_big"`)
	expectExec(mock, `ALTER TABLE "main"."sales_big_new" RENAME TO "sales_big"`)
	expectExec(mock, `CREATE OR REPLACE VIEW "main"."sales_view" AS SELECT * FROM "main"."sales_big"`)

	final, err := m.ScaleBy(context.Background(), 10, StrategyCrossJoin)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), final)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScaleByUnion(t *testing.T) {
	m, mock := newTestMultiplier(t)

	expectCount(mock, "sales_big", 1000)
	expectExec(mock, `CREATE OR REPLACE TABLE "main"."sales_big_new" AS SELECT * FROM "main"."sales_big" UNION ALL SELECT * FROM "main"."sales_big" UNION ALL SELECT * FROM "main"."sales_big"`)
	expectCount(mock, "sales_big_new", 3000)
	expectExec(mock, `DROP TABLE "main"."sales_big"`)
	expectExec(mock, `ALTER TABLE "main"."sales_big_new" RENAME TO "sales_big"`)
	expectExec(mock, `CREATE OR REPLACE VIEW "main"."sales_view" AS SELECT * FROM "main"."sales_big"`)

	final, err := m.ScaleBy(context.Background(), 3, StrategyUnion)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), final)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScaleByLargeRequiresConfirmation(t *testing.T) {
	m, mock := newTestMultiplier(t)
	m.Confirm = func(string) bool { return false }

	expectCount(mock, "sales_big", 600_000_000)

	_, err := m.ScaleBy(context.Background(), 10, StrategyCrossJoin)
	require.ErrorIs(t, err, qerrors.ErrScaleCanceled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScaleByRejectsBadInput(t *testing.T) {
	m, _ := newTestMultiplier(t)

	_, err := m.ScaleBy(context.Background(), 0, StrategyCrossJoin)
	assert.Error(t, err)
}

func TestScaleByUnknownStrategy(t *testing.T) {
	m, mock := newTestMultiplier(t)

	expectCount(mock, "sales_big", 1000)

	_, err := m.ScaleBy(context.Background(), 2, Strategy("sideways"))
	require.Error(t, err)
	assert.True(t, qerrors.IsConfigInvalid(err))
}
