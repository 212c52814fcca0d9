package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	return gdb, mock
}

var cardColumns = []string{
	"id", "code", "balance", "currency", "is_active",
	"idempotency_key", "owner_email", "created_at", "updated_at",
}

func TestCardRepository_GetByCode(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewCardRepository(db)

	rows := sqlmock.NewRows(cardColumns).
		AddRow(1, "AAAA-BBBB-CCCC", 100, "USD", true, nil, "", time.Now(), time.Now())
	mock.ExpectQuery("SELECT (.+) FROM `gift_card` WHERE code").
		WillReturnRows(rows)

	card, err := repo.GetByCode(context.Background(), "AAAA-BBBB-CCCC")
	require.NoError(t, err)
	assert.Equal(t, "AAAA-BBBB-CCCC", card.Code)
	assert.Equal(t, int64(100), card.Balance)
	assert.True(t, card.IsActive)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCardRepository_GetByCode_NotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewCardRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM `gift_card` WHERE code").
		WillReturnRows(sqlmock.NewRows(cardColumns))

	_, err := repo.GetByCode(context.Background(), "ZZZZ-ZZZZ-ZZZZ")
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestCardRepository_GetByIdempotencyKey_Absent(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewCardRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM `gift_card` WHERE idempotency_key").
		WillReturnRows(sqlmock.NewRows(cardColumns))

	card, err := repo.GetByIdempotencyKey(context.Background(), "k1")
	require.NoError(t, err)
	assert.Nil(t, card, "absent key is not an error")
}

func TestCardRepository_CardCodeExists(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewCardRepository(db)

	mock.ExpectQuery("SELECT count(.+) FROM `gift_card` WHERE code").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	exists, err := repo.CardCodeExists(context.Background(), "AAAA-BBBB-CCCC")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery("SELECT count(.+) FROM `gift_card` WHERE code").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	exists, err = repo.CardCodeExists(context.Background(), "ZZZZ-ZZZZ-ZZZZ")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTransactionRepository_GetByReferenceID_Absent(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewTransactionRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM `gift_card_transaction` WHERE reference_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "transaction_no", "card_id", "amount", "type", "reference_id", "created_at"}))

	trans, err := repo.GetByReferenceID(context.Background(), nil, "order_1")
	require.NoError(t, err)
	assert.Nil(t, trans, "absent reference is not an error")
}
