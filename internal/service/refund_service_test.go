package service

import (
	"context"
	"testing"

	"giftledger/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefund_Success(t *testing.T) {
	db, mock := setupTestDB(t)
	rdb, redisMock := setupTestRedis(t)
	svc := NewRefundService(db, rdb, testConfig())

	expectCardLock(redisMock, "AAAA-BBBB-CCCC")

	mock.ExpectBegin()
	// card was spent to zero and deactivated
	mock.ExpectQuery("SELECT (.+) FROM `gift_card` WHERE code").
		WillReturnRows(cardRow(1, "AAAA-BBBB-CCCC", 0, "USD", false))
	mock.ExpectQuery("SELECT (.+) FROM `gift_card_transaction` WHERE card_id").
		WillReturnRows(transactionRow(1, 1, -40, "SPEND", "order_1"))
	mock.ExpectQuery("SELECT (.+) FROM `gift_card_transaction` WHERE reference_id").
		WillReturnRows(emptyTransactionRows())
	// crediting back must persist is_active = true on the deactivated card
	mock.ExpectExec("UPDATE `gift_card` SET").
		WithArgs(int64(40), true, sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `gift_card_transaction`").
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec("INSERT INTO `outbox_message`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	resp, err := svc.Refund(context.Background(), &RefundRequest{
		Code:        "AAAA-BBBB-CCCC",
		ReferenceID: "order_1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(40), resp.RefundedAmount)
	assert.Equal(t, int64(40), resp.NewBalance, "full refund restores the pre-spend balance")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefund_CardNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	rdb, redisMock := setupTestRedis(t)
	svc := NewRefundService(db, rdb, testConfig())

	expectCardLock(redisMock, "ZZZZ-ZZZZ-ZZZZ")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `gift_card` WHERE code").
		WillReturnRows(emptyCardRows())
	mock.ExpectRollback()

	_, err := svc.Refund(context.Background(), &RefundRequest{
		Code:        "ZZZZ-ZZZZ-ZZZZ",
		ReferenceID: "order_1",
	})
	assert.ErrorIs(t, err, repository.ErrCardNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefund_OriginalSpendNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	rdb, redisMock := setupTestRedis(t)
	svc := NewRefundService(db, rdb, testConfig())

	expectCardLock(redisMock, "AAAA-BBBB-CCCC")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `gift_card` WHERE code").
		WillReturnRows(cardRow(1, "AAAA-BBBB-CCCC", 60, "USD", true))
	mock.ExpectQuery("SELECT (.+) FROM `gift_card_transaction` WHERE card_id").
		WillReturnRows(emptyTransactionRows())
	mock.ExpectRollback()

	_, err := svc.Refund(context.Background(), &RefundRequest{
		Code:        "AAAA-BBBB-CCCC",
		ReferenceID: "order_missing",
	})
	assert.ErrorIs(t, err, ErrOriginalSpendNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefund_AlreadyRefunded(t *testing.T) {
	db, mock := setupTestDB(t)
	rdb, redisMock := setupTestRedis(t)
	svc := NewRefundService(db, rdb, testConfig())

	expectCardLock(redisMock, "AAAA-BBBB-CCCC")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM `gift_card` WHERE code").
		WillReturnRows(cardRow(1, "AAAA-BBBB-CCCC", 40, "USD", true))
	mock.ExpectQuery("SELECT (.+) FROM `gift_card_transaction` WHERE card_id").
		WillReturnRows(transactionRow(1, 1, -40, "SPEND", "order_1"))
	mock.ExpectQuery("SELECT (.+) FROM `gift_card_transaction` WHERE reference_id").
		WillReturnRows(transactionRow(2, 1, 40, "REFUND", "order_1_REFUND"))
	mock.ExpectRollback()

	_, err := svc.Refund(context.Background(), &RefundRequest{
		Code:        "AAAA-BBBB-CCCC",
		ReferenceID: "order_1",
	})
	assert.ErrorIs(t, err, ErrAlreadyRefunded)

	assert.NoError(t, mock.ExpectationsWereMet())
}
