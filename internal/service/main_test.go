package service

import (
	"fmt"
	"testing"
	"time"

	"giftledger/internal/config"
	"giftledger/internal/infrastructure/lock"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redismock/v8"
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

func setupTestRedis(t *testing.T) (*redis.Client, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	t.Cleanup(func() { client.Close() })
	return client, mock
}

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{CardEvents: "giftcard.events"},
		},
		Business: config.BusinessConfig{
			MaxRetryCount:   3,
			CodeMaxAttempts: 8,
		},
	}
}

// expectCardLock registers the SetNX acquire and Lua release for one
// per-card lock cycle. The holder token is random per acquisition, so the
// matcher pins the key and lets the token through.
func expectCardLock(mock redismock.ClientMock, code string) {
	key := "card:lock:" + code
	matchKey := func(expected, actual []interface{}) error {
		for _, arg := range actual {
			if arg == key {
				return nil
			}
		}
		return fmt.Errorf("lock key %q not in command args %v", key, actual)
	}
	mock.CustomMatch(matchKey).ExpectSetNX(key, "", 30*time.Second).SetVal(true)
	mock.CustomMatch(matchKey).ExpectEval(lock.UnlockScript, []string{key}).SetVal(int64(1))
}

var cardColumns = []string{
	"id", "code", "balance", "currency", "is_active",
	"idempotency_key", "owner_email", "created_at", "updated_at",
}

func cardRow(id int64, code string, balance int64, currency string, isActive bool) *sqlmock.Rows {
	return sqlmock.NewRows(cardColumns).
		AddRow(id, code, balance, currency, isActive, nil, "", time.Now(), time.Now())
}

var transactionColumns = []string{
	"id", "transaction_no", "card_id", "amount", "type", "reference_id", "created_at",
}

func transactionRow(id, cardID, amount int64, txType, referenceID string) *sqlmock.Rows {
	return sqlmock.NewRows(transactionColumns).
		AddRow(id, "TXN00000000000000000001", cardID, amount, txType, referenceID, time.Now())
}

func emptyCardRows() *sqlmock.Rows {
	return sqlmock.NewRows(cardColumns)
}

func emptyTransactionRows() *sqlmock.Rows {
	return sqlmock.NewRows(transactionColumns)
}
