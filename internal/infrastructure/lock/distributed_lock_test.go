package lock

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCardLock_TokenUniquePerAcquisition(t *testing.T) {
	client, _ := redismock.NewClientMock()
	defer client.Close()

	a := NewCardLock(client, "AAAA-BBBB-CCCC")
	b := NewCardLock(client, "AAAA-BBBB-CCCC")

	assert.Equal(t, a.key, b.key)
	assert.NotEmpty(t, a.value)
	assert.NotEqual(t, a.value, b.value, "two acquisitions must not share a holder token")
}

func TestDistributedLock_TryLockAndUnlock(t *testing.T) {
	client, mock := redismock.NewClientMock()
	defer client.Close()

	l := NewCardLock(client, "AAAA-BBBB-CCCC")

	mock.ExpectSetNX(l.key, l.value, 30*time.Second).SetVal(true)
	mock.ExpectEval(UnlockScript, []string{l.key}, l.value).SetVal(int64(1))

	ok, err := l.TryLock(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, l.Unlock(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDistributedLock_LockRetriesThenFails(t *testing.T) {
	client, mock := redismock.NewClientMock()
	defer client.Close()

	l := NewCardLock(client, "AAAA-BBBB-CCCC")
	for i := 0; i < 3; i++ {
		mock.ExpectSetNX(l.key, l.value, 30*time.Second).SetVal(false)
	}

	err := l.Lock(context.Background(), time.Millisecond, 3)
	assert.ErrorIs(t, err, ErrLockFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
