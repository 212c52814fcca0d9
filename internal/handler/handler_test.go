package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"giftledger/internal/config"
	"giftledger/pkg/response"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestHandler(t *testing.T) *Handler {
	t.Helper()

	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	rdb, _ := redismock.NewClientMock()
	t.Cleanup(func() { rdb.Close() })

	return NewHandler(gdb, rdb, &config.Config{})
}

// A spend or split without a caller-supplied reference_id must be rejected;
// minting one server-side would give every retry a fresh reference and defeat
// the replay protection.
func TestMutations_MissingReferenceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := setupTestHandler(t)

	tests := []struct {
		name    string
		route   string
		handler gin.HandlerFunc
		body    string
	}{
		{
			name:    "spend",
			route:   "/spend",
			handler: h.SpendCard,
			body:    `{"code":"AAAA-BBBB-CCCC","amount":40}`,
		},
		{
			name:    "split",
			route:   "/split",
			handler: h.SplitCard,
			body:    `{"sourceCode":"AAAA-BBBB-CCCC","splitAmount":30,"newOwnerEmail":"new@example.com"}`,
		},
		{
			name:    "refund",
			route:   "/refund",
			handler: h.RefundCard,
			body:    `{"code":"AAAA-BBBB-CCCC"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST(tt.route, tt.handler)

			req := httptest.NewRequest(http.MethodPost, tt.route, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			var body response.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, response.CodeParamError, body.Code)
			assert.Contains(t, body.Message, "ReferenceID")
		})
	}
}
