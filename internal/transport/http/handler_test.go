package http

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/nostrledger/ledger-service/internal/config"
	"github.com/nostrledger/ledger-service/internal/logger"
	"github.com/nostrledger/ledger-service/internal/model"
	"github.com/nostrledger/ledger-service/internal/repo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestBalanceEndpoint_CacheMissThenDB(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.Token{}, &model.Balance{}, &model.BalanceSnapshot{}))

	tok := model.Token{ID: uuid.New(), Name: "gold"}
	assert.NoError(t, db.Create(&tok).Error)
	assert.NoError(t, db.Create(&model.Balance{
		ID: uuid.New(), AccountID: "acct-a", TokenID: tok.ID,
		Amount: decimal.NewFromInt(75), SnapshotID: uuid.New(), EventID: "ev1",
	}).Error)

	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet("balance:gold:acct-a").RedisNil()
	mock.ExpectSet("balance:gold:acct-a", "75", 5*time.Minute).SetVal("OK")

	log, _ := logger.NewLogger()
	rep := repo.NewRepository(db, rdb, nil, log)
	router := NewRouter(rep, config.RateLimitConfig{RPS: 100, Burst: 100}, log)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/balances/acct-a/gold", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"75"`)
}

func TestHistoryEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.Token{}, &model.Balance{}, &model.BalanceSnapshot{}))

	tok := model.Token{ID: uuid.New(), Name: "gold"}
	assert.NoError(t, db.Create(&tok).Error)
	for i, amt := range []int64{100, 60} {
		assert.NoError(t, db.Create(&model.BalanceSnapshot{
			ID:            uuid.New(),
			Amount:        decimal.NewFromInt(amt),
			Delta:         decimal.NewFromInt(amt),
			TransactionID: uuid.New(),
			EventID:       fmt.Sprintf("ev%d", i),
			TokenID:       tok.ID,
			AccountID:     "acct-a",
		}).Error)
	}

	log, _ := logger.NewLogger()
	rep := repo.NewRepository(db, nil, nil, log)
	router := NewRouter(rep, config.RateLimitConfig{RPS: 100, Burst: 100}, log)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/balances/acct-a/gold/history", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ev0"`)
	assert.Contains(t, w.Body.String(), `"ev1"`)
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	log, _ := logger.NewLogger()
	rep := repo.NewRepository(db, nil, nil, log)
	router := NewRouter(rep, config.RateLimitConfig{RPS: 100, Burst: 100}, log)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
