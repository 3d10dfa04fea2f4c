package caching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type CacheServiceTestSuite struct {
	suite.Suite
	mock    redismock.ClientMock
	service *redisCacheService
}

func (suite *CacheServiceTestSuite) SetupTest() {
	client, mock := redismock.NewClientMock()
	suite.mock = mock
	suite.service = &redisCacheService{client: client, newToken: func() string { return "token-1" }}
}

func (suite *CacheServiceTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func TestCacheServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CacheServiceTestSuite))
}

func (suite *CacheServiceTestSuite) TestIsRateLimited_FirstRequestSetsExpiry() {
	ctx := context.Background()
	suite.mock.ExpectIncr("momoinvoice:ratelimit:checkout:1.2.3.4").SetVal(1)
	suite.mock.ExpectExpire("momoinvoice:ratelimit:checkout:1.2.3.4", time.Minute).SetVal(true)

	limited, err := suite.service.IsRateLimited(ctx, "checkout:1.2.3.4", 10, time.Minute)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), limited)
}

func (suite *CacheServiceTestSuite) TestIsRateLimited_OverLimit() {
	ctx := context.Background()
	suite.mock.ExpectIncr("momoinvoice:ratelimit:checkout:1.2.3.4").SetVal(11)

	limited, err := suite.service.IsRateLimited(ctx, "checkout:1.2.3.4", 10, time.Minute)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), limited)
}

func (suite *CacheServiceTestSuite) TestIsRateLimited_RedisErrorFailsClosed() {
	ctx := context.Background()
	suite.mock.ExpectIncr("momoinvoice:ratelimit:k").SetErr(errors.New("connection refused"))

	limited, err := suite.service.IsRateLimited(ctx, "k", 10, time.Minute)
	assert.Error(suite.T(), err)
	assert.True(suite.T(), limited)
}

func (suite *CacheServiceTestSuite) TestAcquireLock_Acquired() {
	ctx := context.Background()
	suite.mock.ExpectSetNX("momoinvoice:lock:reminder:a:b", "token-1", 5*time.Minute).SetVal(true)

	token, ok, err := suite.service.AcquireLock(ctx, "reminder:a:b", 5*time.Minute)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), "token-1", token)
}

func (suite *CacheServiceTestSuite) TestAcquireLock_HeldElsewhere() {
	ctx := context.Background()
	suite.mock.ExpectSetNX("momoinvoice:lock:reminder:a:b", "token-1", 5*time.Minute).SetVal(false)

	token, ok, err := suite.service.AcquireLock(ctx, "reminder:a:b", 5*time.Minute)
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), ok)
	assert.Empty(suite.T(), token)
}

func (suite *CacheServiceTestSuite) TestReleaseLock() {
	ctx := context.Background()
	suite.mock.ExpectEval(releaseLockScript, []string{"momoinvoice:lock:reminder:a:b"}, "token-1").SetVal(int64(1))

	assert.NoError(suite.T(), suite.service.ReleaseLock(ctx, "reminder:a:b", "token-1"))
}
