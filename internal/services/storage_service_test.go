package services

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return minio.UploadInfo{}, args.Error(0)
}

func (m *MockObjectStore) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectStore) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	args := m.Called(ctx, bucketName, opts)
	return args.Error(0)
}

type StorageServiceTestSuite struct {
	suite.Suite
	store   *MockObjectStore
	storage *minioStorage
	now     time.Time
}

func (suite *StorageServiceTestSuite) SetupTest() {
	suite.store = &MockObjectStore{}
	suite.storage = newMinioStorage(suite.store, "webhook-events")
	suite.now = time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)
	suite.storage.now = func() time.Time { return suite.now }
}

func (suite *StorageServiceTestSuite) TearDownTest() {
	suite.store.AssertExpectations(suite.T())
}

func TestStorageServiceTestSuite(t *testing.T) {
	suite.Run(t, new(StorageServiceTestSuite))
}

func (suite *StorageServiceTestSuite) TestArchiveWebhook_Success() {
	ctx := context.Background()
	body := []byte(`{"event":"charge.success"}`)
	expectedKey := WebhookObjectKey(suite.now, "charge.success", "INV-2024-001-ABCD")

	suite.store.On("PutObject", ctx, "webhook-events", expectedKey, mock.Anything, int64(len(body)),
		mock.MatchedBy(func(opts minio.PutObjectOptions) bool { return opts.ContentType == "application/json" }),
	).Return(nil).Once()

	key, err := suite.storage.ArchiveWebhook(ctx, "charge.success", "INV-2024-001-ABCD", body)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), expectedKey, key)
}

func (suite *StorageServiceTestSuite) TestArchiveWebhook_StoreError() {
	ctx := context.Background()
	suite.store.On("PutObject", ctx, "webhook-events", mock.Anything, mock.Anything, int64(2), mock.Anything).
		Return(errors.New("connection refused")).Once()

	key, err := suite.storage.ArchiveWebhook(ctx, "charge.success", "REF", []byte("{}"))
	assert.Error(suite.T(), err)
	assert.Empty(suite.T(), key)
}

func (suite *StorageServiceTestSuite) TestEnsureBucketExists_CreatesMissingBucket() {
	ctx := context.Background()
	suite.store.On("BucketExists", ctx, "webhook-events").Return(false, nil).Once()
	suite.store.On("MakeBucket", ctx, "webhook-events", minio.MakeBucketOptions{}).Return(nil).Once()

	assert.NoError(suite.T(), suite.storage.EnsureBucketExists(ctx))
}

func (suite *StorageServiceTestSuite) TestEnsureBucketExists_AlreadyPresent() {
	ctx := context.Background()
	suite.store.On("BucketExists", ctx, "webhook-events").Return(true, nil).Once()

	assert.NoError(suite.T(), suite.storage.EnsureBucketExists(ctx))
}

func (suite *StorageServiceTestSuite) TestPing_MissingBucket() {
	ctx := context.Background()
	suite.store.On("BucketExists", ctx, "webhook-events").Return(false, nil).Once()

	assert.Error(suite.T(), suite.storage.Ping(ctx))
}

func TestWebhookObjectKey(t *testing.T) {
	at := time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)

	key := WebhookObjectKey(at, "charge.success", "INV/../2024 001")
	assert.Equal(t, "paystack/2024/03/09/charge.success/INV_.._2024_001-1709980200000000000.json", key)

	key = WebhookObjectKey(at, "", "")
	assert.Contains(t, key, "/unknown/no-reference-")
}
