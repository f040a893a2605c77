package credentials_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/glorpus-work/fetch/pkg/credentials"
	"github.com/glorpus-work/fetch/pkg/credentials/mocks"
	"github.com/glorpus-work/fetch/pkg/model"
)

var testOrigin = model.Origin{Scheme: "https", Host: "example.com", Port: 443}

func TestCacheResolvesInnerOnce(t *testing.T) {
	ctrl := gomock.NewController(t)

	cred := &model.Credential{Username: "alice", Password: "secret"}
	inner := mocks.NewMockProvider(ctrl)
	inner.EXPECT().Resolve(gomock.Any(), testOrigin, false).Return(cred, nil).Times(1)

	cache := credentials.NewCache(inner)

	for i := 0; i < 3; i++ {
		got, err := cache.Resolve(context.Background(), testOrigin, false)
		require.NoError(t, err)
		assert.Equal(t, cred, got)
	}
}

func TestCacheMemoizesNoCredential(t *testing.T) {
	ctrl := gomock.NewController(t)

	inner := mocks.NewMockProvider(ctrl)
	inner.EXPECT().Resolve(gomock.Any(), testOrigin, false).Return(nil, nil).Times(1)

	cache := credentials.NewCache(inner)

	for i := 0; i < 2; i++ {
		got, err := cache.Resolve(context.Background(), testOrigin, false)
		require.NoError(t, err)
		assert.Nil(t, got)
	}
}

func TestCacheReportInvalidEvictsAndForwards(t *testing.T) {
	ctrl := gomock.NewController(t)

	first := &model.Credential{Username: "alice", Password: "wrong"}
	second := &model.Credential{Username: "alice", Password: "right"}

	inner := mocks.NewMockProvider(ctrl)
	gomock.InOrder(
		inner.EXPECT().Resolve(gomock.Any(), testOrigin, false).Return(first, nil),
		inner.EXPECT().ReportInvalid(testOrigin),
		inner.EXPECT().Resolve(gomock.Any(), testOrigin, false).Return(second, nil),
	)

	cache := credentials.NewCache(inner)

	got, err := cache.Resolve(context.Background(), testOrigin, false)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	cache.ReportInvalid(testOrigin)

	got, err = cache.Resolve(context.Background(), testOrigin, false)
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestCacheErrorsAreNotMemoized(t *testing.T) {
	ctrl := gomock.NewController(t)

	cred := &model.Credential{Username: "alice", Password: "secret"}
	inner := mocks.NewMockProvider(ctrl)
	gomock.InOrder(
		inner.EXPECT().Resolve(gomock.Any(), testOrigin, false).Return(nil, context.Canceled),
		inner.EXPECT().Resolve(gomock.Any(), testOrigin, false).Return(cred, nil),
	)

	cache := credentials.NewCache(inner)

	_, err := cache.Resolve(context.Background(), testOrigin, false)
	require.Error(t, err)

	got, err := cache.Resolve(context.Background(), testOrigin, false)
	require.NoError(t, err)
	assert.Equal(t, cred, got)
}

// Two tasks racing on the same origin must produce one inner resolution; the
// loser blocks on the per-origin critical section and reuses the answer.
func TestCacheConcurrentResolveSingleInnerCall(t *testing.T) {
	ctrl := gomock.NewController(t)

	cred := &model.Credential{Username: "alice", Password: "secret"}
	inner := mocks.NewMockProvider(ctrl)
	inner.EXPECT().Resolve(gomock.Any(), testOrigin, false).DoAndReturn(
		func(context.Context, model.Origin, bool) (*model.Credential, error) {
			time.Sleep(50 * time.Millisecond)
			return cred, nil
		}).Times(1)

	cache := credentials.NewCache(inner)

	const workers = 8
	var wg sync.WaitGroup
	results := make([]*model.Credential, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = cache.Resolve(context.Background(), testOrigin, false)
		}()
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, cred, results[i])
	}
}

func TestCacheIndependentOrigins(t *testing.T) {
	ctrl := gomock.NewController(t)

	otherOrigin := model.Origin{Scheme: "https", Host: "other.example.com", Port: 443}
	credA := &model.Credential{Username: "a"}
	credB := &model.Credential{Username: "b"}

	inner := mocks.NewMockProvider(ctrl)
	inner.EXPECT().Resolve(gomock.Any(), testOrigin, false).Return(credA, nil).Times(1)
	inner.EXPECT().Resolve(gomock.Any(), otherOrigin, false).Return(credB, nil).Times(1)

	cache := credentials.NewCache(inner)

	got, err := cache.Resolve(context.Background(), testOrigin, false)
	require.NoError(t, err)
	assert.Equal(t, credA, got)

	got, err = cache.Resolve(context.Background(), otherOrigin, false)
	require.NoError(t, err)
	assert.Equal(t, credB, got)
}
