package numbering_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"smartnagrik/backend/internal/apperr"
	"smartnagrik/backend/internal/numbering"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCounter struct {
	mock.Mock
}

func (m *MockCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.IntCmd)
}

func (m *MockCounter) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	called := m.Called(ctx, script, keys, args)
	return called.Get(0).(*redis.Cmd)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "SNS-2025-001", numbering.Format("SNS", 2025, 1, 3))
	assert.Equal(t, "SNS-2025-042", numbering.Format("SNS", 2025, 42, 3))
	assert.Equal(t, "SNS-2025-1000", numbering.Format("SNS", 2025, 1000, 3), "width is a minimum")
}

func TestGenerator_RedisSequenceUsesPerYearKey(t *testing.T) {
	// Arrange
	ctx := context.Background()
	rdb := new(MockCounter)
	rdb.On("Incr", ctx, "sns:complaint_seq:2025").Return(redis.NewIntResult(7, nil)).Once()
	gen := numbering.NewGenerator(numbering.NewRedisSequence(rdb))

	// Act
	number, err := gen.NextNumber(ctx, 2025)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "SNS-2025-007", number)
	rdb.AssertExpectations(t)
}

func TestGenerator_SequenceFailureIsStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	rdb := new(MockCounter)
	rdb.On("Incr", ctx, mock.Anything).Return(redis.NewIntResult(0, errors.New("connection refused")))
	gen := numbering.NewGenerator(numbering.NewRedisSequence(rdb))

	number, err := gen.NextNumber(ctx, 2025)

	assert.Empty(t, number)
	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}

func TestMemorySequence_PeriodsAreIndependent(t *testing.T) {
	ctx := context.Background()
	seq := numbering.NewMemorySequence()

	a, _ := seq.Next(ctx, 2025)
	b, _ := seq.Next(ctx, 2025)
	c, _ := seq.Next(ctx, 2026)

	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(2), b)
	assert.Equal(t, int64(1), c)
}

func TestMemorySequence_SeedOnlyMovesForward(t *testing.T) {
	ctx := context.Background()
	seq := numbering.NewMemorySequence()
	require.NoError(t, seq.Seed(ctx, 2025, 10))
	require.NoError(t, seq.Seed(ctx, 2025, 3))

	n, err := seq.Next(ctx, 2025)

	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
}

func TestGenerator_ConcurrentNumbersAreUnique(t *testing.T) {
	ctx := context.Background()
	gen := numbering.NewGenerator(numbering.NewMemorySequence())

	const n = 200
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]bool, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			number, err := gen.NextNumber(ctx, 2025)
			assert.NoError(t, err)
			mu.Lock()
			seen[number] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}

func TestGenerator_ReconcileMovesCounterPastHighest(t *testing.T) {
	// Arrange
	ctx := context.Background()
	seq := numbering.NewMemorySequence()
	gen := numbering.NewGenerator(seq)

	// Act
	err := gen.Reconcile(ctx, 2025, "SNS-2025-1041")
	number, nextErr := gen.NextNumber(ctx, 2025)

	// Assert
	require.NoError(t, err)
	require.NoError(t, nextErr)
	assert.Equal(t, "SNS-2025-1042", number)
	assert.Equal(t, "SNS-2025-", gen.Prefix(2025))
}

func TestGenerator_ReconcileRejectsForeignNumbers(t *testing.T) {
	ctx := context.Background()
	gen := numbering.NewGenerator(numbering.NewMemorySequence())

	for _, bad := range []string{"SNS-2024-007", "SNS-2025-", "SNS-2025-abc", "XYZ-2025-001"} {
		assert.ErrorIs(t, gen.Reconcile(ctx, 2025, bad), apperr.ErrValidation, bad)
	}
}

func TestRedisSequence_SeedRunsMaxSetScript(t *testing.T) {
	ctx := context.Background()
	rdb := new(MockCounter)
	rdb.On("Eval", ctx, mock.AnythingOfType("string"), []string{"sns:complaint_seq:2025"}, []interface{}{int64(12)}).
		Return(redis.NewCmdResult(int64(12), nil)).Once()
	gen := numbering.NewGenerator(numbering.NewRedisSequence(rdb))

	err := gen.Reconcile(ctx, 2025, "SNS-2025-012")

	require.NoError(t, err)
	rdb.AssertExpectations(t)
}

func TestRedisSequence_SeedFailureIsStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	rdb := new(MockCounter)
	rdb.On("Eval", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return(redis.NewCmdResult(nil, errors.New("connection refused")))
	gen := numbering.NewGenerator(numbering.NewRedisSequence(rdb))

	err := gen.Reconcile(ctx, 2025, "SNS-2025-012")

	assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
}
