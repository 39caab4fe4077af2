package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alextreichler/detailacademy/internal/models"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate())

	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.now = clock.Now
	return s, clock
}

func TestMigrateIsRepeatable(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Migrate())

	var n int
	require.NoError(t, s.DB.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestMigrateFSAppliesInOrder(t *testing.T) {
	s, _ := newTestStore(t)
	fsys := fstest.MapFS{
		"002_b.sql":  {Data: []byte(`ALTER TABLE notes ADD COLUMN body TEXT;`)},
		"001_a.sql":  {Data: []byte(`CREATE TABLE notes (id INTEGER PRIMARY KEY);`)},
		"README.txt": {Data: []byte(`ignored`)},
	}
	require.NoError(t, s.MigrateFS(fsys))

	_, err := s.DB.Exec(`INSERT INTO notes (id, body) VALUES (1, 'x')`)
	assert.NoError(t, err)
}

func TestClaimLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	c, err := s.Claim(ctx, models.KindCourse, "p1", "key-a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ClaimNew, c.Status)
	assert.Equal(t, "key-a", c.Key)

	_, err = s.Claim(ctx, models.KindCourse, "p1", "key-b", time.Minute)
	assert.True(t, errors.Is(err, ErrInFlight))

	require.NoError(t, s.MarkPaid(ctx, models.KindCourse, "p1", "pi_dev_1", []byte(`{"id":"p1"}`)))

	c, err = s.Claim(ctx, models.KindCourse, "p1", "key-c", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ClaimPaid, c.Status)
	assert.JSONEq(t, `{"id":"p1"}`, string(c.Receipt))

	a, err := s.GetAttempt(ctx, models.KindCourse, "p1")
	require.NoError(t, err)
	assert.Equal(t, StatePaid, a.State)
	assert.Equal(t, "pi_dev_1", a.TransactionID)
	assert.Equal(t, "key-a", a.Key)
}

func TestClaimKindsAreSeparate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Claim(ctx, models.KindCourse, "x1", "k1", time.Minute)
	require.NoError(t, err)
	c, err := s.Claim(ctx, models.KindBooking, "x1", "k2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ClaimNew, c.Status)
}

func TestReleaseAllowsRetryWithNewKey(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Claim(ctx, models.KindBooking, "b1", "first", time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, models.KindBooking, "b1"))

	c, err := s.Claim(ctx, models.KindBooking, "b1", "second", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ClaimNew, c.Status)
	assert.Equal(t, "second", c.Key)
}

func TestStaleClaimKeepsOriginalKey(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	_, err := s.Claim(ctx, models.KindSubscription, "s1", "orig", time.Minute)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = s.Claim(ctx, models.KindSubscription, "s1", "other", time.Minute)
	assert.True(t, errors.Is(err, ErrInFlight))

	clock.Advance(2 * time.Second)
	c, err := s.Claim(ctx, models.KindSubscription, "s1", "other", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ClaimNew, c.Status)
	assert.Equal(t, "orig", c.Key)
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := s.Claim(ctx, models.KindCourse, "race", "k", time.Minute)
			if err == nil && c.Status == ClaimNew {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMarkPaidUnknownRecord(t *testing.T) {
	s, _ := newTestStore(t)
	err := s.MarkPaid(context.Background(), models.KindCourse, "ghost", "tx", nil)
	assert.Error(t, err)
}

func TestPrune(t *testing.T) {
	s, clock := newTestStore(t)
	ctx := context.Background()

	_, err := s.Claim(ctx, models.KindCourse, "old-paid", "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.MarkPaid(ctx, models.KindCourse, "old-paid", "tx", []byte(`{}`)))
	_, err = s.Claim(ctx, models.KindCourse, "old-inflight", "k", time.Minute)
	require.NoError(t, err)

	clock.Advance(48 * time.Hour)
	_, err = s.Claim(ctx, models.KindCourse, "fresh", "k", time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.MarkPaid(ctx, models.KindCourse, "fresh", "tx", []byte(`{}`)))

	n, err := s.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetAttempt(ctx, models.KindCourse, "old-paid")
	assert.Error(t, err)
	_, err = s.GetAttempt(ctx, models.KindCourse, "old-inflight")
	assert.NoError(t, err)
	_, err = s.GetAttempt(ctx, models.KindCourse, "fresh")
	assert.NoError(t, err)
}
