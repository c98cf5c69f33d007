package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnmchuo/tenant-reports/internal/snapshot"
)

type mockCreator struct {
	mu      sync.Mutex
	tenants []string
	create  func(ctx context.Context, tenantID string) (*snapshot.Snapshot, error)
}

func (m *mockCreator) CreateSnapshot(ctx context.Context, tenantID string) (*snapshot.Snapshot, error) {
	m.mu.Lock()
	m.tenants = append(m.tenants, tenantID)
	m.mu.Unlock()
	if m.create != nil {
		return m.create(ctx, tenantID)
	}
	return &snapshot.Snapshot{TenantID: tenantID}, nil
}

func (m *mockCreator) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.tenants...)
}

type mockLister struct {
	tenants []string
	err     error
}

func (m mockLister) ListTenants(context.Context) ([]string, error) {
	return m.tenants, m.err
}

func TestLister_MergesConfiguredAndStored(t *testing.T) {
	l := NewLister([]string{" globex ", "acme", ""}, mockLister{tenants: []string{"acme", "initech"}})

	got, err := l.ListTenants(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "globex", "initech"}, got)
}

func TestLister_StoreFailure(t *testing.T) {
	l := NewLister([]string{"acme"}, mockLister{err: snapshot.ErrStoreFailure})

	_, err := l.ListTenants(context.Background())

	assert.ErrorIs(t, err, snapshot.ErrStoreFailure)
}

func TestLister_ConfiguredOnly(t *testing.T) {
	got, err := NewLister([]string{"b", "a", "b"}, nil).ListTenants(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestDailySnapshot_ContinuesPastFailures(t *testing.T) {
	errGlobex := errors.New("globex source down")
	creator := &mockCreator{create: func(_ context.Context, tenantID string) (*snapshot.Snapshot, error) {
		if tenantID == "globex" {
			return nil, errGlobex
		}
		return &snapshot.Snapshot{TenantID: tenantID}, nil
	}}
	j := NewDailySnapshot(creator, mockLister{tenants: []string{"acme", "globex", "initech"}}, 0, nil)

	summary, err := j.Run(context.Background())

	assert.ErrorIs(t, err, errGlobex)
	assert.Equal(t, []string{"acme", "globex", "initech"}, creator.seen())
	assert.Equal(t, 3, summary.Tenants)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, []string{"globex"}, summary.Failed)
	assert.False(t, summary.Finished.Before(summary.Started))
}

func TestDailySnapshot_ListFailure(t *testing.T) {
	creator := &mockCreator{}
	j := NewDailySnapshot(creator, mockLister{err: errors.New("db down")}, 0, nil)

	_, err := j.Run(context.Background())

	assert.Error(t, err)
	assert.Empty(t, creator.seen())
}

func TestDailySnapshot_PerTenantTimeout(t *testing.T) {
	creator := &mockCreator{create: func(ctx context.Context, _ string) (*snapshot.Snapshot, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	j := NewDailySnapshot(creator, mockLister{tenants: []string{"acme", "globex"}}, 10*time.Millisecond, nil)

	summary, err := j.Run(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"acme", "globex"}, summary.Failed)
}

func TestDailySnapshot_StopsOnCancelledContext(t *testing.T) {
	creator := &mockCreator{}
	j := NewDailySnapshot(creator, mockLister{tenants: []string{"acme", "globex"}}, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := j.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, creator.seen())
}

func TestScheduler_RunsJob(t *testing.T) {
	ran := make(chan string, 10)
	creator := &mockCreator{create: func(_ context.Context, tenantID string) (*snapshot.Snapshot, error) {
		ran <- tenantID
		return &snapshot.Snapshot{TenantID: tenantID}, nil
	}}
	j := NewDailySnapshot(creator, mockLister{tenants: []string{"acme"}}, 0, nil)

	s, err := NewScheduler("@every 1s", time.UTC, j, nil)
	require.NoError(t, err)
	s.Start()

	select {
	case tenantID := <-ran:
		assert.Equal(t, "acme", tenantID)
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestParseSchedule(t *testing.T) {
	_, err := ParseSchedule("0 0 * * *")
	assert.NoError(t, err)

	_, err = ParseSchedule("not a schedule")
	assert.Error(t, err)

	_, err = NewScheduler("61 * * * *", nil, nil, nil)
	assert.Error(t, err)
}
