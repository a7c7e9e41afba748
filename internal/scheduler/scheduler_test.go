package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nihalnihalani/EnrichedMMCP/internal/infrastructure"
	"github.com/nihalnihalani/EnrichedMMCP/internal/ingest"
	"github.com/nihalnihalani/EnrichedMMCP/internal/shared/testutil"
)

type fakeLoader struct {
	calls   atomic.Int32
	paths   chan string
	traceID chan string
	err     error
}

func newFakeLoader(err error) *fakeLoader {
	return &fakeLoader{paths: make(chan string, 4), traceID: make(chan string, 4), err: err}
}

func (f *fakeLoader) Load(ctx context.Context, path string) (ingest.Result, error) {
	f.calls.Add(1)
	f.paths <- path
	f.traceID <- infrastructure.GetTraceID(ctx)
	if f.err != nil {
		return ingest.Result{}, f.err
	}
	return ingest.Result{Rows: 42}, nil
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "descriptor", cfg: Config{Source: "data.csv", Schedule: "@daily"}},
		{name: "every", cfg: Config{Source: "data.csv", Schedule: "@every 1h"}},
		{name: "five fields", cfg: Config{Source: "data.csv", Schedule: "30 6 * * 1-5"}},
		{name: "no source", cfg: Config{Schedule: "@daily"}, wantErr: ErrNoSource.Error()},
		{name: "bad schedule", cfg: Config{Source: "data.csv", Schedule: "every day"}, wantErr: "invalid ingest schedule"},
		{name: "empty schedule", cfg: Config{Source: "data.csv"}, wantErr: "invalid ingest schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg, newFakeLoader(nil), nil)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, s.Next().IsZero())
		})
	}
}

func TestRunNow(t *testing.T) {
	loader := newFakeLoader(nil)
	s, err := New(Config{Source: "market.xlsx", Schedule: "@daily"}, loader, nil)
	require.NoError(t, err)

	res, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, res.Rows)
	assert.Equal(t, "market.xlsx", <-loader.paths)
	assert.NotEmpty(t, <-loader.traceID)

	last := s.Last()
	assert.Equal(t, 42, last.Result.Rows)
	assert.Empty(t, last.Err)
	assert.False(t, last.At.IsZero())
}

func TestRunNow_Failure(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	loader := newFakeLoader(errors.New("[PARSING] parse dataset: missing \"date\" column"))
	s, err := New(Config{Source: "broken.csv", Schedule: "@daily"}, loader, logger)
	require.NoError(t, err)

	_, err = s.RunNow(context.Background())
	assert.Error(t, err)
	assert.Contains(t, s.Last().Err, "missing")
	assert.True(t, logs.ContainsMessage("scheduled ingest failed"))
}

func TestRun_RunOnStartAndStop(t *testing.T) {
	loader := newFakeLoader(nil)
	s, err := New(Config{Source: "market.csv", Schedule: "@daily", RunOnStart: true}, loader, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case path := <-loader.paths:
		assert.Equal(t, "market.csv", path)
	case <-time.After(2 * time.Second):
		t.Fatal("initial load did not run")
	}

	require.Eventually(t, func() bool { return !s.Next().IsZero() }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, s.Next().After(time.Now()))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(1), loader.calls.Load())
}
