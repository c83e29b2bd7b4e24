package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avetisov/lexstream/internal/model"
)

// stubStore counts saves and optionally fails them.
type stubStore struct {
	mu       sync.Mutex
	accepted int
	rejected int
	fail     error
}

func (s *stubStore) SaveAccepted(context.Context, *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted++
	return s.fail
}

func (s *stubStore) SaveRejected(context.Context, *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected++
	return s.fail
}

func (s *stubStore) Close(context.Context) error { return nil }

func TestAsyncWriter_DrainsEverySave(t *testing.T) {
	stub := &stubStore{}
	w := NewAsyncWriter(context.Background(), stub, 4)

	for i := 0; i < 50; i++ {
		require.NoError(t, w.Accept(context.Background(), &model.Document{ID: "a"}))
		require.NoError(t, w.Reject(context.Background(), &model.Document{ID: "r"}))
	}
	require.NoError(t, w.Flush())

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Equal(t, 50, stub.accepted)
	require.Equal(t, 50, stub.rejected)
}

func TestAsyncWriter_SurfacesErrorsAtFlush(t *testing.T) {
	boom := errors.New("disk full")
	stub := &stubStore{fail: boom}
	w := NewAsyncWriter(context.Background(), stub, 2)

	require.NoError(t, w.Accept(context.Background(), &model.Document{ID: "a"}))
	require.NoError(t, w.Accept(context.Background(), &model.Document{ID: "b"}))

	err := w.Flush()
	require.ErrorIs(t, err, boom)
}
