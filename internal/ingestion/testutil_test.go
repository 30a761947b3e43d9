package ingestion

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"listing-cache/internal/bptf"
	"listing-cache/internal/domain"
	"listing-cache/internal/storage"
	"listing-cache/internal/storage/memory"
)

var (
	testNow    = time.Unix(1700000000, 0).UTC()
	testLogger = log.New(io.Discard, "", 0)
)

// fakeSource is a SnapshotSource returning canned responses.
type fakeSource struct {
	mu    sync.Mutex
	resp  *bptf.SnapshotResponse
	err   error
	calls int
}

func (f *fakeSource) GetSnapshot(_ context.Context, _ string) (*bptf.SnapshotResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.resp, f.err
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// failingStore fails every write.
type failingStore struct {
	*memory.ListingStore
}

var errStoreDown = errors.New("store unavailable")

func (f failingStore) Upsert(_ context.Context, l domain.Listing) (storage.UpsertResult, error) {
	return 0, storage.Wrap("upsert", l.Key.String(), errStoreDown)
}

func (f failingStore) Delete(_ context.Context, key domain.ListingKey) (bool, error) {
	return false, storage.Wrap("delete", key.String(), errStoreDown)
}

// failingArchive fails every append.
type failingArchive struct{}

func (failingArchive) Append(context.Context, []storage.ListingChange) error {
	return errors.New("archive unavailable")
}

func (failingArchive) GetByKey(context.Context, domain.ListingKey) ([]storage.ListingChange, error) {
	return nil, nil
}

// fakeStream is a MessageStream fed by the test.
type fakeStream struct {
	ch     chan bptf.Message
	err    error
	closed chan struct{}
	once   sync.Once
}

func newFakeStream(err error, msgs ...string) *fakeStream {
	s := &fakeStream{
		ch:     make(chan bptf.Message, len(msgs)),
		err:    err,
		closed: make(chan struct{}),
	}
	for _, m := range msgs {
		s.ch <- bptf.Message{Data: []byte(m), ReceivedAt: testNow}
	}
	close(s.ch)
	return s
}

func (s *fakeStream) Messages() <-chan bptf.Message { return s.ch }
func (s *fakeStream) Err() error                    { return s.err }
func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
