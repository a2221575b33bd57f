package memorylog

import (
	"context"
	"strconv"
	"sync"

	"github.com/chn0318/redolog/redolog/record"
	"github.com/chn0318/redolog/sharedlog"
)

// AppendHook runs before a record is stored. A non-nil error fails the
// append. Hooks may block.
type AppendHook func(ctx context.Context, stream string, fields record.Fields) error

// QueryHook runs before Len, Exists and Delete. A non-nil error fails the call.
type QueryHook func(stream string) error

// MemoryLog is an in-process sharedlog.Store.
type MemoryLog struct {
	streams map[string][]record.Fields
	tail    uint64
	mu      sync.RWMutex

	hookMu     sync.RWMutex
	appendHook AppendHook
	queryHook  QueryHook
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		streams: make(map[string][]record.Fields),
	}
}

var _ sharedlog.Store = (*MemoryLog)(nil)

// SetAppendHook installs h, replacing any previous hook.
func (l *MemoryLog) SetAppendHook(h AppendHook) {
	l.hookMu.Lock()
	defer l.hookMu.Unlock()
	l.appendHook = h
}

// SetQueryHook installs h, replacing any previous hook.
func (l *MemoryLog) SetQueryHook(h QueryHook) {
	l.hookMu.Lock()
	defer l.hookMu.Unlock()
	l.queryHook = h
}

func (l *MemoryLog) Stream(name string) sharedlog.Stream {
	return &memoryStream{log: l, name: name}
}

func (l *MemoryLog) Close() error { return nil }

func (l *MemoryLog) Ping(ctx context.Context) error { return nil }

// Records returns a copy of the records appended to stream, oldest first.
func (l *MemoryLog) Records(stream string) []record.Fields {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]record.Fields(nil), l.streams[stream]...)
}

// Put stores a record directly, bypassing hooks.
func (l *MemoryLog) Put(stream string, fields record.Fields) sharedlog.RecordRef {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tail++
	l.streams[stream] = append(l.streams[stream], fields)
	return sharedlog.RecordRef{ID: strconv.FormatUint(l.tail, 10) + "-0"}
}

func (l *MemoryLog) hooks() (AppendHook, QueryHook) {
	l.hookMu.RLock()
	defer l.hookMu.RUnlock()
	return l.appendHook, l.queryHook
}

type memoryStream struct {
	log  *MemoryLog
	name string
}

func (s *memoryStream) Name() string { return s.name }

func (s *memoryStream) Append(ctx context.Context, fields record.Fields) (sharedlog.RecordRef, error) {
	if h, _ := s.log.hooks(); h != nil {
		if err := h(ctx, s.name, fields); err != nil {
			return sharedlog.RecordRef{}, err
		}
	}
	return s.log.Put(s.name, fields), nil
}

func (s *memoryStream) Len(ctx context.Context) (int64, error) {
	if err := s.query(); err != nil {
		return 0, err
	}
	s.log.mu.RLock()
	defer s.log.mu.RUnlock()
	return int64(len(s.log.streams[s.name])), nil
}

func (s *memoryStream) Exists(ctx context.Context) (bool, error) {
	if err := s.query(); err != nil {
		return false, err
	}
	s.log.mu.RLock()
	defer s.log.mu.RUnlock()
	_, ok := s.log.streams[s.name]
	return ok, nil
}

func (s *memoryStream) Delete(ctx context.Context) (bool, error) {
	if err := s.query(); err != nil {
		return false, err
	}
	s.log.mu.Lock()
	defer s.log.mu.Unlock()
	_, ok := s.log.streams[s.name]
	delete(s.log.streams, s.name)
	return ok, nil
}

func (s *memoryStream) query() error {
	if _, h := s.log.hooks(); h != nil {
		return h(s.name)
	}
	return nil
}
