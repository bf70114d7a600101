package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Change describes one key written or removed by another process.
type Change struct {
	Key     string
	Value   string
	Deleted bool
}

// ChangeFeed delivers changes made to the durable scope outside this
// process. fn is invoked from a feed goroutine until ctx is cancelled.
type ChangeFeed interface {
	OnExternalSessionChange(ctx context.Context, fn func(Change)) error
}

// FileWatchFeed watches a FileStore's backing file with fsnotify and reports
// the keys whose values differ from the previous read.
type FileWatchFeed struct {
	path string
	log  zerolog.Logger
}

func NewFileWatchFeed(path string, log zerolog.Logger) *FileWatchFeed {
	return &FileWatchFeed{path: filepath.Clean(path), log: log}
}

// OnExternalSessionChange watches the parent directory rather than the file
// itself, since FileStore replaces the file by rename on every write.
func (f *FileWatchFeed) OnExternalSessionChange(ctx context.Context, fn func(Change)) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	last, err := readValues(f.path)
	if err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != f.path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				current, err := readValues(f.path)
				if err != nil {
					f.log.Warn().Err(err).Str("path", f.path).Msg("session file unreadable")
					continue
				}
				for _, ch := range diffValues(last, current) {
					fn(ch)
				}
				last = current
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.log.Warn().Err(err).Msg("session watcher error")
			}
		}
	}()
	return nil
}

// diffValues lists changes from prev to next ordered by key.
func diffValues(prev, next map[string]string) []Change {
	var out []Change
	for k, v := range next {
		if old, ok := prev[k]; !ok || old != v {
			out = append(out, Change{Key: k, Value: v})
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			out = append(out, Change{Key: k, Deleted: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// LocalFeed is an in-process ChangeFeed. Pair it with Publishing to let
// several managers in one process observe each other's writes.
type LocalFeed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Change)
}

func NewLocalFeed() *LocalFeed {
	return &LocalFeed{subs: make(map[int]func(Change))}
}

func (f *LocalFeed) OnExternalSessionChange(ctx context.Context, fn func(Change)) error {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}()
	return nil
}

// Publish delivers ch synchronously to every subscriber.
func (f *LocalFeed) Publish(ch Change) {
	f.mu.RLock()
	ids := make([]int, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, f.subs[id])
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn(ch)
	}
}

// PublishingStore forwards writes to a Store and announces them on a
// LocalFeed.
type PublishingStore struct {
	Store
	feed *LocalFeed
}

func Publishing(store Store, feed *LocalFeed) *PublishingStore {
	return &PublishingStore{Store: store, feed: feed}
}

func (s *PublishingStore) Set(key, value string) error {
	if err := s.Store.Set(key, value); err != nil {
		return err
	}
	s.feed.Publish(Change{Key: key, Value: value})
	return nil
}

func (s *PublishingStore) Delete(keys ...string) error {
	if err := s.Store.Delete(keys...); err != nil {
		return err
	}
	for _, k := range keys {
		s.feed.Publish(Change{Key: k, Deleted: true})
	}
	return nil
}
