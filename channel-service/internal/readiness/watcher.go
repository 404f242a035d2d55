package readiness

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/weiawesome/wes-io-channels/pkg/log"
)

// Watcher watches an HLS output directory and wakes subscribers whenever a
// playlist is created or written there.
type Watcher struct {
	watcher *fsnotify.Watcher

	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
	done chan struct{}
}

// NewWatcher starts watching dir.
func NewWatcher(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	w := &Watcher{
		watcher: fw,
		subs:    make(map[int]chan struct{}),
		done:    make(chan struct{}),
	}
	go w.handleEvents()
	return w, nil
}

// Subscribe returns a channel that receives a value after each playlist
// change. Wake-ups are coalesced; a slow reader sees at most one pending.
func (w *Watcher) Subscribe() (<-chan struct{}, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.next
	w.next++
	ch := make(chan struct{}, 1)
	w.subs[id] = ch

	return ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.subs, id)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) handleEvents() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if strings.HasSuffix(event.Name, PlaylistSuffix) && (event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) {
				w.wake()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			l := log.L()
			l.Warn().Err(err).Msg("playlist watcher error")
		}
	}
}

func (w *Watcher) wake() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
