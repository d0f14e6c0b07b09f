package assets

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/gekko3d/scenert"

	"github.com/fsnotify/fsnotify"
)

// Watcher signals when a manifest file changes on disk. Bursts of events within
// the debounce window collapse into a single reload request.
type Watcher struct {
	w        *fsnotify.Watcher
	path     string
	debounce time.Duration
	log      scenert.Logger

	reloads chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher watches the directory holding path, since editors often replace a
// file instead of writing it in place.
func NewWatcher(path string, debounce time.Duration, logger scenert.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		w:        fw,
		path:     abs,
		debounce: debounce,
		log:      scenert.Sub(logger, "watch"),
		reloads:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Reloads receives one value per debounced change. A pending request is not
// duplicated while the consumer has not drained it.
func (w *Watcher) Reloads() <-chan struct{} { return w.reloads }

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debugf("%s: %s", event.Op, event.Name)
			w.schedule()
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.log.Warnf("watch %s: %v", w.path, err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.notify)
}

func (w *Watcher) notify() {
	select {
	case w.reloads <- struct{}{}:
	default:
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	err := w.w.Close()
	w.wg.Wait()
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	return err
}
