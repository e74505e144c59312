package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/edashow/mediaflow/internal/domain"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const reloadDebounce = 100 * time.Millisecond

// FileStore keeps settings in a YAML document. Edits made on disk are picked
// up by Watch without a restart.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu       sync.RWMutex
	settings domain.ImageSettings
	ok       bool
}

func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("settings file path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve settings path: %w", err)
	}

	f := &FileStore{path: abs, logger: logger.Named("settings.file")}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *FileStore) Get(_ context.Context) (domain.ImageSettings, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.settings, f.ok, nil
}

func (f *FileStore) Save(_ context.Context, in domain.ImageSettings) error {
	s := prepare(in)

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace settings file: %w", err)
	}

	f.mu.Lock()
	f.settings = s
	f.ok = true
	f.mu.Unlock()
	return nil
}

// Reload re-reads the file. A missing file means no settings were saved.
func (f *FileStore) Reload() error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.mu.Lock()
		f.settings, f.ok = domain.ImageSettings{}, false
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}

	s := domain.DefaultImageSettings()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parse settings file %s: %w", f.path, err)
	}
	if s.ID == "" {
		s.ID = domain.SettingsID
	}

	f.mu.Lock()
	f.settings, f.ok = s, true
	f.mu.Unlock()
	return nil
}

// Watch starts reloading the file on change until ctx is done. The watch is
// registered before Watch returns.
func (f *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	// Watch the directory so atomic replaces are seen.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch settings dir: %w", err)
	}

	go f.watchLoop(ctx, watcher)
	return nil
}

func (f *FileStore) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	name := filepath.Base(f.path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				if err := f.Reload(); err != nil {
					f.logger.Warn("settings reload failed, keeping previous values", zap.Error(err))
					return
				}
				f.logger.Info("settings reloaded", zap.String("path", f.path))
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("settings watcher error", zap.Error(err))
		}
	}
}
