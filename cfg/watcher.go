package cfg

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// FileWatcher 监听单个文件的变化，回调在监听 goroutine 中串行执行
type FileWatcher struct {
	filePath string
	watcher  *fsnotify.Watcher
	mu       sync.RWMutex
	onChange []func(data []byte) error
	onError  func(err error)
	once     sync.Once
	done     chan struct{}
}

func NewFileWatcher(filePath string) (*FileWatcher, error) {
	if filePath == "" {
		return nil, errors.New("file path is required")
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "invalid file path")
	}

	return &FileWatcher{
		filePath: absPath,
		done:     make(chan struct{}),
	}, nil
}

// Path 被监听文件的绝对路径
func (w *FileWatcher) Path() string {
	return w.filePath
}

func (w *FileWatcher) Load() ([]byte, error) {
	data, err := os.ReadFile(w.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}
	return data, nil
}

// OnChange 注册回调，文件写入或被替换后以新内容调用
func (w *FileWatcher) OnChange(fn func(data []byte) error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// OnError 处理监听错误和回调返回的错误
func (w *FileWatcher) OnError(fn func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = fn
}

// Watch 开始监听文件所在目录，重复调用无效
func (w *FileWatcher) Watch() error {
	var initErr error
	w.once.Do(func() {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			initErr = errors.Wrap(err, "failed to create file watcher")
			return
		}

		// 编辑器通常先写临时文件再重命名，所以监听目录而不是文件
		if err := watcher.Add(filepath.Dir(w.filePath)); err != nil {
			watcher.Close()
			initErr = errors.Wrap(err, "failed to add directory to watcher")
			return
		}

		w.mu.Lock()
		w.watcher = watcher
		w.mu.Unlock()

		go w.loop(watcher)
	})
	return initErr
}

func (w *FileWatcher) loop(watcher *fsnotify.Watcher) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.filePath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			data, err := os.ReadFile(w.filePath)
			if err != nil {
				w.reportError(errors.Wrap(err, "failed to read file"))
				continue
			}

			w.mu.RLock()
			handlers := make([]func(data []byte) error, len(w.onChange))
			copy(handlers, w.onChange)
			w.mu.RUnlock()

			for _, handler := range handlers {
				if handler == nil {
					continue
				}
				if err := handler(data); err != nil {
					w.reportError(err)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.reportError(errors.Wrap(err, "watcher error"))
		}
	}
}

func (w *FileWatcher) reportError(err error) {
	w.mu.RLock()
	fn := w.onError
	w.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Close 停止监听并等待监听 goroutine 退出
func (w *FileWatcher) Close() error {
	w.mu.Lock()
	watcher := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-w.done
	return err
}
