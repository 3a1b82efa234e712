package log

import (
	"sync"

	"github.com/hatlonely/seeddb/log/logger"
)

type (
	Logger  = logger.Logger
	Options = logger.SLogOptions
)

var (
	mu            sync.RWMutex
	defaultLogger logger.Logger
)

func init() {
	// 默认向 stderr 输出 text 格式日志
	slog, err := logger.NewSLogWithOptions(&logger.SLogOptions{
		Level:  "info",
		Format: "text",
	})
	if err != nil {
		panic("failed to initialize default logger: " + err.Error())
	}
	defaultLogger = slog
}

// NewLogWithOptions 根据配置创建日志器
func NewLogWithOptions(options *Options) (*logger.SLog, error) {
	return logger.NewSLogWithOptions(options)
}

func Default() logger.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// SetDefault 替换默认日志器，nil 会被忽略
func SetDefault(l logger.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}
