package writer

import (
	"io"

	"github.com/pkg/errors"
)

// Writer 日志输出器接口
type Writer interface {
	io.Writer
	io.Closer
}

// Options 输出目标配置
type Options struct {
	// 输出目标：stdout, stderr, file
	Target string `cfg:"target" def:"stderr" validate:"omitempty,oneof=stdout stderr file"`
	// 目标为 file 时的文件路径
	Path string `cfg:"path"`
}

// NewWriterWithOptions 根据输出目标创建输出器
func NewWriterWithOptions(options *Options) (Writer, error) {
	if options == nil {
		options = &Options{}
	}

	switch options.Target {
	case "", "stdout", "stderr":
		return NewConsoleWriterWithOptions(&ConsoleWriterOptions{Target: options.Target})
	case "file":
		return NewFileWriterWithOptions(&FileWriterOptions{Path: options.Path})
	default:
		return nil, errors.Errorf("unsupported output target: %s", options.Target)
	}
}
