package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

type LogStatus int

const (
	VERBOSE LogStatus = iota
	DEBUG
	INFO
	SUCCESS
	WARNING
	ERROR
)

const DefaultLevel = INFO

func (e LogStatus) String() string {
	return []string{
		"V",
		"D",
		"I",
		"✓",
		"!",
		"!!",
	}[e]
}

// Name 是写入日志文件时使用的级别名。
func (e LogStatus) Name() string {
	return []string{
		"VERBOSE",
		"DEBUG",
		"INFO",
		"SUCCESS",
		"WARNING",
		"ERROR",
	}[e]
}

func (e LogStatus) Color() *color.Color {
	return []*color.Color{
		color.New(color.FgWhite, color.Italic),     //Verbose
		color.New(color.FgWhite, color.Italic),     //Debug
		color.New(color.FgWhite),                   //Info
		color.New(color.FgHiGreen),                 //Success
		color.New(color.FgYellow, color.Underline), //Warning
		color.New(color.FgHiRed, color.Bold),       //Error
	}[e]
}

// ParseLevel 解析配置中的级别名（大小写不敏感）。
// TRACE 视为 VERBOSE，CRITICAL/FATAL 视为 ERROR。
func ParseLevel(s string) (LogStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE", "VERBOSE":
		return VERBOSE, nil
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "SUCCESS":
		return SUCCESS, nil
	case "WARN", "WARNING":
		return WARNING, nil
	case "ERROR", "CRITICAL", "FATAL":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("未知日志级别：%q", s)
	}
}

// Options 描述日志输出目标。
type Options struct {
	Level LogStatus
	// Console 为 nil 时使用 os.Stderr。
	Console io.Writer
	// File 非空时额外以纯文本追加写入该文件。
	File string
	// NoColor 强制关闭颜色；Console 不是终端时也会自动关闭。
	NoColor bool
}

// Logger 是带名称的分级日志器，显式传给各组件（不使用全局实例）。
// nil *Logger 可安全调用，等价于丢弃输出。
type Logger struct {
	name string
	sink *sink
}

type sink struct {
	mu      sync.Mutex
	min     LogStatus
	console io.Writer
	color   bool
	file    *os.File
	offset  int
}

// New 创建根日志器；调用方负责 Close。
func New(opts Options) (*Logger, error) {
	s := &sink{min: opts.Level, console: opts.Console}
	if s.console == nil {
		s.console = os.Stderr
	}
	if f, ok := s.console.(*os.File); ok && !opts.NoColor {
		s.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("打开日志文件失败：%w", err)
		}
		s.file = f
	}
	return &Logger{name: "gopro", sink: s}, nil
}

// Discard 返回丢弃全部输出的日志器（测试用）。
func Discard() *Logger {
	return &Logger{name: "discard", sink: &sink{min: ERROR + 1, console: io.Discard}}
}

// Named 派生同一输出目标下的子日志器。
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{name: name, sink: l.sink}
}

// Enabled 报告该级别是否会被输出。
func (l *Logger) Enabled(status LogStatus) bool {
	return l != nil && status >= l.sink.min
}

func (l *Logger) Emit(status LogStatus, message string, interpolations ...interface{}) {
	if !l.Enabled(status) {
		return
	}
	text := fmt.Sprintf(message, interpolations...)
	text = strings.TrimRight(text, "\n")

	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(l.name) > s.offset {
		s.offset = len(l.name)
	}
	padding := strings.Repeat(" ", s.offset-len(l.name))
	line := fmt.Sprintf("[%s] %s(%s) %s\n", l.name, padding, status, text)

	c := status.Color()
	if !s.color {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	_, _ = c.Fprint(s.console, line)

	if s.file != nil {
		_, _ = fmt.Fprintf(s.file, "%s %-7s [%s] %s\n", time.Now().Format(time.RFC3339), status.Name(), l.name, text)
	}
}

func (l *Logger) Verbosef(message string, args ...interface{}) { l.Emit(VERBOSE, message, args...) }
func (l *Logger) Debugf(message string, args ...interface{})   { l.Emit(DEBUG, message, args...) }
func (l *Logger) Infof(message string, args ...interface{})    { l.Emit(INFO, message, args...) }
func (l *Logger) Successf(message string, args ...interface{}) { l.Emit(SUCCESS, message, args...) }
func (l *Logger) Warnf(message string, args ...interface{})    { l.Emit(WARNING, message, args...) }
func (l *Logger) Errorf(message string, args ...interface{})   { l.Emit(ERROR, message, args...) }

// Close 关闭日志文件（若有）。
func (l *Logger) Close() error {
	if l == nil || l.sink.file == nil {
		return nil
	}
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	err := l.sink.file.Close()
	l.sink.file = nil
	return err
}
