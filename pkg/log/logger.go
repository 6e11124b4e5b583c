package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

var logrusLevels = map[LogLevel]logrus.Level{
	LevelDebug: logrus.DebugLevel,
	LevelInfo:  logrus.InfoLevel,
	LevelWarn:  logrus.WarnLevel,
	LevelError: logrus.ErrorLevel,
	LevelFatal: logrus.FatalLevel,
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel maps a case-insensitive level name to a LogLevel, falling back to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

type Logger struct {
	level  LogLevel
	logger *logrus.Logger
}

func NewLogger(level LogLevel) *Logger {
	return newLogger(os.Stdout, level)
}

func newLogger(w io.Writer, level LogLevel) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrusLevels[level])
	return &Logger{
		level:  level,
		logger: l,
	}
}

// SetLevel 设置日志级别
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
	l.logger.SetLevel(logrusLevels[level])
}

// SetOutput redirects the logger, mostly for tests.
func (l *Logger) SetOutput(w io.Writer) {
	l.logger.SetOutput(w)
}

// Debug 记录调试信息
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(2, LevelDebug, format, args...)
}

// Info 记录信息
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(2, LevelInfo, format, args...)
}

// Warn 记录警告信息
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(2, LevelWarn, format, args...)
}

// Error 记录错误信息
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(2, LevelError, format, args...)
}

// Fatal 记录致命错误并退出
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(2, LevelFatal, format, args...)
	os.Exit(1)
}

// log 内部日志记录方法
// skip is the number of frames between log and the code that emitted the message.
func (l *Logger) log(skip int, level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	// 获取调用信息
	_, file, line, ok := runtime.Caller(skip)
	caller := "unknown"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	entry := l.logger.WithField("caller", caller)
	message := fmt.Sprintf(format, args...)

	switch level {
	case LevelDebug:
		entry.Debug(message)
	case LevelInfo:
		entry.Info(message)
	case LevelWarn:
		entry.Warn(message)
	case LevelError:
		entry.Error(message)
	case LevelFatal:
		// logrus Fatal exits on its own; keep exit under our control.
		entry.Log(logrus.FatalLevel, message)
	}
}

// FileLogger 是文件日志记录器
type FileLogger struct {
	*Logger
	file *os.File
}

// NewFileLogger 创建新的文件日志记录器
func NewFileLogger(logFile string, level LogLevel) (*FileLogger, error) {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %w", err)
	}

	return &FileLogger{
		Logger: newLogger(io.MultiWriter(os.Stdout, file), level),
		file:   file,
	}, nil
}

// Close 关闭日志文件
func (l *FileLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Global logger instance
var globalLogger *Logger

// InitLogger 初始化全局日志记录器
func InitLogger(level LogLevel) {
	globalLogger = NewLogger(level)
}

// SetLogger replaces the global logger, e.g. with a FileLogger's embedded Logger.
func SetLogger(l *Logger) {
	globalLogger = l
}

// GetLogger 获取全局日志记录器
func GetLogger() *Logger {
	if globalLogger == nil {
		globalLogger = NewLogger(LevelInfo)
	}
	return globalLogger
}

// Convenience functions
func Debug(format string, args ...interface{}) {
	GetLogger().log(2, LevelDebug, format, args...)
}

func Info(format string, args ...interface{}) {
	GetLogger().log(2, LevelInfo, format, args...)
}

func Warn(format string, args ...interface{}) {
	GetLogger().log(2, LevelWarn, format, args...)
}

func Error(format string, args ...interface{}) {
	GetLogger().log(2, LevelError, format, args...)
}

func Fatal(format string, args ...interface{}) {
	GetLogger().log(2, LevelFatal, format, args...)
	os.Exit(1)
}
