package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger writes engine activity to a per-day log file. It is safe for
// concurrent use.
type Logger struct {
	logDir  string
	logFile *os.File
	logger  *log.Logger
	mu      sync.Mutex
}

// LogLevel tags log entries by kind.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

// New creates a logger writing to <logDir>/engine_<date>.log.
func New(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("engine_%s.log", time.Now().Format("2006-01-02")))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		logDir:  logDir,
		logFile: file,
		logger:  log.New(file, "", 0),
	}
	l.writeSessionHeader()
	return l, nil
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Printf("================================================================================")
	l.logger.Printf("TRADING SESSION STARTED %s", time.Now().Format("2006-01-02 15:04:05"))
	l.logger.Printf("================================================================================")
}

// Log writes one formatted entry at the given level.
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	l.logger.Printf("[%s] [%s] %s", timestamp, level, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs an execution event.
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs periodic cycle status.
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogWarning logs a warning with a short context prefix.
func (l *Logger) LogWarning(context string, format string, args ...interface{}) {
	l.Warning("%s: %s", context, fmt.Sprintf(format, args...))
}

// LogError logs an error with a short context prefix.
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// LogTrade logs a trade open in a fixed format.
func (l *Logger) LogTrade(action, symbol string, lots, price, stopLoss, takeProfit float64, orderID, reason string) {
	l.Trade("%s %s | Lots: %.2f | Price: %.5f | SL: %.5f | TP: %.5f | Order: %s | Reason: %s",
		action, symbol, lots, price, stopLoss, takeProfit, orderID, reason)
}

// GetLogPath returns the active log file path.
func (l *Logger) GetLogPath() string {
	return filepath.Join(l.logDir, fmt.Sprintf("engine_%s.log", time.Now().Format("2006-01-02")))
}

// Close writes a session footer and closes the file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return nil
	}
	l.logger.Printf("================================================================================")
	l.logger.Printf("TRADING SESSION ENDED %s", time.Now().Format("2006-01-02 15:04:05"))
	l.logger.Printf("================================================================================")
	err := l.logFile.Close()
	l.logFile = nil
	return err
}
