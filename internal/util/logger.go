package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const LOG_BUFFER_SIZE = 1000

var (
	ErrLogNotInitialized      = errors.New("log object is not initialized yet")
	LOG_FOLDER_NAME_WITH_PATH = "." + string(os.PathSeparator) + "log"
	globalLogLevel            = LOG_LEVEL_INFO
)

const (
	LOG_LEVEL_ERROR = iota + 1
	LOG_LEVEL_WARN
	LOG_LEVEL_INFO
	LOG_LEVEL_DEBUG
)

// TrackerLogger queues log lines on a buffered channel and writes them
// from a single goroutine, so the collector never blocks on disk I/O.
// The zero value is usable; LogEvent on it returns ErrLogNotInitialized.
type TrackerLogger struct {
	logBuffer         chan leveledLine
	handle            *os.File
	wg                *sync.WaitGroup
	mu                sync.RWMutex
	loggerInitialized bool
	zapLogger         *zap.Logger
}

type leveledLine struct {
	level  int
	logMsg string
	fields []zap.Field
}

// Init opens logFileName under the log folder. When console is set every
// line is also written to stderr.
func (m *TrackerLogger) Init(logFileName string, rewrite bool, console bool) error {

	var err error
	m.wg = new(sync.WaitGroup)
	m.logBuffer = make(chan leveledLine, LOG_BUFFER_SIZE)

	fileWithRelPath := filepath.Join(LOG_FOLDER_NAME_WITH_PATH, logFileName)

	flags := os.O_RDWR | os.O_CREATE | os.O_APPEND
	if rewrite {
		flags = os.O_RDWR | os.O_CREATE | os.O_TRUNC
	}
	m.handle, err = os.OpenFile(fileWithRelPath, flags, 0666)
	if err != nil {
		return err
	}

	m.zapLoggerInit(console)

	m.wg.Add(1)
	go m.logWriter()

	m.mu.Lock()
	m.loggerInitialized = true
	m.mu.Unlock()
	return nil
}

func (m *TrackerLogger) zapLoggerInit(console bool) {

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(config)

	level := GlobalLogLevelSetter()
	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(m.handle), level),
	}
	if console {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level))
	}

	m.zapLogger = zap.New(zapcore.NewTee(cores...))
}

func GlobalLogLevelSetter() zapcore.Level {
	switch globalLogLevel {
	case LOG_LEVEL_ERROR:
		return zapcore.ErrorLevel
	case LOG_LEVEL_WARN:
		return zapcore.WarnLevel
	case LOG_LEVEL_DEBUG:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func (m *TrackerLogger) logWriter() {
	for line := range m.logBuffer {
		switch line.level {
		case LOG_LEVEL_ERROR:
			m.zapLogger.Error(line.logMsg, line.fields...)
		case LOG_LEVEL_WARN:
			m.zapLogger.Warn(line.logMsg, line.fields...)
		case LOG_LEVEL_DEBUG:
			m.zapLogger.Debug(line.logMsg, line.fields...)
		default:
			m.zapLogger.Info(line.logMsg, line.fields...)
		}
	}
	m.zapLogger.Sync()
	m.wg.Done()
}

// LogEvent accepts either a single message (logged at info) or a level
// followed by values that are joined with spaces.
func (m *TrackerLogger) LogEvent(v ...interface{}) error {
	var msg string
	level := LOG_LEVEL_INFO

	if len(v) == 1 {
		msg = fmt.Sprint(v[0])
	} else if len(v) > 1 {
		if l, ok := v[0].(int); ok && l >= LOG_LEVEL_ERROR && l <= LOG_LEVEL_DEBUG {
			level = l
			v = v[1:]
		}
		msg = strings.TrimSuffix(fmt.Sprintln(v...), "\n")
	}

	return m.enqueue(leveledLine{level: level, logMsg: msg})
}

// LogFields writes msg with structured zap fields.
func (m *TrackerLogger) LogFields(level int, msg string, fields ...zap.Field) error {
	return m.enqueue(leveledLine{level: level, logMsg: msg, fields: fields})
}

func (m *TrackerLogger) enqueue(line leveledLine) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.loggerInitialized {
		return ErrLogNotInitialized
	}
	m.logBuffer <- line
	return nil
}

// DeInit drains queued lines and closes the log file.
func (m *TrackerLogger) DeInit() {

	m.mu.Lock()
	if !m.loggerInitialized {
		m.mu.Unlock()
		return
	}
	m.loggerInitialized = false
	close(m.logBuffer)
	m.mu.Unlock()

	m.wg.Wait()
	m.handle.Close()
}

// SetCommonLoggerAttributes sets the level for loggers initialized afterwards.
func SetCommonLoggerAttributes(GlobalLogLevel int) {
	globalLogLevel = GlobalLogLevel
}

// ParseLogLevel maps error|warn|info|debug to a LOG_LEVEL constant.
func ParseLogLevel(name string) (int, error) {
	switch strings.ToLower(name) {
	case "error":
		return LOG_LEVEL_ERROR, nil
	case "warn", "warning":
		return LOG_LEVEL_WARN, nil
	case "", "info":
		return LOG_LEVEL_INFO, nil
	case "debug":
		return LOG_LEVEL_DEBUG, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

func SetLoggerPath(logPath string) {
	LOG_FOLDER_NAME_WITH_PATH = logPath
}

func CheckAndCreateLogFolder(FolderNameWithPath string) {
	_, err := os.Stat(FolderNameWithPath)

	if os.IsNotExist(err) {
		err := os.MkdirAll(FolderNameWithPath, 0755)
		if err != nil {
			fmt.Println("Failed to create the log folder and Mkdir err :: ", err)
		}
	}
}
