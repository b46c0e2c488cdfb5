// pkg/logging/logging.go - timestamped run logging for c2rscrub
//
// Every run gets its own directory under the configured base path
// (YYYY-MM-DD-HHMMss) holding:
// - scrub.log     human readable lines
// - events.jsonl  one JSON object per entry for log shippers
// The scrub report is written into the same directory at the end of a run.

package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/windowsadmins/c2rscrub/pkg/config"
)

// LogLevel represents the severity of the log message.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of the LogLevel.
func (ll LogLevel) String() string {
	switch ll {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a config LogLevel string to a LogLevel. Unknown values fall back to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "DEBUG":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// LogEntry is one structured record in events.jsonl
type LogEntry struct {
	Time       int64                  `json:"time"`
	Timestamp  string                 `json:"timestamp"`
	Level      string                 `json:"level"`
	Message    string                 `json:"message"`
	Component  string                 `json:"component"`
	PID        int64                  `json:"pid"`
	Hostname   string                 `json:"hostname"`
	SessionID  string                 `json:"session_id"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	BaseDir       string   // Base logging directory
	SessionID     string   // Unique session identifier
	Component     string   // Component/module name
	Level         LogLevel // Highest level written
	KeepRuns      int      // Number of run directories kept by cleanup
	EnableJSON    bool     // Write events.jsonl
	EnableConsole bool     // Mirror scrub.log to stdout
}

// Logger writes to the run directory and optionally the console.
type Logger struct {
	mu       sync.Mutex
	logger   *log.Logger
	logFile  *os.File
	jsonFile *os.File
	config   LoggerConfig
	logDir   string
	hostname string
}

var (
	instance *Logger
	once     sync.Once
)

// Init initializes the singleton Logger based on the provided configuration.
// Logging calls made before Init are discarded.
func Init(cfg *config.Configuration) error {
	return InitWithConfig(LoggerConfig{
		BaseDir:       cfg.LogPath,
		SessionID:     generateSessionID(),
		Component:     "c2rscrub",
		Level:         ParseLevel(cfg.LogLevel),
		KeepRuns:      cfg.LogRetentionRuns,
		EnableJSON:    true,
		EnableConsole: true,
	})
}

// InitWithConfig initializes the logger with explicit LoggerConfig
func InitWithConfig(logCfg LoggerConfig) error {
	var initErr error
	once.Do(func() {
		instance, initErr = newLogger(logCfg)
	})
	return initErr
}

func generateSessionID() string {
	now := time.Now()
	return fmt.Sprintf("c2rscrub-%d-%s", now.Unix(), now.Format("2006-01-02-150405"))
}

func newLogger(cfg LoggerConfig) (*Logger, error) {
	sessionStart := time.Now()

	logDir := filepath.Join(cfg.BaseDir, sessionStart.Format("2006-01-02-150405"))
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	l := &Logger{
		config:   cfg,
		logDir:   logDir,
		hostname: hostname,
	}

	var err error
	l.logFile, err = os.OpenFile(filepath.Join(logDir, "scrub.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open main log file: %w", err)
	}

	if cfg.EnableJSON {
		l.jsonFile, err = os.OpenFile(filepath.Join(logDir, "events.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open JSON log file: %w", err)
		}
	}

	if cfg.EnableConsole {
		enableColors()
		l.logger = log.New(io.MultiWriter(os.Stdout, l.logFile), "", 0)
	} else {
		l.logger = log.New(l.logFile, "", 0)
	}

	l.pruneRuns()
	return l, nil
}

// pruneRuns removes the oldest run directories beyond KeepRuns. Best effort.
func (l *Logger) pruneRuns() {
	if l.config.KeepRuns <= 0 {
		return
	}
	entries, err := os.ReadDir(l.config.BaseDir)
	if err != nil {
		return
	}

	var runs []string
	for _, entry := range entries {
		// YYYY-MM-DD-HHMMss
		if entry.IsDir() && len(entry.Name()) == 17 && strings.Count(entry.Name(), "-") == 3 {
			runs = append(runs, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))

	for i := l.config.KeepRuns; i < len(runs); i++ {
		os.RemoveAll(filepath.Join(l.config.BaseDir, runs[i]))
	}
}

// CloseLogger closes all log files if they're open.
func CloseLogger() {
	if instance == nil {
		return
	}
	instance.mu.Lock()
	defer instance.mu.Unlock()

	if instance.logFile != nil {
		if err := instance.logFile.Close(); err != nil {
			fmt.Printf("Failed to close main log file: %v\n", err)
		}
		instance.logFile = nil
	}
	if instance.jsonFile != nil {
		if err := instance.jsonFile.Close(); err != nil {
			fmt.Printf("Failed to close JSON log file: %v\n", err)
		}
		instance.jsonFile = nil
	}
}

// GetCurrentLogDir returns the run directory, or "" before Init.
func GetCurrentLogDir() string {
	if instance == nil {
		return ""
	}
	return instance.logDir
}

// GetSessionID returns the current session identifier
func GetSessionID() string {
	if instance == nil {
		return ""
	}
	return instance.config.SessionID
}

// SetLevel changes the level filter of the running logger.
func SetLevel(level LogLevel) {
	if instance == nil {
		return
	}
	instance.mu.Lock()
	instance.config.Level = level
	instance.mu.Unlock()
}

func (l *Logger) logMessage(level LogLevel, message string, keyValues []interface{}) {
	properties := make(map[string]interface{}, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		properties[fmt.Sprintf("%v", keyValues[i])] = keyValues[i+1]
	}
	l.write(level, message, properties, keyValues)
}

func (l *Logger) write(level LogLevel, message string, properties map[string]interface{}, keyValues []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level > l.config.Level || l.logger == nil {
		return
	}

	now := time.Now()
	entry := LogEntry{
		Time:       now.Unix(),
		Timestamp:  now.Format(time.RFC3339),
		Level:      level.String(),
		Message:    message,
		Component:  l.config.Component,
		PID:        int64(os.Getpid()),
		Hostname:   l.hostname,
		SessionID:  l.config.SessionID,
		Properties: properties,
	}

	line := fmt.Sprintf("[%s] %-5s %s", now.Format("2006-01-02 15:04:05"), entry.Level, message)
	for i := 0; i+1 < len(keyValues); i += 2 {
		line += fmt.Sprintf(" %v=%v", keyValues[i], keyValues[i+1])
	}
	if level == LevelError {
		line = "\n----------------------------------------\n" + line
	}
	l.logger.Println(colorize(level, line))

	if l.jsonFile != nil {
		if data, err := json.Marshal(entry); err == nil {
			l.jsonFile.Write(append(data, '\n'))
		}
	}
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
)

func colorize(level LogLevel, line string) string {
	switch level {
	case LevelError:
		return colorRed + line + colorReset
	case LevelWarn:
		return colorYellow + line + colorReset
	case LevelDebug:
		return colorBlue + line + colorReset
	default:
		return line
	}
}

// Info logs informational messages.
func Info(message string, keyValues ...interface{}) {
	if instance == nil {
		return
	}
	instance.logMessage(LevelInfo, message, keyValues)
}

// Debug logs debug messages.
func Debug(message string, keyValues ...interface{}) {
	if instance == nil {
		return
	}
	instance.logMessage(LevelDebug, message, keyValues)
}

// Warn logs warning messages.
func Warn(message string, keyValues ...interface{}) {
	if instance == nil {
		return
	}
	instance.logMessage(LevelWarn, message, keyValues)
}

// Error logs error messages.
func Error(message string, keyValues ...interface{}) {
	if instance == nil {
		return
	}
	instance.logMessage(LevelError, message, keyValues)
}

// LogStructured writes an entry whose properties are already a map.
func LogStructured(level LogLevel, message string, properties map[string]interface{}) {
	if instance == nil {
		return
	}
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	keyValues := make([]interface{}, 0, len(keys)*2)
	for _, k := range keys {
		keyValues = append(keyValues, k, properties[k])
	}
	instance.write(level, message, properties, keyValues)
}
