// Package zaplogger wraps a process wide zap logger with an optional database sink
package zaplogger

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Fields are the structured key/values attached to one entry
type Fields map[string]interface{}

// LogsTableName is the table receiving log entries when a database sink is attached
const LogsTableName = "app_logs"

const timeLayout = "2006-01-02T15:04:05.999-0700"

// Entry keys written by the encoder rather than by callers
const (
	keyLevel   = "level"
	keyTime    = "timestamp"
	keyCaller  = "caller"
	keyMessage = "message"
)

// Caller fields copied into their own indexed columns so entries can be
// filtered per session, commit batch, user, repository or cron job.
const (
	FieldSession = "session"
	FieldBatch   = "batch"
	FieldLogin   = "login"
	FieldRepo    = "repo"
	FieldJob     = "job"
)

// LogEntry is one persisted log line
type LogEntry struct {
	ID       uint      `gorm:"primaryKey"`
	LoggedAt time.Time `gorm:"index"`
	Level    string    `gorm:"size:8;index"`
	Caller   string
	Message  string
	Session  string `gorm:"size:16;index"`
	Batch    string `gorm:"size:36;index"`
	Login    string `gorm:"size:64;index"`
	Repo     string `gorm:"size:200;index"`
	Job      string `gorm:"size:64"`
	Fields   datatypes.JSON
}

func (LogEntry) TableName() string {
	return LogsTableName
}

var (
	mu    sync.RWMutex
	log   *zap.Logger
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
)

var encoderConfig = zapcore.EncoderConfig{
	MessageKey:   keyMessage,
	LevelKey:     keyLevel,
	TimeKey:      keyTime,
	CallerKey:    keyCaller,
	EncodeLevel:  zapcore.CapitalLevelEncoder,
	EncodeTime:   zapcore.TimeEncoderOfLayout(timeLayout),
	EncodeCaller: zapcore.ShortCallerEncoder,
}

func init() {
	log = newLogger(consoleCore())
}

func consoleCore() zapcore.Core {
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stdout), level)
}

func newLogger(core zapcore.Core) *zap.Logger {
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// dbSink decodes JSON encoded entries into LogEntry rows
type dbSink struct {
	db *gorm.DB
}

func (s *dbSink) Write(p []byte) (int, error) {
	entry, err := decodeEntry(p)
	if err != nil {
		return 0, err
	}
	if err := s.db.Create(entry).Error; err != nil {
		return 0, eris.Wrap(err, "failed to store log entry")
	}
	return len(p), nil
}

func (s *dbSink) Sync() error { return nil }

// decodeEntry splits one JSON line into the fixed columns and the remaining fields
func decodeEntry(p []byte) (*LogEntry, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(p, &raw); err != nil {
		return nil, eris.Wrap(err, "failed to decode log entry")
	}

	entry := &LogEntry{
		Level:   takeString(raw, keyLevel),
		Caller:  takeString(raw, keyCaller),
		Message: takeString(raw, keyMessage),
		Session: takeString(raw, FieldSession),
		Batch:   takeString(raw, FieldBatch),
		Login:   takeString(raw, FieldLogin),
		Repo:    takeString(raw, FieldRepo),
		Job:     takeString(raw, FieldJob),
	}

	loggedAt, err := time.Parse(timeLayout, takeString(raw, keyTime))
	if err != nil {
		return nil, eris.Wrap(err, "failed to parse log timestamp")
	}
	entry.LoggedAt = loggedAt

	rest, err := json.Marshal(raw)
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode log fields")
	}
	entry.Fields = datatypes.JSON(rest)
	return entry, nil
}

// takeString removes key from raw and returns it when it held a JSON string
func takeString(raw map[string]json.RawMessage, key string) string {
	v, ok := raw[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	delete(raw, key)
	return s
}

// InitLogger tees every entry to the console and to the app_logs table of db
func InitLogger(db *gorm.DB) error {
	if err := db.AutoMigrate(&LogEntry{}); err != nil {
		return eris.Wrap(err, "failed to migrate log table")
	}

	sink := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(&dbSink{db: db}), level)
	ReplaceLogger(newLogger(zapcore.NewTee(consoleCore(), sink)))
	return nil
}

// ReplaceLogger swaps the process logger and returns a function restoring the previous one
func ReplaceLogger(l *zap.Logger) func() {
	mu.Lock()
	previous := log
	log = l
	mu.Unlock()
	return func() { ReplaceLogger(previous) }
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// ParseLevel maps a configured level name to a zap level, falling back to info
func ParseLevel(name string) zapcore.Level {
	switch name {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLogLevel changes the level of the console and database cores
func SetLogLevel(name string) {
	level.SetLevel(ParseLevel(name))
}

// Enabled reports whether entries at the named level are written
func Enabled(name string) bool {
	return level.Enabled(ParseLevel(name))
}

func Info(msg string, fields ...Fields) {
	current().Info(msg, zapFields(fields)...)
}

func Debug(msg string, fields ...Fields) {
	current().Debug(msg, zapFields(fields)...)
}

func Warn(msg string, fields ...Fields) {
	current().Warn(msg, zapFields(fields)...)
}

func Error(msg string, fields ...Fields) {
	current().Error(msg, zapFields(fields)...)
}

func zapFields(fields []Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields[0]))
	for k, v := range fields[0] {
		out = append(out, zap.Any(k, v))
	}
	return out
}

// Sync flushes buffered entries
func Sync() error {
	return current().Sync()
}
