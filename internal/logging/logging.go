// Package logging sets up logrus for the unxf command and adapts it to the
// unxf.Logger interface.
package logging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/abczzz13/unxf"
)

// InitLog parses and sets the log level on logger. Output goes to a rotated
// file when logPath is set and is not "console", to out otherwise.
func InitLog(logger *log.Logger, logLevel, logPath string, out io.Writer) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed parsing log-level %s: %w", logLevel, err)
	}

	if logPath != "" && logPath != "console" {
		out = &lumberjack.Logger{
			Filename:   filepath.ToSlash(logPath),
			MaxSize:    5, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}
	}
	if out != nil {
		logger.SetOutput(out)
	}

	logger.SetFormatter(&Formatter{TextFormatter: log.TextFormatter{FullTimestamp: true}})
	logger.SetLevel(level)
	return nil
}

type requestIDKey struct{}

// RequestID tags every request context with a fresh id. Entries logged with
// that context carry it as requestID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), requestIDKey{}, uuid.New().String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the id set by RequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}

// Formatter adds the request id of the entry context to the text output.
type Formatter struct {
	log.TextFormatter
}

func (f *Formatter) Format(entry *log.Entry) ([]byte, error) {
	if id, ok := RequestIDFromContext(entry.Context); ok {
		entry.Data["requestID"] = id
	}
	return f.TextFormatter.Format(entry)
}

// FilterLogger forwards unxf warnings to logrus.
type FilterLogger struct {
	entry *log.Entry
}

var _ unxf.Logger = (*FilterLogger)(nil)

// NewFilterLogger returns an unxf.Logger writing through logger with a
// component=unxf field.
func NewFilterLogger(logger *log.Logger) *FilterLogger {
	return &FilterLogger{entry: logger.WithField("component", "unxf")}
}

// WarnContext implements unxf.Logger. args are slog-style key/value pairs; a
// key without a value is logged under !BADKEY, as slog does.
func (l *FilterLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.entry.WithContext(ctx).WithFields(fieldsFromArgs(args)).Warn(msg)
}

func fieldsFromArgs(args []any) log.Fields {
	fields := make(log.Fields, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || i+1 == len(args) {
			fields["!BADKEY"] = args[i]
			i--
			continue
		}
		fields[key] = args[i+1]
	}
	return fields
}

// AccessLog logs one line per request with the client address resolved by the
// filter middleware, which must run before it.
func AccessLog(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fields := log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
			}
			if info, ok := unxf.InfoFromRequest(r); ok {
				fields["client"] = info.ClientAddr.String()
				fields["chain_status"] = info.Status.String()
				fields["secure"] = info.Secure
			}

			logger.WithContext(r.Context()).WithFields(fields).Info("request")
			next.ServeHTTP(w, r)
		})
	}
}
