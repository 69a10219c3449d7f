package resources

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
	"unsafe"

	"github.com/rs/zerolog"
	otelog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

// ZerologHook mirrors every zerolog event into OTel logs. Records still print
// to stdout; the hook only adds the OTLP export path.
type ZerologHook struct {
	logger otelog.Logger
}

func NewZerologHook(serviceName string) *ZerologHook {
	return &ZerologHook{
		logger: global.GetLoggerProvider().Logger(serviceName),
	}
}

func (h *ZerologHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	buf, ok := h.eventBuffer(e)
	if !ok {
		return
	}

	fields, ok := decodeFields(buf)
	if !ok {
		return
	}

	var rec otelog.Record

	sev, sevText := severityFor(level)

	rec.SetTimestamp(timestampFrom(fields))
	rec.SetSeverity(sev)
	rec.SetSeverityText(sevText)
	rec.SetBody(otelog.StringValue(msg))
	rec.AddAttributes(attributesFrom(fields)...)

	h.logger.Emit(e.GetCtx(), rec)
}

func severityFor(level zerolog.Level) (otelog.Severity, string) {
	switch level {
	case zerolog.TraceLevel:
		return otelog.SeverityTrace, "TRACE"
	case zerolog.DebugLevel:
		return otelog.SeverityDebug, "DEBUG"
	case zerolog.InfoLevel:
		return otelog.SeverityInfo, "INFO"
	case zerolog.WarnLevel:
		return otelog.SeverityWarn, "WARN"
	case zerolog.ErrorLevel:
		return otelog.SeverityError, "ERROR"
	case zerolog.FatalLevel:
		return otelog.SeverityFatal, "FATAL"
	case zerolog.PanicLevel:
		return otelog.SeverityFatal4, "FATAL"
	default:
		return otelog.SeverityInfo, "INFO"
	}
}

// eventBuffer pulls the accumulated JSON out of the zerolog event. zerolog
// does not expose it, so this reads the unexported buf field.
func (h *ZerologHook) eventBuffer(e *zerolog.Event) ([]byte, bool) {
	if e == nil {
		return nil, false
	}

	v := reflect.ValueOf(e)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return nil, false
	}

	f := v.Elem().FieldByName("buf")
	if !f.IsValid() || f.Kind() != reflect.Slice || f.Type().Elem().Kind() != reflect.Uint8 || !f.CanAddr() {
		return nil, false
	}

	// buf is unexported, so it has to be re-addressed before it can be read.
	f = reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem()

	buf := append([]byte(nil), f.Bytes()...)
	if len(buf) == 0 {
		return nil, false
	}

	if buf[len(buf)-1] != '}' {
		buf = append(buf, '}')
	}

	return buf, true
}

func decodeFields(buf []byte) (map[string]any, bool) {
	var fields map[string]any

	err := json.Unmarshal(buf, &fields)
	if err != nil {
		return nil, false
	}

	return fields, true
}

func attributesFrom(fields map[string]any) []otelog.KeyValue {
	kvs := make([]otelog.KeyValue, 0, len(fields))

	for k, v := range fields {
		switch x := v.(type) {
		case string:
			kvs = append(kvs, otelog.String(k, x))
		case bool:
			kvs = append(kvs, otelog.Bool(k, x))
		case float64: // json numbers
			if x == float64(int64(x)) {
				kvs = append(kvs, otelog.Int64(k, int64(x)))
			} else {
				kvs = append(kvs, otelog.Float64(k, x))
			}
		default:
			kvs = append(kvs, otelog.String(k, fmt.Sprintf("%v", x)))
		}
	}

	return kvs
}

func timestampFrom(fields map[string]any) time.Time {
	s, ok := fields["time"].(string)
	if !ok {
		return time.Now()
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts
		}
	}

	return time.Now()
}
