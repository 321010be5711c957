package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type lineFormat uint8

const (
	lineKV lineFormat = iota
	lineJSON
)

const tsMillis = "2006-01-02T15:04:05.000Z07:00"

// lineOrder ranks the well-known keys at the front of every line so
// lines stay scannable. Unknown keys follow alphabetically.
var lineOrder = []string{
	"ts", "level", "component", "event", "status", "rid", "rid_full",
	"ts_unix_nano",
	"update_id", "user_id", "chat_id", "chat_type", "handler", "cb_key",
	"outcome",
	"task", "url", "title", "item", "items", "file", "files",
	"size_bytes", "percent", "speed", "eta_ms",
	"duration_ms", "elapsed_ms",
	"reason", "mode", "listen", "public_url",
	"db", "driver", "host", "port",
	"payload", "username",
	"err", "err_code", "cause", "exit_code", "stderr",
	"attempt", "attempts", "backoff_ms", "retryable", "queue",
}

type handlerOptions struct {
	level  slog.Leveler
	format lineFormat
	order  []string
	stacks bool
	out    *fanWriter
	errOut *fanWriter
}

// lineHandler is the slog.Handler behind every component logger. It
// flattens a record into a flat key set, fills correlation fields from
// the context, and renders one ordered line per record. Records at
// warn or above are additionally copied to errOut when one is set.
type lineHandler struct {
	min    slog.Leveler
	format lineFormat
	order  []string
	stacks bool
	out    *fanWriter
	errOut *fanWriter
	prefix []slog.Attr
	scope  string
}

func newLineHandler(opts handlerOptions) *lineHandler {
	order := opts.order
	if len(order) == 0 {
		order = lineOrder
	}
	return &lineHandler{
		min:    opts.level,
		format: opts.format,
		order:  order,
		stacks: opts.stacks,
		out:    opts.out,
		errOut: opts.errOut,
	}
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.min != nil {
		min = h.min.Level()
	}
	return level >= min
}

func (h *lineHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.out == nil {
		return errors.New("logger: handler has no writer")
	}
	asJSON := h.format == lineJSON

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()

	f := make(lineFields, 16)
	f["ts"] = ts.Truncate(time.Millisecond).Format(tsMillis)
	f["level"] = canonLevel(r.Level.String())
	if asJSON {
		f["ts_unix_nano"] = ts.UnixNano()
	}

	put := func(key string, v slog.Value) {
		key, val, ok := coerce(key, v)
		if !ok || key == "" {
			return
		}
		f[key] = val
	}
	for _, a := range h.prefix {
		walkAttr("", a, put)
	}
	r.Attrs(func(a slog.Attr) bool {
		walkAttr(h.scope, a, put)
		return true
	})

	f.mergeContext(ctx)
	f.compactRID(asJSON)

	event := r.Message
	if event == "" {
		event = "unknown"
	}
	f.fillEmpty("event", event)
	f.fillEmpty("component", "app")

	f.canonEnums()
	f.redact()
	if !h.stacks {
		delete(f, "stack")
	}
	f.prune()

	var line []byte
	var err error
	if asJSON {
		line, err = f.encodeJSON(h.order)
	} else {
		line = f.encodeKV(h.order)
	}
	if err != nil {
		return err
	}
	if err := h.out.Write(line); err != nil {
		return err
	}
	if h.errOut != nil && r.Level >= slog.LevelWarn {
		return h.errOut.Write(line)
	}
	return nil
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.prefix = make([]slog.Attr, 0, len(h.prefix)+len(attrs))
	clone.prefix = append(clone.prefix, h.prefix...)
	for _, a := range attrs {
		if h.scope != "" && a.Key != "" {
			a.Key = h.scope + "." + a.Key
		}
		clone.prefix = append(clone.prefix, a)
	}
	return &clone
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.scope != "" {
		clone.scope += "." + name
	} else {
		clone.scope = name
	}
	return &clone
}

// walkAttr flattens nested groups into dotted keys before coercion.
func walkAttr(scope string, a slog.Attr, put func(string, slog.Value)) {
	key := a.Key
	switch {
	case key == "":
		key = scope
	case scope != "":
		key = scope + "." + key
	}
	val := a.Value.Resolve()
	if val.Kind() == slog.KindGroup {
		for _, child := range val.Group() {
			walkAttr(key, child, put)
		}
		return
	}
	put(key, val)
}

// coerce converts a slog value into the plain type the encoders emit.
// Durations are rewritten to whole milliseconds under a *_ms key.
func coerce(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		u := v.Uint64()
		if u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, u, true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	case slog.KindAny:
		switch x := v.Any().(type) {
		case nil:
			return key, nil, false
		case error:
			return key, x.Error(), true
		case time.Duration:
			return durationKey(key), RoundMS(x), true
		case string:
			return key, strings.TrimSpace(x), true
		case fmt.Stringer:
			return key, x.String(), true
		default:
			return key, fmt.Sprint(x), true
		}
	}
	return key, v.Any(), true
}

func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_duration"):
		return strings.TrimSuffix(key, "_duration") + "_duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	}
	return key + "_ms"
}

// lineFields is the mutable field set of a single line in flight.
type lineFields map[string]any

func (f lineFields) str(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (f lineFields) setDefault(key string, v any) {
	if _, ok := f[key]; !ok {
		f[key] = v
	}
}

func (f lineFields) fillEmpty(key, v string) {
	if f.str(key) == "" {
		f[key] = v
	}
}

// mergeContext copies correlation ids stored in the context. Explicit
// attributes on the record win over context values.
func (f lineFields) mergeContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	if rid := RIDFrom(ctx); rid != "" {
		f.setDefault("rid", rid)
	}
	if id := UpdateIDFrom(ctx); id != 0 {
		f.setDefault("update_id", id)
	}
	if id := UserIDFrom(ctx); id != 0 {
		f.setDefault("user_id", id)
	}
	if id := ChatIDFrom(ctx); id != 0 {
		f.setDefault("chat_id", id)
	}
	if name := HandlerFrom(ctx); name != "" {
		f.setDefault("handler", name)
	}
	if task := TaskFrom(ctx); task != "" {
		f.setDefault("task", task)
	}
}

// compactRID shortens the rid field for readability. JSON output keeps
// the original value under rid_full so lines stay machine-joinable.
func (f lineFields) compactRID(keepFull bool) {
	rid := f.str("rid")
	if rid == "" {
		return
	}
	compact := CompactRID(rid)
	if compact == "" || compact == rid {
		return
	}
	if keepFull {
		f.setDefault("rid_full", rid)
	}
	f["rid"] = compact
}

var statusNames = map[string]struct{}{
	"ok": {}, "fail": {}, "skip": {}, "retry": {},
	"rate_limited": {}, "cancelled": {},
}

var outcomeNames = map[string]struct{}{
	"ok": {}, "fail": {}, "cancelled": {}, "rate_limited": {},
}

func (f lineFields) canonEnums() {
	if s := f.str("level"); s != "" {
		f["level"] = canonLevel(s)
	}
	if s := f.str("status"); s != "" {
		if low := strings.ToLower(strings.TrimSpace(s)); hasName(statusNames, low) {
			f["status"] = low
		}
	}
	if s := f.str("outcome"); s != "" {
		low := strings.ToLower(strings.TrimSpace(s))
		if hasName(outcomeNames, low) {
			f["outcome"] = low
		} else {
			delete(f, "outcome")
		}
	}
}

func hasName(set map[string]struct{}, name string) bool {
	_, ok := set[name]
	return ok
}

func canonLevel(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return "INFO"
	case "debug":
		return "DEBUG"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	case "fatal":
		return "FATAL"
	}
	return strings.ToUpper(s)
}

// redactKeys are the fields that commonly carry raw transport or
// subprocess text and therefore may embed the bot token.
var redactKeys = [...]string{"err", "cause", "payload", "url", "public_url", "stderr"}

func (f lineFields) redact() {
	for _, key := range redactKeys {
		if s, ok := f[key].(string); ok && s != "" {
			f[key] = RedactToken(s)
		}
	}
}

func (f lineFields) prune() {
	for k, v := range f {
		switch x := v.(type) {
		case nil:
			delete(f, k)
		case string:
			if x == "" {
				delete(f, k)
			}
		}
	}
}

// rank returns the keys of f with the well-known ones first, in order,
// and the rest sorted alphabetically behind them.
func (f lineFields) rank(order []string) []string {
	keys := make([]string, 0, len(f))
	seen := make(map[string]struct{}, len(order))
	for _, key := range order {
		if _, ok := f[key]; ok {
			keys = append(keys, key)
			seen[key] = struct{}{}
		}
	}
	head := len(keys)
	for key := range f {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys[head:])
	return keys
}

func (f lineFields) encodeJSON(order []string) ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, key := range f.rank(order) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(key))
		b.WriteByte(':')
		val, err := jsonValue(f[key])
		if err != nil {
			return nil, err
		}
		b.Write(val)
	}
	b.WriteString("}\n")
	return b.Bytes(), nil
}

func jsonValue(v any) ([]byte, error) {
	switch x := v.(type) {
	case string:
		return json.Marshal(x)
	case bool:
		return []byte(strconv.FormatBool(x)), nil
	case int:
		return []byte(strconv.Itoa(x)), nil
	case int64:
		return []byte(strconv.FormatInt(x, 10)), nil
	case uint64:
		return []byte(strconv.FormatUint(x, 10)), nil
	case float64:
		return []byte(strconv.FormatFloat(x, 'g', -1, 64)), nil
	}
	return json.Marshal(fmt.Sprint(v))
}

func (f lineFields) encodeKV(order []string) []byte {
	var b bytes.Buffer
	for i, key := range f.rank(order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(kvValue(f[key]))
	}
	b.WriteByte('\n')
	return b.Bytes()
}

func kvValue(v any) string {
	switch x := v.(type) {
	case string:
		if strings.IndexFunc(x, kvNeedsQuote) >= 0 {
			return strconv.Quote(x)
		}
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	s := fmt.Sprint(v)
	if strings.IndexFunc(s, kvNeedsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func kvNeedsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
