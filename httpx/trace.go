package httpx

import (
    "context"
    "encoding/hex"
    "strings"

    "github.com/google/uuid"
)

// genTraceID returns a 32-hex-character W3C trace-id: a UUIDv4's 16
// bytes are exactly trace-id's length, so one uuid.New() call suffices.
func genTraceID() string {
    for {
        id := uuid.New()
        if id != uuid.Nil {
            return hex.EncodeToString(id[:])
        }
    }
}

// genSpanID returns a 16-hex-character W3C span-id from the first 8
// bytes of a random UUIDv4.
func genSpanID() string {
    for {
        id := uuid.New()
        b := id[:8]
        allZero := true
        for _, v := range b {
            if v != 0 {
                allZero = false
                break
            }
        }
        if !allZero {
            return hex.EncodeToString(b)
        }
    }
}

// parseTraceparent extracts trace-id, span-id, flags. Returns ok=false if invalid.
func parseTraceparent(v string) (traceID, spanID, flags string, ok bool) {
    if v == "" { return "", "", "", false }
    v = strings.TrimSpace(v)
    parts := strings.Split(v, "-")
    if len(parts) < 4 { return "", "", "", false }
    ver, tid, sid, fl := parts[0], parts[1], parts[2], parts[3]
    if len(ver) != 2 || len(tid) != 32 || len(sid) != 16 || len(fl) != 2 {
        return "", "", "", false
    }
    // Basic hex validation
    if !isHex(tid) || !isHex(sid) || !isHex(fl) { return "", "", "", false }
    if strings.ToLower(tid) == strings.Repeat("0", 32) || strings.ToLower(sid) == strings.Repeat("0", 16) {
        return "", "", "", false
    }
    return strings.ToLower(tid), strings.ToLower(sid), strings.ToLower(fl), true
}

func formatTraceparent(traceID, spanID, flags string) string {
    if flags == "" { flags = "01" }
    return "00-" + strings.ToLower(traceID) + "-" + strings.ToLower(spanID) + "-" + strings.ToLower(flags)
}

func isHex(s string) bool {
    for i := 0; i < len(s); i++ {
        c := s[i]
        if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') {
            continue
        }
        return false
    }
    return true
}

// Trace carries minimal trace context for propagation.
// Trace carries minimal W3C trace context for propagation.
// TraceID is 32‑hex, SpanID is 16‑hex. Flags are 2‑hex (e.g. "01").
type Trace struct {
    TraceID      string
    SpanID       string
    ParentSpanID string
    Flags        string // 2‑hex digit flags (e.g., "01")
}

type traceKeyType struct{}
var traceKey traceKeyType

// WithTrace stores trace context in ctx.
func WithTrace(ctx context.Context, tr Trace) context.Context {
    return context.WithValue(ctx, traceKey, tr)
}

// TraceFrom extracts trace context from ctx.
func TraceFrom(ctx context.Context) (Trace, bool) {
    if v := ctx.Value(traceKey); v != nil {
        if tr, ok := v.(Trace); ok {
            return tr, true
        }
    }
    return Trace{}, false
}
