package api

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conductor/internal/telemetry"
)

// HeaderTraceID — заголовок с идентификатором HTTP запроса.
const HeaderTraceID = "X-Trace-ID"

// Middleware — функция-обёртка для http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain применяет middleware в порядке слева направо.
// Chain(m1, m2)(handler) = m1(m2(handler))
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Trace назначает запросу trace_id (из X-Trace-ID или новый), отдаёт его
// в ответе и кладёт в context логгер с этим полем.
func Trace(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := r.Header.Get(HeaderTraceID)
			if _, err := uuid.Parse(traceID); err != nil {
				traceID = uuid.NewString()
			}
			w.Header().Set(HeaderTraceID, traceID)

			ctx := telemetry.WithLogger(r.Context(), logger.With("trace_id", traceID))
			ctx = context.WithValue(ctx, runFieldsKey{}, &runFields{})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Logging пишет одну строку на запрос: метод, путь, статус, размер,
// длительность и поля run, отмеченные handler'ом через annotate.
func Logging() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rw.status,
				"bytes", rw.written,
				"duration", time.Since(start),
			}
			if f, ok := r.Context().Value(runFieldsKey{}).(*runFields); ok {
				attrs = append(attrs, f.attrs...)
			}

			level := slog.LevelInfo
			if rw.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			telemetry.FromContext(r.Context()).Log(r.Context(), level, "http request", attrs...)
		})
	}
}

// Recovery превращает панику handler'а в 500.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger := telemetry.FromContext(r.Context())
					logger.Error("panic recovered",
						"error", err,
						"stack", string(debug.Stack()),
						"path", r.URL.Path,
					)
					InternalError(w, logger, nil)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// runFields — поля run, которые handler добавляет в строку лога запроса.
type runFields struct {
	attrs []any
}

type runFieldsKey struct{}

// annotate добавляет поля (request_id, strategy, ...) в лог запроса.
// Вне цепочки Trace — no-op.
func annotate(r *http.Request, attrs ...any) {
	if f, ok := r.Context().Value(runFieldsKey{}).(*runFields); ok {
		f.attrs = append(f.attrs, attrs...)
	}
}

// responseWriter запоминает статус и размер ответа.
type responseWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}
