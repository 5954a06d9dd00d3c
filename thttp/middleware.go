package thttp

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/handlers"
	"github.com/ridge/parallel"
	"github.com/ridge/quarry/tlog"
	"go.uber.org/zap"
)

// Log is a middleware that logs before and after handling of each request
func Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ctx := tlog.With(r.Context(),
			zap.String("method", r.Method),
			zap.String("url", r.URL.String()),
		)
		logger := tlog.Get(ctx)
		logger.Debug("HTTP request handling started")
		cs := &captureStatus{ResponseWriter: w}
		next.ServeHTTP(cs, r.WithContext(ctx))
		logger.Debug("HTTP request handling ended", zap.Int("statusCode", cs.status), zap.Duration("elapsed", time.Since(started)))
	})
}

type captureStatus struct {
	http.ResponseWriter
	status int
}

func (cs *captureStatus) Write(b []byte) (int, error) {
	if cs.status == 0 {
		cs.status = http.StatusOK
	}
	return cs.ResponseWriter.Write(b)
}

func (cs *captureStatus) WriteHeader(statusCode int) {
	cs.status = statusCode
	cs.ResponseWriter.WriteHeader(statusCode)
}

// runTask executes the task in the current goroutine, returning a panic as
// parallel.ErrPanic
func runTask(ctx context.Context, task parallel.Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = parallel.ErrPanic{Value: p, Stack: debug.Stack()}
		}
	}()
	return task(ctx)
}

// Recover is a middleware that answers 500 on handler panics and hands the
// panic to the Server, which terminates
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := runTask(r.Context(), func(ctx context.Context) error {
			next.ServeHTTP(w, r)
			return nil
		})
		if err == nil {
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		if panicChan, ok := r.Context().Value(panicKey).(chan error); ok {
			select {
			case panicChan <- err:
			default:
			}
			return
		}
		tlog.Get(r.Context()).Error("Panic in HTTP handler", zap.Error(err))
	})
}

var exposedHeaders = []string{
	"Content-Length",
	"X-Total-Count",
}

// CORS is a middleware that allows cross-origin requests
var CORS = handlers.CORS(
	handlers.AllowedMethods([]string{
		http.MethodGet,
		http.MethodHead,
		http.MethodOptions,
		http.MethodPut,
		http.MethodDelete,
	}),
	handlers.AllowedHeaders([]string{"Accept", "Content-Type"}),
	handlers.ExposedHeaders(exposedHeaders),
	handlers.AllowedOrigins([]string{"*"}),
)
