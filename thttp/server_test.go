package thttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ridge/must/v2"
	"github.com/ridge/parallel"
	"github.com/ridge/quarry/test"
	"github.com/ridge/quarry/tnet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer(t *testing.T) {
	group := test.Group(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte("hello"))
		assert.NoError(t, err)
	})

	s := NewServer(tnet.ListenOnRandomPort(), StandardMiddleware(handler))
	group.Spawn("server", parallel.Fail, s.Run)

	res, err := http.DefaultClient.Do(must.OK1(http.NewRequestWithContext(group.Context(), http.MethodGet, "http://"+s.ListenAddr().String(), nil)))
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), body)
}

func TestServerShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(test.Context(t))
	s := NewServer(tnet.ListenOnRandomPort(), http.NotFoundHandler())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func oopsHandler(w http.ResponseWriter, r *http.Request) {
	panic(errors.New("oops"))
}

func TestRecover(t *testing.T) {
	group := test.Group(t)

	server := NewServer(tnet.ListenOnRandomPort(), Recover(http.HandlerFunc(oopsHandler)))
	serverErr := make(chan error, 1)
	group.Spawn("server", parallel.Continue, func(ctx context.Context) error {
		serverErr <- server.Run(ctx)
		return nil
	})

	req := must.OK1(http.NewRequestWithContext(group.Context(), http.MethodPost, fmt.Sprintf("http://%s", server.ListenAddr()), strings.NewReader("hello")))
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, res.StatusCode)
	res.Body.Close()

	err = <-serverErr
	require.EqualError(t, err, "panic: oops")
	var errPanic parallel.ErrPanic
	require.ErrorAs(t, err, &errPanic)
	require.Equal(t, errors.New("oops"), errPanic.Value)
	require.Regexp(t, "(?s)^goroutine.*oopsHandler", string(errPanic.Stack))
}

func TestRecoverWithoutServer(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "http://localhost", nil).WithContext(test.Context(t))
	Recover(http.HandlerFunc(oopsHandler)).ServeHTTP(w, r)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLog(t *testing.T) {
	handler := Log(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "http://localhost/x", nil).WithContext(test.Context(t)))
	require.Equal(t, http.StatusTeapot, w.Code)
}

func TestCORS(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte("hello"))
		assert.NoError(t, err)
	}))

	r := httptest.NewRequest(http.MethodOptions, "http://localhost", nil)
	r.Header.Set("Origin", "http://someorigin")
	r.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.Empty(t, w.Body.Bytes())

	r = httptest.NewRequest(http.MethodGet, "http://localhost", nil)
	r.Header.Set("Origin", "http://someorigin")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, strings.Join(exposedHeaders, ","), strings.Join(w.Header()["Access-Control-Expose-Headers"], ","))
	require.Equal(t, "hello", w.Body.String())
}
