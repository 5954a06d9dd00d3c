// Package storehttp serves a quarry store over HTTP.
//
// Routes:
//
//	GET    /records?limit=N&offset=M       list, newest first; X-Total-Count is the record count
//	GET    /records/{id}                   one record
//	PUT    /records/{id}                   upsert; 201 when inserted, 200 when updated
//	DELETE /records/{id}                   delete, returning the removed record
//	GET    /indices/{index}?value=a&value=b        lookup; one record for unique indices, a list otherwise
//	GET    /indices/{index}/count?value=a&value=b  number of matching records
//
// Bodies are JSON or msgpack, negotiated with Accept and Content-Type.
package storehttp

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/kevinpollet/nego"
	"github.com/ridge/quarry"
	"github.com/ridge/quarry/codec"
	"github.com/ridge/quarry/indices"
	"github.com/ridge/quarry/tlog"
	"go.uber.org/zap"
)

// Media types
const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"
)

const (
	defaultLimit = 100
	maxBodySize  = 1 << 20
)

var errBadRequest = errors.New("bad request")

// Handler returns an HTTP handler serving the store
func Handler[M quarry.Model[M]](store *quarry.Store[M]) http.Handler {
	h := handler[M]{store: store}

	router := mux.NewRouter()
	router.Path("/records").Methods(http.MethodGet).HandlerFunc(h.list)
	router.Path("/records/{id}").Methods(http.MethodGet).HandlerFunc(h.get)
	router.Path("/records/{id}").Methods(http.MethodPut).HandlerFunc(h.put)
	router.Path("/records/{id}").Methods(http.MethodDelete).HandlerFunc(h.delete)
	router.Path("/indices/{index}").Methods(http.MethodGet).HandlerFunc(h.find)
	router.Path("/indices/{index}/count").Methods(http.MethodGet).HandlerFunc(h.count)
	return router
}

type handler[M quarry.Model[M]] struct {
	store *quarry.Store[M]
}

func responseCodec(r *http.Request) (codec.Codec, string) {
	if nego.NegotiateContentType(r, ContentTypeJSON, ContentTypeMsgpack) == ContentTypeMsgpack {
		return codec.Msgpack{}, ContentTypeMsgpack
	}
	return codec.JSON{}, ContentTypeJSON
}

func requestCodec(r *http.Request) codec.Codec {
	if r.Header.Get("Content-Type") == ContentTypeMsgpack {
		return codec.Msgpack{}
	}
	return codec.JSON{}
}

func respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	c, contentType := responseCodec(r)
	data, err := c.Marshal(v)
	if err != nil {
		tlog.Get(r.Context()).Error("Failed to encode response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		tlog.Get(r.Context()).Info("Failed to write response", zap.Error(err))
	}
}

// ErrorBody is the response body of failed requests
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, quarry.ErrIndexNotUnique):
		return http.StatusBadRequest
	case errors.Is(err, quarry.ErrNotFound), errors.Is(err, quarry.ErrIndexNotFound):
		return http.StatusNotFound
	case errors.Is(err, quarry.ErrUniqueViolation), errors.Is(err, quarry.ErrDuplicateID):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	kind := quarry.KindOf(err)
	if errors.Is(err, errBadRequest) {
		kind = "bad_request"
	}
	logger := tlog.Get(r.Context())
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
	} else {
		logger.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	respond(w, r, status, ErrorBody{Error: kind, Message: err.Error()})
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func intParam(r *http.Request, name string, def int) (int, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, badRequest("invalid %s: %q", name, s)
	}
	return n, nil
}

func indexValue(r *http.Request) (indices.Value, error) {
	segments := r.URL.Query()["value"]
	if len(segments) == 0 {
		return indices.Value{}, badRequest("missing value")
	}
	return indices.NewValue(segments...), nil
}

func recordID(r *http.Request) quarry.RecordID {
	return quarry.RecordID(mux.Vars(r)["id"])
}

func nonNil[M any](ms []M) []M {
	if ms == nil {
		return []M{}
	}
	return ms
}

func (h handler[M]) list(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultLimit)
	if err != nil {
		fail(w, r, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	total, err := h.store.Count(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	ms, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatUint(total, 10))
	respond(w, r, http.StatusOK, nonNil(ms))
}

func (h handler[M]) get(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.GetOrError(r.Context(), recordID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, m)
}

func (h handler[M]) put(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		fail(w, r, badRequest("failed to read body: %v", err))
		return
	}
	var m M
	if err := requestCodec(r).Unmarshal(body, &m); err != nil {
		fail(w, r, badRequest("failed to decode body: %v", err))
		return
	}
	if id := recordID(r); m.ID() != id {
		fail(w, r, badRequest("record id %q does not match %q", m.ID(), id))
		return
	}
	inserted, err := h.store.Upsert(r.Context(), m)
	if err != nil {
		fail(w, r, err)
		return
	}
	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	respond(w, r, status, m)
}

func (h handler[M]) delete(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.DeleteAndReturn(r.Context(), recordID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, m)
}

func (h handler[M]) find(w http.ResponseWriter, r *http.Request) {
	index := mux.Vars(r)["index"]
	def, err := quarry.ResolveIndex[M](index, false)
	if err != nil {
		fail(w, r, err)
		return
	}
	value, err := indexValue(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if def.Unique {
		m, err := h.store.FindByUniqueIndexOrError(r.Context(), index, value)
		if err != nil {
			fail(w, r, err)
			return
		}
		respond(w, r, http.StatusOK, m)
		return
	}
	ms, err := h.store.FindByIndex(r.Context(), index, value)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, nonNil(ms))
}

func (h handler[M]) count(w http.ResponseWriter, r *http.Request) {
	index := mux.Vars(r)["index"]
	value, err := indexValue(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	n, err := h.store.CountByIndex(r.Context(), index, value)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, map[string]uint64{"count": n})
}
