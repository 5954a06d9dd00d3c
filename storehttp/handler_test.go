package storehttp

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ridge/quarry"
	"github.com/ridge/quarry/codec"
	"github.com/ridge/quarry/memstore"
	"github.com/ridge/quarry/storetest"
	"github.com/ridge/quarry/test"
	"github.com/stretchr/testify/require"
)

type env struct {
	t       *testing.T
	handler http.Handler
}

func newEnv(t *testing.T) env {
	store := quarry.New[storetest.User](memstore.New[storetest.User]())
	require.NoError(t, store.InitializeSchema(test.Context(t)))
	return env{t: t, handler: Handler(store)}
}

func (e env) do(method, target string, body []byte, header http.Header) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, bytes.NewReader(body)).WithContext(test.Context(e.t))
	for k, vs := range header {
		r.Header[k] = vs
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e env) put(u storetest.User) *httptest.ResponseRecorder {
	body, err := codec.JSON{}.Marshal(u)
	require.NoError(e.t, err)
	return e.do(http.MethodPut, "/records/"+string(u.RecordID), body, nil)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	var v T
	require.Equal(t, ContentTypeJSON, w.Header().Get("Content-Type"))
	require.NoError(t, codec.JSON{}.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestRecords(t *testing.T) {
	e := newEnv(t)
	u := storetest.NewUser("a@x", "Alice", 30)

	w := e.put(u)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, u, decode[storetest.User](t, w))

	u.Name = "Alicia"
	w = e.put(u)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(http.MethodGet, "/records/"+string(u.RecordID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, u, decode[storetest.User](t, w))

	w = e.do(http.MethodGet, "/records", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "1", w.Header().Get("X-Total-Count"))
	require.Equal(t, []storetest.User{u}, decode[[]storetest.User](t, w))

	w = e.do(http.MethodDelete, "/records/"+string(u.RecordID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, u, decode[storetest.User](t, w))

	w = e.do(http.MethodGet, "/records/"+string(u.RecordID), nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "not_found", decode[ErrorBody](t, w).Error)

	w = e.do(http.MethodGet, "/records", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "0", w.Header().Get("X-Total-Count"))
	require.JSONEq(t, "[]", w.Body.String())
}

func TestPaging(t *testing.T) {
	e := newEnv(t)
	for _, email := range []string{"a@x", "b@x", "c@x"} {
		require.Equal(t, http.StatusCreated, e.put(storetest.NewUser(email, "A", 1)).Code)
	}
	w := e.do(http.MethodGet, "/records?limit=2&offset=2", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "3", w.Header().Get("X-Total-Count"))
	require.Len(t, decode[[]storetest.User](t, w), 1)

	w = e.do(http.MethodGet, "/records?limit=-1", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "bad_request", decode[ErrorBody](t, w).Error)
}

func TestIndices(t *testing.T) {
	e := newEnv(t)
	alice := storetest.NewUser("alice@x", "Alice", 30)
	bob1 := storetest.NewUser("bob1@x", "Bob", 40)
	bob2 := storetest.NewUser("bob2@x", "Bob", 41)
	for _, u := range []storetest.User{alice, bob1, bob2} {
		require.Equal(t, http.StatusCreated, e.put(u).Code)
	}

	w := e.do(http.MethodGet, "/indices/email?value=alice@x", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, alice, decode[storetest.User](t, w))

	w = e.do(http.MethodGet, "/indices/email?value=nobody@x", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodGet, "/indices/name?value=Bob", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.ElementsMatch(t, []storetest.User{bob1, bob2}, decode[[]storetest.User](t, w))

	w = e.do(http.MethodGet, "/indices/name_age?value=Bob&value=41", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []storetest.User{bob2}, decode[[]storetest.User](t, w))

	w = e.do(http.MethodGet, "/indices/name/count?value=Bob", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, map[string]uint64{"count": 2}, decode[map[string]uint64](t, w))

	w = e.do(http.MethodGet, "/indices/nope?value=x", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "index_not_found", decode[ErrorBody](t, w).Error)

	w = e.do(http.MethodGet, "/indices/name", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConflicts(t *testing.T) {
	e := newEnv(t)
	require.Equal(t, http.StatusCreated, e.put(storetest.NewUser("a@x", "A", 1)).Code)

	w := e.put(storetest.NewUser("a@x", "B", 2))
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "unique_violation", decode[ErrorBody](t, w).Error)

	u := storetest.NewUser("b@x", "B", 2)
	body, err := codec.JSON{}.Marshal(u)
	require.NoError(t, err)
	w = e.do(http.MethodPut, "/records/"+string(quarry.NewRecordID()), body, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPut, "/records/"+string(u.RecordID), []byte("{"), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodDelete, "/records/"+string(u.RecordID), nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestMsgpack(t *testing.T) {
	e := newEnv(t)
	u := storetest.NewUser("a@x", "A", 1)
	body, err := codec.Msgpack{}.Marshal(u)
	require.NoError(t, err)

	header := http.Header{
		"Content-Type": {ContentTypeMsgpack},
		"Accept":       {ContentTypeMsgpack},
	}
	w := e.do(http.MethodPut, "/records/"+string(u.RecordID), body, header)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, ContentTypeMsgpack, w.Header().Get("Content-Type"))

	var got storetest.User
	require.NoError(t, codec.Msgpack{}.Unmarshal(w.Body.Bytes(), &got))
	require.Equal(t, u, got)

	w = e.do(http.MethodGet, "/records/"+string(u.RecordID), nil, nil)
	require.Equal(t, u, decode[storetest.User](t, w))
}
