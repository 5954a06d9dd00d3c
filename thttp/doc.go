// Package thttp runs HTTP servers under a context.
//
// Server is controlled with the context passed to its Run method and shuts
// down gracefully when the context is closed, so it can be spawned in a
// parallel.Run tree next to the components it serves. Every request context
// inherits the logger of the Run context.
//
//	router := mux.NewRouter()
//	router.PathPrefix("/users").Handler(storehttp.Handler(users))
//	server := thttp.NewServer(listener, thttp.StandardMiddleware(router))
//	spawn("http", parallel.Fail, server.Run)
package thttp
