package main

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ridge/quarry/storehttp"
	"github.com/ridge/quarry/thttp"
	"github.com/ridge/quarry/tlog"
	"github.com/ridge/quarry/tnet"
	"go.uber.org/zap"
)

func router(env env) http.Handler {
	r := mux.NewRouter()
	r.Path("/metrics").Handler(promhttp.HandlerFor(env.registry, promhttp.HandlerOpts{}))
	r.PathPrefix("/").Handler(storehttp.Handler(env.store))
	return thttp.StandardMiddleware(r)
}

func serve(ctx context.Context, addr string, env env) error {
	listener, err := tnet.Listen(ctx, addr)
	if err != nil {
		return err
	}
	return serveOn(ctx, listener, env)
}

func serveOn(ctx context.Context, listener net.Listener, env env) error {
	tlog.Get(ctx).Info("Serving the store", zap.Stringer("addr", listener.Addr()))
	return thttp.NewServer(listener, router(env)).Run(ctx)
}
