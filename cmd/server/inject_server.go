package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/wire"
	"github.com/pandodao/anchor-store/handler/api"
	"github.com/pandodao/anchor-store/handler/hc"
	"github.com/pandodao/anchor-store/service/kvstore"
	"github.com/rs/cors"
)

var serverSet = wire.NewSet(
	api.New,
	provideServer,
)

func provideServer(apiHandler *api.Server, kv *kvstore.Client) *http.Server {
	m := chi.NewMux()
	m.Use(middleware.RealIP)
	m.Use(middleware.Logger)
	m.Use(middleware.Recoverer)
	m.Use(cors.AllowAll().Handler)

	m.Mount("/api", apiHandler.Handler())
	m.Mount("/hc", hc.Handler(hc.Info{
		Version:    version,
		Commit:     commit,
		Collection: kv.Collection(),
	}))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", opt.port),
		Handler: m,
	}
}
