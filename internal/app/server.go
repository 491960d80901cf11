package app

import (
	"net/http"

	"github.com/gorilla/mux"
	"oauth-token-cache/internal/handlers"
	"oauth-token-cache/internal/server"
)

// Handler builds the broker's HTTP handler
func (app *App) Handler() http.Handler {
	opts := []handlers.Option{handlers.WithCacheType(app.Config.CacheType)}
	if app.Breaker != nil {
		opts = append(opts, handlers.WithBreaker(app.Breaker))
	}
	if app.RedisClient != nil {
		opts = append(opts, handlers.WithRedis(app.RedisClient))
	}

	h := handlers.New(app.Client, opts...)

	router := mux.NewRouter()
	SetupRoutes(router, h, app.Registry)
	return router
}

// NewServer creates the HTTP server serving Handler
func (app *App) NewServer() *server.Server {
	return server.New(app.Handler(), app.Config.Port, "", "", app.Config.RequestTimeout())
}
