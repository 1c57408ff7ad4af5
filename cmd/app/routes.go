package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"converterservice/internal/api"
	"converterservice/internal/api/middleware"
	"converterservice/internal/service"
)

func (app *App) initHTTP(converter service.ConverterInterface, enqueuer api.RefreshEnqueuer) {
	requestTimeout := time.Duration(app.cfg.Server.RequestTimeoutSec) * time.Second

	r := chi.NewRouter()
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLoggingMiddleware(app.logger, app.metrics))
	r.Use(chimiddleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))
		r.Get("/convert", api.HandleConvert(converter))
		r.Post("/rates/refresh", api.HandleRefreshRates(enqueuer))
	})
	r.Get("/healthz", api.HandleHealthz())
	r.Get("/readyz", api.HandleReadyz(app.rdbCache, app.rdbAsynq))
	r.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{Registry: app.registry}))

	if app.cfg.Server.ServeSwagger {
		r.Get("/swagger/*", api.SwaggerUIHandler())
		r.Get("/openapi.json", api.OpenAPISpecHandler())
	}
	if app.asynqmon != nil {
		r.Handle(app.asynqmon.RootPath()+"/*", app.asynqmon)
	}

	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
