// Package httpapi exposes the admin REST API. Every route under /api except
// ping and login requires a bearer token issued by /api/auth/login.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/services"
)

// Services bundles the operations behind the routes.
type Services struct {
	Devices *services.DeviceService
	Users   *services.UserService
	Sync    *services.SyncService
	Logs    *services.AttendanceService
	Auth    *services.AuthService
	DB      *services.DBService
}

type Options struct {
	Addr           string
	AllowedOrigins []string
	// LoginRate and LoginBurst bound login attempts per client address.
	LoginRate  rate.Limit
	LoginBurst int
}

type Server struct {
	svc     Services
	hub     http.Handler
	opts    Options
	logger  logging.Logger
	handler http.Handler
}

// NewServer builds the router. hub serves /api/ws.
func NewServer(svc Services, hub http.Handler, opts Options, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.LoginRate == 0 {
		opts.LoginRate = rate.Every(6 * time.Second)
	}
	if opts.LoginBurst == 0 {
		opts.LoginBurst = 5
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{svc: svc, hub: hub, opts: opts, logger: logger.With("module", "http_server")}
	s.handler = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	logins := newIPLimiter(s.opts.LoginRate, s.opts.LoginBurst)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", s.ping)
		r.With(logins.middleware).Post("/auth/login", s.login)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.listDevices)
				r.Post("/", s.createDevice)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.getDevice)
					r.Put("/", s.updateDevice)
					r.Delete("/", s.deleteDevice)
					r.Post("/info", s.deviceInfo)
					r.Post("/test-connection", s.testConnection)
					r.Get("/users", s.listUsers)
					r.Post("/users/download", s.downloadUsers)
					r.Post("/users/upload", s.uploadUsers)
					r.Get("/logs", s.listLogs)
					r.Post("/logs/download", s.downloadLogs)
				})
			})
			r.Put("/users/{id}", s.updateUser)
			r.Post("/logs/download", s.downloadAllLogs)
			r.Get("/health", s.health)
			r.Get("/db/status", s.dbStatus)
			r.Post("/db/backup", s.dbBackup)
			r.Post("/db/optimize", s.dbOptimize)
			if s.hub != nil {
				r.Get("/ws", s.hub.ServeHTTP)
			}
		})
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(shutdownCtx, "http shutdown failed", "err", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
