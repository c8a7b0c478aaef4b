// Package httpapi exposes the resolver over HTTP: a resolve endpoint for
// scraping collaborators plus read-only views of the candidate pool and
// the decision counters.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"thread.fit/stitch/internal/db"
	"thread.fit/stitch/internal/globaltime"
	"thread.fit/stitch/internal/resolver"
	payloadschema "thread.fit/stitch/schema"
)

const maxResolveBodyBytes = 64 * 1024

type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	pool   *db.Pool
	engine *resolver.Engine
	logger zerolog.Logger
	opts   Options
}

type poolEntryItem struct {
	SiteName  string    `json:"site_name"`
	SourceURL string    `json:"source_url"`
	Title     string    `json:"title"`
	ColorText string    `json:"color_text,omitempty"`
	Brand     string    `json:"brand"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

type statsResponse struct {
	Products         int64            `json:"products"`
	Offers           int64            `json:"offers"`
	PoolEntries      int64            `json:"pool_entries"`
	ResolutionEvents int64            `json:"resolution_events"`
	Decisions        map[string]int64 `json:"decisions"`
}

func NewServer(pool *db.Pool, engine *resolver.Engine, logger zerolog.Logger, opts Options) *Server {
	host := strings.TrimSpace(opts.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := opts.Port
	if port <= 0 {
		port = 8090
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	writeTimeout := opts.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &Server{
		pool:   pool,
		engine: engine,
		logger: logger,
		opts: Options{
			Host:            host,
			Port:            port,
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
	}
}

func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.pool == nil || s.engine == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("remote_ip", v.RemoteIP).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}

			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.POST("/resolve", s.handleResolve)
	api.GET("/products/:brand/:code", s.handleProduct)
	api.GET("/pool", s.handlePool)
	api.GET("/stats", s.handleStats)

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", addr).Msg("stitch api server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Info().Msg("stitch api server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	return success(c, map[string]any{
		"service": "stitch",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleResolve(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxResolveBodyBytes+1))
	if err != nil {
		return failValidation(c, "unable to read request body")
	}
	if len(body) > maxResolveBodyBytes {
		return fail(c, http.StatusRequestEntityTooLarge, "Payload too large", nil)
	}

	payload, err := payloadschema.ValidateScrapedItemPayload(body)
	if err != nil {
		return failValidation(c, err.Error())
	}

	result := s.engine.Resolve(c.Request().Context(), resolver.ScrapedItem{
		Title:     payload.Title,
		ColorText: payload.ColorText,
		SiteName:  payload.SiteName,
		SourceURL: payload.SourceURL,
		Brand:     payload.Brand,
	})
	return success(c, result)
}

func (s *Server) handleProduct(c echo.Context) error {
	brand := strings.ToLower(strings.TrimSpace(c.Param("brand")))
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if brand == "" || code == "" {
		return failValidation(c, "brand and code are required")
	}

	entry, found, err := s.pool.LookupByCode(c.Request().Context(), brand, code)
	if err != nil {
		s.logger.Error().Err(err).Str("brand", brand).Str("code", code).Msg("product lookup failed")
		return internalError(c, "Failed to load product")
	}
	if !found {
		return fail(c, http.StatusNotFound, "product not found", nil)
	}

	return success(c, map[string]any{
		"product_code": entry.ProductCode,
		"brand":        entry.Brand,
		"title":        entry.Title,
		"l1_tokens":    entry.L1Tokens,
		"l2_tokens":    entry.L2Tokens,
		"color_name":   entry.ColorName,
		"color_code":   entry.ColorCode,
		"source_rank":  entry.SourceRank,
	})
}

func (s *Server) handlePool(c echo.Context) error {
	brand := strings.ToLower(strings.TrimSpace(c.QueryParam("brand")))
	entries, err := s.pool.ListPoolEntries(c.Request().Context(), brand)
	if err != nil {
		s.logger.Error().Err(err).Msg("list candidate pool failed")
		return internalError(c, "Failed to load candidate pool")
	}

	items := make([]poolEntryItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, poolEntryItem{
			SiteName:  entry.SiteName,
			SourceURL: entry.SourceURL,
			Title:     entry.Title,
			ColorText: entry.ColorText,
			Brand:     entry.Brand,
			Reason:    entry.Reason,
			CreatedAt: entry.CreatedAt,
		})
	}
	return success(c, map[string]any{
		"items": items,
	})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.pool.LoadStats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("load stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, statsResponse{
		Products:         stats.Products,
		Offers:           stats.Offers,
		PoolEntries:      stats.PoolEntries,
		ResolutionEvents: stats.ResolutionEvents,
		Decisions:        stats.Decisions,
	})
}
