// Package server exposes the streaming dialogue and commit-status HTTP API.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stitchapp/stitch/internal/chat"
	"github.com/stitchapp/stitch/internal/finalize"
	"github.com/stitchapp/stitch/internal/poller"
	"github.com/stitchapp/stitch/internal/sessions"
)

// Mailer delivers a confirmation code to an email address. It is an external
// collaborator; the default implementation only logs.
type Mailer func(email, code string)

// Deps holds the collaborators the HTTP handlers drive.
type Deps struct {
	Store  *sessions.Store
	Driver *chat.Driver
	Worker *finalize.Worker
	Poller *poller.Poller
	Mailer Mailer
}

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	Deps Deps
	Port int
	Out  io.Writer
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if err := validateDeps(opts.Deps); err != nil {
		return err
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	router := NewRouter(opts.Deps)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "stitch API listening on :%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if deps.Mailer == nil {
		deps.Mailer = func(email, code string) {
			log.Printf("server: confirmation code for %s: %s", email, code)
		}
	}
	registerRoutes(router, deps)
	return router
}

func validateDeps(d Deps) error {
	if d.Store == nil {
		return fmt.Errorf("server: session store is required")
	}
	if d.Driver == nil {
		return fmt.Errorf("server: chat driver is required")
	}
	if d.Worker == nil {
		return fmt.Errorf("server: finalize worker is required")
	}
	if d.Poller == nil {
		return fmt.Errorf("server: poller is required")
	}
	return nil
}
