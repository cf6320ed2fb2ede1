package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/reflow/internal/server"
	"github.com/matzehuels/reflow/pkg/jobs"
)

const (
	defaultServeAddr = "127.0.0.1:8080"
	shutdownTimeout  = 30 * time.Second
	cleanupInterval  = time.Hour
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr        string // listen address
	root        string // directory request paths are resolved against
	jobsDir     string // job record directory; empty keeps records in memory
	concurrency int    // jobs converting at once
	noCache     bool
}

// serveCommand creates the serve command running the job API.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion job API",
		Long: `Serve runs an HTTP API for background conversions.

  POST   /jobs        {"input": "book", "height": 800, ...}
  GET    /jobs
  GET    /jobs/{id}
  DELETE /jobs/{id}
  GET    /healthz

Input and output paths are relative to --root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c.config.Server.applyTo(cmd, &opts)
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", defaultServeAddr, "listen address")
	cmd.Flags().StringVar(&opts.root, "root", ".", "directory that request paths are relative to")
	cmd.Flags().StringVar(&opts.jobsDir, "jobs-dir", "", "persist job records in this directory")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", jobs.DefaultConcurrency, "jobs converting at once")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the render cache")

	return cmd
}

// applyTo fills serve options the user did not set on the command line.
func (s ServerConfig) applyTo(cmd *cobra.Command, opts *serveOpts) {
	unset := func(name string) bool { return !cmd.Flags().Changed(name) }
	if unset("addr") && s.Addr != "" {
		opts.addr = s.Addr
	}
	if unset("root") && s.Root != "" {
		opts.root = s.Root
	}
	if unset("jobs-dir") && s.JobsDir != "" {
		opts.jobsDir = s.JobsDir
	}
	if unset("concurrency") && s.Concurrency != 0 {
		opts.concurrency = s.Concurrency
	}
}

func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	logger := loggerFromContext(ctx)

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	var store jobs.Store = jobs.NewMemoryStore()
	if opts.jobsDir != "" {
		fs, err := jobs.NewFileStore(opts.jobsDir)
		if err != nil {
			return err
		}
		store = fs
	}
	manager := jobs.NewManager(runner, store, jobs.Config{
		Concurrency: opts.concurrency,
		Logger:      logger,
	})

	srv, err := server.New(server.Config{Root: opts.root, Manager: manager, Logger: logger})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	printSuccess("Listening on http://%s", ln.Addr())
	printKeyValue("root", srv.Root())
	printNextStep("Submit a job", `curl -d '{"input":"book"}' http://`+ln.Addr().String()+"/jobs")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := manager.Cleanup(gctx); err != nil {
					logger.Warn("job cleanup failed", "error", err)
				}
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		serr := httpServer.Shutdown(shutdownCtx)
		merr := manager.Shutdown(shutdownCtx)
		return errors.Join(serr, merr)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	printInfo("Server stopped")
	return nil
}
