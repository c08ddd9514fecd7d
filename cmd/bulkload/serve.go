package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/bulkload/backend/httpapi"
	"github.com/zero-day-ai/bulkload/backend/memory"
	"github.com/zero-day-ai/bulkload/ontology"
)

func newServeCmd(g *globals) *cobra.Command {
	var (
		addr       string
		schemaPath string
		token      string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an in-memory backend for trial runs",
		Long: `Serve an in-memory backend over HTTP. It checks references and, with a
schema, cardinalities exactly like the target store, so a batch can be tried
before it is loaded for real. Everything is lost on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			log := logger(cmd, cfg)

			opts := []memory.Option{memory.WithLogger(log)}
			if schemaPath != "" {
				schema, err := ontology.LoadSchema(schemaPath)
				if err != nil {
					return err
				}
				opts = append(opts, memory.WithSchema(schema))
			}
			e := httpapi.NewServer(memory.New(opts...), httpapi.ServerOptions{Token: token, Logger: log})

			go func() {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				<-ctx.Done()
				log.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = e.Shutdown(shutdownCtx)
			}()

			log.Info("serving in-memory backend", "addr", addr)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":3333", "listen address")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema file; enables cardinality checks")
	cmd.Flags().StringVar(&token, "token", "", "require this bearer token")
	return cmd
}
