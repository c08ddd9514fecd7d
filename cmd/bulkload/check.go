package main

import (
	"github.com/spf13/cobra"

	"github.com/zero-day-ai/bulkload/backend/httpapi"
	"github.com/zero-day-ai/bulkload/checkpoint"
	"github.com/zero-day-ai/bulkload/health"
)

func newCheckCmd(g *globals) *cobra.Command {
	var (
		url      string
		redisURL string
		files    []string
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that the backend and the checkpoint store are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if url == "" {
				url = cfg.Backend.GetURL()
			}
			if redisURL == "" && cfg.Checkpoint.Enabled() {
				redisURL = cfg.Checkpoint.RedisURL
			}
			ctx := cmd.Context()

			var checks []health.Status
			if url == "" {
				checks = append(checks, health.Unhealthy("no backend URL configured", nil).Named("backend"))
			} else {
				checks = append(checks, health.EndpointCheck(ctx, url).Named("backend"))
				client, err := httpapi.New(httpapi.Options{
					BaseURL: url,
					Token:   cfg.Backend.GetToken(),
					Timeout: cfg.Backend.GetTimeout(),
					Logger:  logger(cmd, cfg),
				})
				if err != nil {
					return err
				}
				checks = append(checks, health.PingCheck(ctx, client).Named("backend api"))
			}

			if redisURL != "" {
				store, err := checkpoint.NewRedisStore(checkpoint.RedisOptions{
					URL:       redisURL,
					KeyPrefix: cfg.Checkpoint.GetKeyPrefix(),
				})
				if err != nil {
					checks = append(checks, health.Unhealthy(err.Error(), nil).Named("checkpoint"))
				} else {
					checks = append(checks, health.PingCheck(ctx, store).Named("checkpoint"))
					store.Close()
				}
			}

			for _, f := range files {
				checks = append(checks, health.FileCheck(f).Named(f))
			}

			if err := renderHealth(out(cmd), checks); err != nil {
				return err
			}
			overall := health.Combine(checks...)
			if overall.IsUnhealthy() {
				return &exitError{code: exitProblems, err: unhealthyError(overall.Message)}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "backend URL (default from config)")
	cmd.Flags().StringVar(&redisURL, "redis-url", "", "Redis URL of the checkpoint store (default from config)")
	cmd.Flags().StringSliceVar(&files, "file", nil, "input files that must be readable")
	return cmd
}

type unhealthyError string

func (e unhealthyError) Error() string { return string(e) }
