package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zero-day-ai/bulkload"
	"github.com/zero-day-ai/bulkload/backend/httpapi"
	"github.com/zero-day-ai/bulkload/checkpoint"
	"github.com/zero-day-ai/bulkload/config"
	"github.com/zero-day-ai/bulkload/ontology"
	"github.com/zero-day-ai/bulkload/record"
)

// runFlags are the flags of the run command. Set flags override the
// configuration file.
type runFlags struct {
	schema      string
	url         string
	token       string
	concurrency int
	redisURL    string
	batchKey    string
	jsonOutput  bool
}

func (f *runFlags) apply(cfg *config.Config) {
	if f.url != "" || f.token != "" {
		if cfg.Backend == nil {
			cfg.Backend = &config.BackendConfig{}
		}
		if f.url != "" {
			cfg.Backend.URL = f.url
		}
		if f.token != "" {
			cfg.Backend.Token = f.token
		}
	}
	if f.concurrency > 0 {
		cfg.Worker = &config.WorkerConfig{Concurrency: f.concurrency}
	}
	if f.redisURL != "" || f.batchKey != "" {
		if cfg.Checkpoint == nil {
			cfg.Checkpoint = &config.CheckpointConfig{}
		}
		if f.redisURL != "" {
			cfg.Checkpoint.RedisURL = f.redisURL
		}
		if f.batchKey != "" {
			cfg.Checkpoint.BatchKey = f.batchKey
		}
	}
}

// defaultBatchKey derives a batch key from the batch file name.
func defaultBatchKey(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func newRunCmd(g *globals) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [batch]",
		Short: "Load a batch into the backend",
		Long: `Load a batch into the backend and print a report.

The exit status is 0 when every record and every stashed value reached the
backend, 1 when some did not, and 2 when the batch was rejected before any
call was made.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			f.apply(cfg)
			log := logger(cmd, cfg)

			records, err := record.LoadBatch(args[0])
			if err != nil {
				return &exitError{code: exitRejected, err: err}
			}
			var schema *ontology.Schema
			if f.schema != "" {
				schema, err = ontology.LoadSchema(f.schema)
				if err != nil {
					return &exitError{code: exitRejected, err: err}
				}
			}

			client, err := httpapi.New(httpapi.Options{
				BaseURL: cfg.Backend.GetURL(),
				Token:   cfg.Backend.GetToken(),
				Timeout: cfg.Backend.GetTimeout(),
				Logger:  log,
			})
			if err != nil {
				return err
			}

			opts := []bulkload.Option{
				bulkload.WithLogger(log),
				bulkload.WithConfig(cfg),
			}
			if cfg.Checkpoint.Enabled() {
				store, err := checkpoint.NewRedisStore(checkpoint.RedisOptions{
					URL:       cfg.Checkpoint.RedisURL,
					KeyPrefix: cfg.Checkpoint.GetKeyPrefix(),
					TTL:       cfg.Checkpoint.GetTTL(),
				})
				if err != nil {
					return err
				}
				defer store.Close()
				opts = append(opts, bulkload.WithCheckpoint(store, cfg.Checkpoint.GetBatchKey(defaultBatchKey(args[0]))))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, runErr := bulkload.Run(ctx, client, records, schema, opts...)
			if res == nil {
				return runErr
			}
			if err := report(cmd, res, f.jsonOutput); err != nil {
				return err
			}
			switch {
			case bulkload.IsRejected(runErr):
				return &exitError{code: exitRejected, err: runErr}
			case runErr != nil:
				return &exitError{code: exitProblems, err: runErr}
			case !res.OK():
				return &exitError{code: exitProblems}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&f.schema, "schema", "", "schema file; enables the schema cycle check")
	cmd.Flags().StringVar(&f.url, "url", "", "backend URL")
	cmd.Flags().StringVar(&f.token, "token", "", "backend bearer token")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "backend calls in flight (default from config, else 4)")
	cmd.Flags().StringVar(&f.redisURL, "redis-url", "", "Redis URL for resumable uploads")
	cmd.Flags().StringVar(&f.batchKey, "batch-key", "", "key identifying the batch across reruns (default: batch file name)")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "print the result as JSON")
	return cmd
}

// problemJSON is the JSON form of a problem, with its error as text.
type problemJSON struct {
	RecordID  string `json:"record_id"`
	Property  string `json:"property,omitempty"`
	Kind      string `json:"kind"`
	Origin    string `json:"origin"`
	BlockedBy string `json:"blocked_by,omitempty"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
}

func report(cmd *cobra.Command, res *bulkload.Result, asJSON bool) error {
	if res.Violations != nil && !asJSON {
		return renderViolations(out(cmd), res.Violations)
	}
	if !asJSON {
		return renderResult(out(cmd), res)
	}

	problems := make([]problemJSON, 0, len(res.Problems))
	for _, p := range res.Problems {
		pj := problemJSON{
			RecordID:  p.RecordID,
			Property:  p.Property,
			Kind:      string(p.Kind),
			Origin:    p.Origin(),
			BlockedBy: p.BlockedBy,
			Code:      p.Code(),
		}
		if p.Err != nil {
			pj.Error = p.Err.Error()
		}
		problems = append(problems, pj)
	}
	enc := json.NewEncoder(out(cmd))
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*bulkload.Result
		Problems []problemJSON `json:"problems"`
	}{res, problems})
}
