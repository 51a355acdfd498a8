// Command sentra runs the attack-detection engine against CSV batches:
// training, detection, evaluation and drift checks, with JSON results on
// stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sentrasec/sentra/pkg/config"
	"github.com/sentrasec/sentra/pkg/dataset"
	"github.com/sentrasec/sentra/pkg/detector"
	"github.com/sentrasec/sentra/pkg/logging"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg *config.Config
	log zerolog.Logger
	det *detector.Detector
}

func rootCmd() *cobra.Command {
	var configPath string
	var weighted bool

	root := &cobra.Command{
		Use:           "sentra",
		Short:         "ensemble attack detection engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	root.PersistentFlags().BoolVar(&weighted, "weighted-fusion", false, "fuse with ensemble weights instead of the OR rule")

	newApp := func() (*app, error) {
		cfg := config.Default()
		if configPath != "" {
			loaded, err := config.Load(configPath)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}

		log, err := logging.New(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile, Console: true})
		if err != nil {
			return nil, err
		}

		opts := detector.Options{}
		if weighted {
			opts.Fusion = detector.FusionWeighted
		}
		if cfg.RedisAddr != "" {
			opts.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		}
		if cfg.PostgresDSN != "" {
			pg, err := detector.OpenPostgresHistory(cfg.PostgresDSN)
			if err != nil {
				return nil, err
			}
			opts.Postgres = pg
		}

		det, err := detector.New(cfg, log, opts)
		if err != nil {
			return nil, err
		}
		return &app{cfg: cfg, log: log, det: det}, nil
	}

	root.AddCommand(
		trainCmd(newApp),
		detectCmd(newApp),
		evaluateCmd(newApp),
		driftCmd(newApp),
	)
	return root
}

func trainCmd(newApp func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "train <csv>",
		Short: "fit the ensemble on a labeled batch and persist the models",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			records, err := dataset.LoadCSV(args[0], a.cfg.TargetColumn, a.cfg.ExcludeColumns)
			if err != nil {
				return err
			}
			report, err := a.det.Train(records)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}

func detectCmd(newApp func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "detect <csv>",
		Short: "score a batch with the persisted ensemble",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.det.Load(); err != nil {
				return err
			}
			records, err := dataset.LoadCSV(args[0], a.cfg.TargetColumn, a.cfg.ExcludeColumns)
			if err != nil {
				return err
			}
			detections, err := a.det.DetectAttack(records)
			if err != nil {
				return err
			}
			attacks := 0
			for _, det := range detections {
				if det.IsAttack {
					attacks++
				}
			}
			a.log.Info().Int("rows", len(detections)).Int("attacks", attacks).Msg("batch scored")
			return printJSON(detections)
		},
	}
}

func evaluateCmd(newApp func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate <csv>",
		Short: "score the supervised models against a labeled batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.det.Load(); err != nil {
				return err
			}
			records, err := dataset.LoadCSV(args[0], a.cfg.TargetColumn, a.cfg.ExcludeColumns)
			if err != nil {
				return err
			}
			results, err := a.det.Evaluate(context.Background(), records)
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
}

func driftCmd(newApp func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "drift <csv>",
		Short: "feed a batch through the concept drift monitor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.det.Load(); err != nil {
				return err
			}
			records, err := dataset.LoadCSV(args[0], a.cfg.TargetColumn, a.cfg.ExcludeColumns)
			if err != nil {
				return err
			}
			drifted, err := a.det.DetectConceptDrift(context.Background(), records)
			if err != nil {
				return err
			}
			return printJSON(map[string]bool{"drift_detected": drifted})
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
