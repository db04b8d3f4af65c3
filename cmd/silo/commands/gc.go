package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelsilo/silo/pkg/config"
	"github.com/modelsilo/silo/pkg/gc"
	"github.com/modelsilo/silo/pkg/metrics"
	"github.com/modelsilo/silo/pkg/store"
	badgerstore "github.com/modelsilo/silo/pkg/versioning/badger"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Run garbage collection once and exit",
	Long: `Run one garbage collection pass and exit.

Sweeps expired staging records (aborting any dangling multipart
uploads) and deletes unreachable blobs from the object store. The
running server performs the same sweeps periodically; this command is
for cron-style setups and for reclaiming space on demand.

Examples:
  silo gc
  silo gc --config /etc/silo/config.yaml`,
	RunE: runGC,
}

func runGC(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}
	if err := config.ValidateServe(cfg); err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx := context.Background()

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() { _ = st.Close() }()

	vcs, err := badgerstore.New(cfg.Versioning)
	if err != nil {
		return fmt.Errorf("failed to open versioning store: %w", err)
	}
	defer func() { _ = vcs.Close() }()

	var m *metrics.Metrics
	if cfg.Metrics.IsEnabled() {
		m = metrics.New(nil)
	}
	objects, err := newObjectStore(ctx, cfg, m)
	if err != nil {
		return fmt.Errorf("failed to open object store: %w", err)
	}

	sweeper := gc.New(cfg.GC, &cfg.Transfer, st, vcs, objects, m)

	staged, err := sweeper.SweepStaging(ctx)
	if err != nil {
		return fmt.Errorf("staging sweep failed: %w", err)
	}
	blobs, err := sweeper.SweepBlobs(ctx)
	if err != nil {
		return fmt.Errorf("blob sweep failed: %w", err)
	}

	fmt.Printf("Garbage collection complete: %d staging records expired, %d blobs reclaimed\n", staged, blobs)
	return nil
}
