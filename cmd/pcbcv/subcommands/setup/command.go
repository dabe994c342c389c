package setup

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/youta-t/flarc"

	"github.com/probeworks/pcbcv/cmd/pcbcv/config/profiles"
	"github.com/probeworks/pcbcv/cmd/pcbcv/env"
	"github.com/probeworks/pcbcv/cmd/pcbcv/snowcli"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/common"
	"github.com/probeworks/pcbcv/pkg/warehouse/objects"
)

type Flag struct {
	SkipRole        bool `flag:"skip-role" help:"do not create the project role"`
	SkipWarehouse   bool `flag:"skip-warehouse" help:"do not create the warehouse"`
	SkipComputePool bool `flag:"skip-compute-pool" help:"do not create the GPU compute pool"`
	SkipStage       bool `flag:"skip-stage" help:"do not create the stage"`
	SkipTables      bool `flag:"skip-tables" help:"do not create the landing tables"`
	DryRun          bool `flag:"dry-run" help:"print the SQL instead of executing it"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"provision every warehouse object the demo needs",
		Flag{},
		flarc.Args{},
		common.NewTask(Task()),
		flarc.WithDescription(`
Provision the role, database, warehouse, GPU compute pool, stage and landing
tables, in that order. Every statement is "IF NOT EXISTS", so rerunning after
a partial failure is safe.

The object names and compute sizing come from the nearest "pcbcvenv" file,
falling back to the built-in defaults (database PCB_CV and friends).

To see what would run without touching the account:

	{{ .Command }} --dry-run

Skipped steps still tear down later; --skip-* only affects this run.
`),
	)
}

func skipSet(f Flag) map[string]bool {
	return map[string]bool{
		"role":         f.SkipRole,
		"warehouse":    f.SkipWarehouse,
		"compute-pool": f.SkipComputePool,
		"stage":        f.SkipStage,
		"tables":       f.SkipTables,
	}
}

func Task() common.Task[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.Env,
		profile profiles.Profile,
		client snowcli.Client,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		flags := cl.Flags()
		skip := skipSet(flags)

		for _, step := range objects.Provisioning(e.Objects, e.Sizing) {
			if len(step.Create) == 0 {
				continue
			}
			if skip[step.Name] {
				logger.Printf("skipped: %s", step.Name)
				continue
			}

			script := strings.Join(step.Create, ";\n") + ";"
			if flags.DryRun {
				fmt.Fprintf(cl.Stdout(), "-- %s\n%s\n", step.Name, script)
				continue
			}

			logger.Printf("creating: %s", step.Name)
			if err := client.SQL(ctx, script); err != nil {
				return fmt.Errorf("setup stopped at step %s: %w", step.Name, err)
			}
		}

		if !flags.DryRun {
			logger.Printf(
				"done. database %s is ready; next: `%s dataset download`",
				e.Objects.Database, rootCommandOf(cl.Fullname()),
			)
		}
		return nil
	}
}

func rootCommandOf(fullname string) string {
	if parts := strings.Fields(fullname); 0 < len(parts) {
		return parts[0]
	}
	return "pcbcv"
}
