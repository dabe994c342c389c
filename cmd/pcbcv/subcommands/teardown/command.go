package teardown

import (
	"bufio"
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
	SkipRole        bool `flag:"skip-role" help:"keep the project role"`
	SkipWarehouse   bool `flag:"skip-warehouse" help:"keep the warehouse"`
	SkipComputePool bool `flag:"skip-compute-pool" help:"keep the GPU compute pool"`
	SkipStage       bool `flag:"skip-stage" help:"keep the stage"`
	SkipTables      bool `flag:"skip-tables" help:"keep the landing tables"`
	Yes             bool `flag:"yes" alias:"y" help:"do not ask for confirmation"`
	DryRun          bool `flag:"dry-run" help:"print the SQL instead of executing it"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"drop every warehouse object the demo created",
		Flag{},
		flarc.Args{},
		common.NewTask(Task()),
		flarc.WithDescription(`
Drop everything "setup", "notebook deploy" and "app deploy" created, in
reverse creation order: app, notebook, tables, stage, compute pool (stopping
its services first), warehouse, database and role.

Dropping the database also drops the tables written by "dataset upload".

This is destructive, so it asks for confirmation. Pass --yes to skip the
prompt, or --dry-run to only see the SQL. Keep individual objects with the
--skip-* flags:

	{{ .Command }} --skip-role --yes
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
		steps := objects.Teardown(
			objects.Provisioning(e.Objects, e.Sizing), skipSet(flags),
		)

		if flags.DryRun {
			for _, step := range steps {
				script := strings.Join(step.Drop, ";\n") + ";"
				fmt.Fprintf(cl.Stdout(), "-- %s\n%s\n", step.Name, script)
			}
			return nil
		}

		if !flags.Yes {
			fmt.Fprintf(
				cl.Stdout(),
				"going to drop database %s, warehouse %s, compute pool %s, role %s and everything in them.\ncontinue? [y/N]: ",
				e.Objects.Database, e.Objects.Warehouse,
				e.Objects.ComputePool, e.Objects.Role,
			)
			sc := bufio.NewScanner(cl.Stdin())
			if !sc.Scan() {
				logger.Println("canceled.")
				return nil
			}
			switch strings.TrimSpace(strings.ToLower(sc.Text())) {
			case "y", "yes":
				// fall through
			default:
				logger.Println("canceled.")
				return nil
			}
		}

		for _, step := range steps {
			logger.Printf("dropping: %s", step.Name)
			script := strings.Join(step.Drop, ";\n") + ";"
			if err := client.SQL(ctx, script); err != nil {
				return fmt.Errorf("teardown stopped at step %s: %w", step.Name, err)
			}
		}
		logger.Println("done.")
		return nil
	}
}
