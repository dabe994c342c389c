package deploy

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/youta-t/flarc"

	"github.com/probeworks/pcbcv/cmd/pcbcv/config/profiles"
	"github.com/probeworks/pcbcv/cmd/pcbcv/env"
	"github.com/probeworks/pcbcv/cmd/pcbcv/snowcli"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/common"
)

type Flag struct {
	File        string `flag:"file" alias:"f" help:"notebook file to deploy"`
	Environment string `flag:"environment" help:"conda environment file uploaded next to the notebook. Default: environment.yml beside --file, if present"`
}

// gpuRuntime is the platform's container runtime for GPU notebooks.
const gpuRuntime = "SYSTEM$GPU_RUNTIME"

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"upload the training notebook and (re)create it on the GPU pool",
		Flag{
			File: filepath.Join("notebook", "train_pcb_detection.ipynb"),
		},
		flarc.Args{},
		common.NewTask(Task()),
		flarc.WithDescription(`
Upload the notebook file (and its environment.yml, when one sits next to it)
to the stage, then create or replace the notebook object bound to the GPU
compute pool and add a live version, so it is runnable right away.

Rerun after editing the notebook locally; the stage copy overwrites.
`),
	)
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

		if _, err := os.Stat(flags.File); err != nil {
			return fmt.Errorf("notebook file is not readable: %s: %w", flags.File, err)
		}

		envFile := flags.Environment
		if envFile == "" {
			candidate := filepath.Join(filepath.Dir(flags.File), "environment.yml")
			if _, err := os.Stat(candidate); err == nil {
				envFile = candidate
			}
		}

		stageDir := fmt.Sprintf("@%s/notebook", e.Objects.Qualified(e.Objects.Stage))

		logger.Printf("uploading %s to %s ...", flags.File, stageDir)
		if err := client.StageCopy(ctx, flags.File, stageDir, true); err != nil {
			return err
		}
		if envFile != "" {
			logger.Printf("uploading %s to %s ...", envFile, stageDir)
			if err := client.StageCopy(ctx, envFile, stageDir, true); err != nil {
				return err
			}
		}

		notebook := e.Objects.Qualified(e.Objects.Notebook)
		script := strings.Join([]string{
			fmt.Sprintf(
				"CREATE OR REPLACE NOTEBOOK %s FROM '%s' MAIN_FILE = '%s'"+
					" QUERY_WAREHOUSE = %s COMPUTE_POOL = %s"+
					" RUNTIME_NAME = '%s' IDLE_AUTO_SHUTDOWN_TIME_SECONDS = 3600",
				notebook, stageDir, filepath.Base(flags.File),
				e.Objects.Warehouse, e.Objects.ComputePool, gpuRuntime,
			),
			fmt.Sprintf("ALTER NOTEBOOK %s ADD LIVE VERSION FROM LAST", notebook),
		}, ";\n") + ";"

		logger.Printf("creating notebook %s on compute pool %s ...", notebook, e.Objects.ComputePool)
		if err := client.SQL(ctx, script); err != nil {
			return err
		}

		logger.Println("done. open the notebook in the web console to train.")
		return nil
	}
}
