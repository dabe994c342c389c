package download

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/youta-t/flarc"

	"github.com/probeworks/pcbcv/cmd/pcbcv/env"
	"github.com/probeworks/pcbcv/cmd/pcbcv/gitcli"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/common"
)

type Flag struct {
	Dest  string `flag:"dest" alias:"d" help:"directory to clone the dataset repository into"`
	Force bool   `flag:"force" help:"fetch even if the dataset directory already exists"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"fetch the PCB dataset from its public repository",
		Flag{
			Dest: "data",
		},
		flarc.Args{},
		common.NewTaskWithCommonFlag(Task(nil)),
		flarc.WithDescription(`
Clone the dataset repository into --dest with a blobless sparse checkout, so
that only the dataset directory is downloaded instead of the whole repository.

The repository, ref and directory come from the "dataset" section of the
nearest "pcbcvenv" file. By default that is the DeepPCB repository and its
PCBData directory.

When the dataset directory already exists the command does nothing; pass
--force to fetch anyway (into a fresh clone, so remove --dest first).
`),
	)
}

// Task fetches the dataset. Pass nil to build the git cloner from the
// commandline writers; tests inject their own.
func Task(cloner gitcli.Cloner) common.TaskWithCommonFlag[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag common.CommonFlags,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		e, err := env.LoadEnv(commonFlag.Env)
		if err != nil {
			return fmt.Errorf("%w: failed to load pcbcvenv", err)
		}

		flags := cl.Flags()
		target := filepath.Join(flags.Dest, filepath.FromSlash(e.Dataset.Path))
		if !flags.Force {
			if _, err := os.Stat(target); err == nil {
				logger.Printf("%s already exists. skipped. (--force to fetch again)", target)
				return nil
			}
		}

		if cloner == nil {
			cloner = gitcli.New(
				gitcli.WithStdout(cl.Stdout()),
				gitcli.WithStderr(cl.Stderr()),
			)
		}

		logger.Printf("fetching %s (%s) ...", e.Dataset.Repo, e.Dataset.Path)
		if err := cloner.SparseCheckout(ctx, gitcli.SparseCheckout{
			Repo:  e.Dataset.Repo,
			Ref:   e.Dataset.Ref,
			Paths: []string{e.Dataset.Path},
			Dest:  flags.Dest,
		}); err != nil {
			return err
		}

		logger.Printf("done. dataset is at %s", target)
		return nil
	}
}
