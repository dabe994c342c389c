package doctor

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/youta-t/flarc"

	"github.com/probeworks/pcbcv/cmd/pcbcv/gitcli"
	"github.com/probeworks/pcbcv/cmd/pcbcv/snowcli"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/common"
	"github.com/probeworks/pcbcv/pkg/warehouse/keypair"
	"github.com/probeworks/pcbcv/pkg/warehouse/sqlapi"
)

type Flag struct {
	Probe bool `flag:"probe" help:"also run a query against the account over the SQL API (key-pair profiles only)"`
}

// Deps are the externals the checks run against. Zero fields get real
// implementations; tests inject fakes.
type Deps struct {
	Snow    snowcli.Client
	Git     gitcli.Cloner
	SQLOpts []sqlapi.Option
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"check that this machine can run the demo",
		Flag{},
		flarc.Args{},
		common.NewTaskWithCommonFlag(Task(Deps{})),
		flarc.WithDescription(`
Check the local prerequisites one by one and report each:

	- the vendor CLI is installed
	- git is installed
	- the connection profile resolves and is well-formed
	- the private key loads, for key-pair profiles

With --probe, additionally sign a token with the private key and run
"SELECT 1" over the SQL API, proving the key is registered to the user.

Exits non-zero when any check fails.
`),
	)
}

func Task(deps Deps) common.TaskWithCommonFlag[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag common.CommonFlags,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		out := cl.Stdout()
		failed := 0
		report := func(name string, err error) {
			if err == nil {
				fmt.Fprintf(out, "ok:   %s\n", name)
				return
			}
			failed++
			fmt.Fprintf(out, "FAIL: %s: %s\n", name, err)
		}

		snow := deps.Snow
		if snow == nil {
			snow = snowcli.New(
				snowcli.Connection{},
				snowcli.WithStdout(io.Discard),
				snowcli.WithStderr(io.Discard),
			)
		}
		if v, err := snow.Version(ctx); err != nil {
			report("vendor CLI", err)
		} else {
			report("vendor CLI ("+v+")", nil)
		}

		git := deps.Git
		if git == nil {
			git = gitcli.New(
				gitcli.WithStdout(io.Discard),
				gitcli.WithStderr(io.Discard),
			)
		}
		if v, err := git.Version(ctx); err != nil {
			report("git", err)
		} else {
			report("git ("+v+")", nil)
		}

		prof, err := common.ResolveProfile(commonFlag)
		report(fmt.Sprintf("profile %s", commonFlag.Profile), err)

		if err == nil && prof.PrivateKeyFile != "" {
			key, err := keypair.Load(prof.PrivateKeyFile)
			if err != nil {
				report("private key", err)
			} else {
				fp, err := keypair.Fingerprint(&key.PublicKey)
				report("private key ("+fp+")", err)

				if cl.Flags().Probe && err == nil {
					err := func() error {
						token, err := keypair.Token(
							key, prof.Account, prof.User, 5*time.Minute,
						)
						if err != nil {
							return err
						}
						api := sqlapi.New(prof.Account, token, deps.SQLOpts...)
						return api.Exec(ctx, "SELECT 1")
					}()
					report("SQL API probe", err)
				}
			}
		} else if cl.Flags().Probe {
			report("SQL API probe",
				fmt.Errorf("needs a key-pair profile (--authenticator snowflake_jwt)"))
		}

		if 0 < failed {
			return fmt.Errorf("%d checks failed", failed)
		}
		logger.Println("all checks passed.")
		return nil
	}
}
