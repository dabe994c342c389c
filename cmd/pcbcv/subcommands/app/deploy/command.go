package deploy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"

	"github.com/youta-t/flarc"

	"github.com/probeworks/pcbcv/cmd/pcbcv/config/profiles"
	"github.com/probeworks/pcbcv/cmd/pcbcv/env"
	"github.com/probeworks/pcbcv/cmd/pcbcv/snowcli"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/common"
	"github.com/probeworks/pcbcv/pkg/manifest"
	"github.com/probeworks/pcbcv/pkg/utils/filewatch"
)

type Flag struct {
	Dir      string `flag:"dir" alias:"d" help:"app source directory"`
	MainFile string `flag:"main-file" help:"entrypoint file within --dir"`
	Force    bool   `flag:"force" help:"upload every file, even unchanged ones"`
	Watch    bool   `flag:"watch" alias:"w" help:"stay running and redeploy when --dir changes"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"upload the inspector app sources and (re)create the app",
		Flag{
			Dir:      "streamlitapp",
			MainFile: "streamlit_app.py",
		},
		flarc.Args{},
		common.NewTask(Task(nil)),
		flarc.WithDescription(`
Upload every file under --dir to the stage and create or replace the app
object pointing at it.

Files whose content has not changed since the last deploy are skipped; a
small local manifest remembers what was uploaded where. A file that fails
to upload is reported and deployment continues, so one broken asset does
not block the app.

With --watch the command stays running and redeploys whenever a file under
--dir changes. Stop it with Ctrl-C.
`),
	)
}

// Options for tests: a fixed manifest location instead of the user's.
type Options struct {
	ManifestPath string
}

func Task(opts *Options) common.Task[Flag] {
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

		main := filepath.Join(flags.Dir, flags.MainFile)
		if _, err := os.Stat(main); err != nil {
			return fmt.Errorf("app entrypoint is not readable: %s: %w", main, err)
		}

		manifestPath := ""
		if opts != nil {
			manifestPath = opts.ManifestPath
		}
		if manifestPath == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			manifestPath = filepath.Join(home, ".pcbcv", "sync.db")
		}
		man, err := manifest.Open(manifestPath)
		if err != nil {
			return fmt.Errorf("opening sync manifest %s: %w", manifestPath, err)
		}
		defer man.Close()

		for {
			if err := deployOnce(ctx, logger, e, client, man, flags); err != nil {
				return err
			}
			if !flags.Watch {
				return nil
			}

			logger.Printf("watching %s for changes ... (Ctrl-C to stop)", flags.Dir)
			wctx, stop, err := filewatch.UntilModifyContext(ctx, watchTargets(flags.Dir)...)
			if err != nil {
				return err
			}
			<-wctx.Done()
			stop()

			if ctx.Err() != nil {
				logger.Println("stopped.")
				return nil
			}
			logger.Println("change detected. redeploying ...")
		}
	}
}

func deployOnce(
	ctx context.Context,
	logger *log.Logger,
	e env.Env,
	client snowcli.Client,
	man *manifest.Manifest,
	flags Flag,
) error {
	stageRoot := fmt.Sprintf("@%s/app", e.Objects.Qualified(e.Objects.Stage))

	uploaded, skipped, failed := 0, 0, 0
	err := filepath.WalkDir(flags.Dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}

		rel, err := filepath.Rel(flags.Dir, p)
		if err != nil {
			return err
		}
		dest := stageRoot
		if dir := path.Dir(filepath.ToSlash(rel)); dir != "." {
			dest = stageRoot + "/" + dir
		}

		sha, err := manifest.HashFile(p)
		if err != nil {
			return err
		}
		if !flags.Force {
			synced, err := man.IsSynced(ctx, dest, rel, sha)
			if err != nil {
				return err
			}
			if synced {
				skipped++
				return nil
			}
		}

		if err := client.StageCopy(ctx, p, dest, true); err != nil {
			if errors.Is(err, snowcli.ErrCLINotFound) {
				return err
			}
			logger.Printf("[WARN] failed to upload %s: %s", p, err)
			failed++
			return nil
		}
		uploaded++
		return man.MarkSynced(ctx, dest, rel, sha)
	})
	if err != nil {
		return err
	}
	logger.Printf(
		"uploaded %d files to %s (%d unchanged, %d failed)",
		uploaded, stageRoot, skipped, failed,
	)
	if 0 < failed && uploaded == 0 && skipped == 0 {
		return fmt.Errorf("every upload to %s failed", stageRoot)
	}

	app := e.Objects.Qualified(e.Objects.App)
	script := fmt.Sprintf(
		"CREATE OR REPLACE STREAMLIT %s ROOT_LOCATION = '%s'"+
			" MAIN_FILE = '%s' QUERY_WAREHOUSE = %s;",
		app, stageRoot, filepath.ToSlash(flags.MainFile), e.Objects.Warehouse,
	)
	logger.Printf("creating app %s ...", app)
	if err := client.SQL(ctx, script); err != nil {
		return err
	}
	logger.Println("done. open the app from the web console.")
	return nil
}

// watchTargets lists dir and its subdirectories; the watcher sees direct
// entries of a directory only.
func watchTargets(dir string) []string {
	targets := []string{}
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			targets = append(targets, p)
		}
		return nil
	})
	if len(targets) == 0 {
		targets = append(targets, dir)
	}
	return targets
}
