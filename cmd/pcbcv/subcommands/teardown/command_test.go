package teardown_test

import (
	"context"
	"strings"
	"testing"

	"github.com/probeworks/pcbcv/cmd/pcbcv/config/profiles"
	"github.com/probeworks/pcbcv/cmd/pcbcv/env"
	"github.com/probeworks/pcbcv/cmd/pcbcv/snowcli/mock"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/internal/commandline"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/logger"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/teardown"
)

func TestTeardown(t *testing.T) {
	profile := profiles.Profile{Account: "acct", User: "alice"}

	t.Run("--yes drops everything in reverse creation order", func(t *testing.T) {
		client := mock.New(t)
		scripts := []string{}
		client.Impl.SQL = func(_ context.Context, statements string) error {
			scripts = append(scripts, statements)
			return nil
		}

		testee := teardown.Task()
		err := testee(
			context.Background(), logger.Null(), *env.New(), profile, client,
			commandline.MockCommandline[teardown.Flag]{
				Fullname_: "pcbcv teardown",
				Stdin_:    strings.NewReader(""),
				Stdout_:   new(strings.Builder),
				Stderr_:   new(strings.Builder),
				Flags_:    teardown.Flag{Yes: true},
			},
			[]any{},
		)
		if err != nil {
			t.Fatal(err)
		}

		// app, notebook, tables, stage, compute pool, warehouse, database, role.
		if len(scripts) != 8 {
			t.Fatalf("wrong script count: %d", len(scripts))
		}
		for i, want := range []string{
			"DROP STREAMLIT IF EXISTS PCB_CV.PUBLIC.PCB_CV_INSPECTOR",
			"DROP NOTEBOOK IF EXISTS PCB_CV.PUBLIC.PCB_CV_TRAIN_NOTEBOOK",
			"DROP TABLE IF EXISTS PCB_CV.PUBLIC.IMAGES_LANDING",
			"DROP STAGE IF EXISTS PCB_CV.PUBLIC.PCB_CV_STAGE",
			"DROP COMPUTE POOL IF EXISTS PCB_CV_GPU_POOL",
			"DROP WAREHOUSE IF EXISTS PCB_CV_WH",
			"DROP DATABASE IF EXISTS PCB_CV",
			"DROP ROLE IF EXISTS PCB_CV_ROLE",
		} {
			if !strings.Contains(scripts[i], want) {
				t.Errorf("script %d misses %q:\n%s", i, want, scripts[i])
			}
		}
	})

	t.Run("it asks first and 'n' cancels", func(t *testing.T) {
		client := mock.New(t) // any call is fatal

		stdout := new(strings.Builder)
		testee := teardown.Task()
		err := testee(
			context.Background(), logger.Null(), *env.New(), profile, client,
			commandline.MockCommandline[teardown.Flag]{
				Fullname_: "pcbcv teardown",
				Stdin_:    strings.NewReader("n\n"),
				Stdout_:   stdout,
				Stderr_:   new(strings.Builder),
				Flags_:    teardown.Flag{},
			},
			[]any{},
		)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(stdout.String(), "continue?") {
			t.Error("no confirmation prompt was shown")
		}
	})

	t.Run("answering 'yes' proceeds", func(t *testing.T) {
		client := mock.New(t)
		calls := 0
		client.Impl.SQL = func(_ context.Context, statements string) error {
			calls += 1
			return nil
		}

		testee := teardown.Task()
		err := testee(
			context.Background(), logger.Null(), *env.New(), profile, client,
			commandline.MockCommandline[teardown.Flag]{
				Fullname_: "pcbcv teardown",
				Stdin_:    strings.NewReader("yes\n"),
				Stdout_:   new(strings.Builder),
				Stderr_:   new(strings.Builder),
				Flags_:    teardown.Flag{},
			},
			[]any{},
		)
		if err != nil {
			t.Fatal(err)
		}
		if calls == 0 {
			t.Error("nothing was dropped")
		}
	})

	t.Run("--skip-* keeps objects", func(t *testing.T) {
		client := mock.New(t)
		scripts := []string{}
		client.Impl.SQL = func(_ context.Context, statements string) error {
			scripts = append(scripts, statements)
			return nil
		}

		testee := teardown.Task()
		err := testee(
			context.Background(), logger.Null(), *env.New(), profile, client,
			commandline.MockCommandline[teardown.Flag]{
				Fullname_: "pcbcv teardown",
				Stdin_:    strings.NewReader(""),
				Stdout_:   new(strings.Builder),
				Stderr_:   new(strings.Builder),
				Flags_: teardown.Flag{
					Yes:      true,
					SkipRole: true,
				},
			},
			[]any{},
		)
		if err != nil {
			t.Fatal(err)
		}

		all := strings.Join(scripts, "\n")
		if strings.Contains(all, "DROP ROLE") {
			t.Error("role was dropped despite --skip-role")
		}
		if !strings.Contains(all, "DROP DATABASE") {
			t.Error("database was kept without --skip-*")
		}
	})

	t.Run("--dry-run prints the SQL and touches nothing", func(t *testing.T) {
		client := mock.New(t) // any call is fatal

		stdout := new(strings.Builder)
		testee := teardown.Task()
		err := testee(
			context.Background(), logger.Null(), *env.New(), profile, client,
			commandline.MockCommandline[teardown.Flag]{
				Fullname_: "pcbcv teardown",
				Stdin_:    strings.NewReader(""),
				Stdout_:   stdout,
				Stderr_:   new(strings.Builder),
				Flags_:    teardown.Flag{DryRun: true},
			},
			[]any{},
		)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(stdout.String(), "DROP DATABASE IF EXISTS PCB_CV") {
			t.Error("dry-run output misses the database drop")
		}
	})
}
