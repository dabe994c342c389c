package doctor_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gitmock "github.com/probeworks/pcbcv/cmd/pcbcv/gitcli/mock"
	"github.com/probeworks/pcbcv/cmd/pcbcv/snowcli"
	snowmock "github.com/probeworks/pcbcv/cmd/pcbcv/snowcli/mock"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/common"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/doctor"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/internal/commandline"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/logger"
	"github.com/probeworks/pcbcv/pkg/warehouse/sqlapi"
)

func writeKey(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "rsa.p8")
	content := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDoctor(t *testing.T) {
	t.Setenv("SNOWFLAKE_ACCOUNT", "")
	t.Setenv("SNOWFLAKE_USER", "")
	t.Setenv("SNOWFLAKE_DEFAULT_CONNECTION_NAME", "")

	healthyDeps := func(t *testing.T) doctor.Deps {
		snow := snowmock.New(t)
		snow.Impl.Version = func(ctx context.Context) (string, error) {
			return "Snowflake CLI version: 3.2.0", nil
		}
		git := gitmock.New(t)
		git.Impl.Version = func(ctx context.Context) (string, error) {
			return "git version 2.43.0", nil
		}
		return doctor.Deps{Snow: snow, Git: git}
	}

	run := func(
		t *testing.T, deps doctor.Deps, commonFlag common.CommonFlags, flags doctor.Flag,
	) (string, error) {
		t.Helper()
		stdout := new(strings.Builder)
		testee := doctor.Task(deps)
		err := testee(
			context.Background(), logger.Null(), commonFlag,
			commandline.MockCommandline[doctor.Flag]{
				Fullname_: "pcbcv doctor",
				Stdout_:   stdout,
				Stderr_:   new(strings.Builder),
				Flags_:    flags,
			},
			[]any{},
		)
		return stdout.String(), err
	}

	t.Run("all checks pass on a healthy machine", func(t *testing.T) {
		out, err := run(t, healthyDeps(t), common.CommonFlags{
			Profile:      "default",
			ProfileStore: filepath.Join(t.TempDir(), "no-such-store"),
			Account:      "acct",
			User:         "alice",
		}, doctor.Flag{})
		if err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, out)
		}

		for _, want := range []string{
			"ok:   vendor CLI (Snowflake CLI version: 3.2.0)",
			"ok:   git (git version 2.43.0)",
			"ok:   profile default",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("output misses %q:\n%s", want, out)
			}
		}
		if strings.Contains(out, "FAIL") {
			t.Errorf("unexpected failure:\n%s", out)
		}
	})

	t.Run("a missing vendor CLI fails the run but not the other checks", func(t *testing.T) {
		deps := healthyDeps(t)
		snow := snowmock.New(t)
		snow.Impl.Version = func(ctx context.Context) (string, error) {
			return "", snowcli.ErrCLINotFound
		}
		deps.Snow = snow

		out, err := run(t, deps, common.CommonFlags{
			Profile:      "default",
			ProfileStore: filepath.Join(t.TempDir(), "no-such-store"),
			Account:      "acct",
			User:         "alice",
		}, doctor.Flag{})
		if err == nil {
			t.Error("expected an error")
		}
		if !strings.Contains(out, "FAIL: vendor CLI") {
			t.Errorf("output misses the CLI failure:\n%s", out)
		}
		if !strings.Contains(out, "ok:   git") {
			t.Errorf("later checks did not run:\n%s", out)
		}
	})

	t.Run("an unresolvable profile is reported", func(t *testing.T) {
		out, err := run(t, healthyDeps(t), common.CommonFlags{
			Profile:      "default",
			ProfileStore: filepath.Join(t.TempDir(), "no-such-store"),
		}, doctor.Flag{})
		if err == nil {
			t.Error("expected an error")
		}
		if !strings.Contains(out, "FAIL: profile default") {
			t.Errorf("output misses the profile failure:\n%s", out)
		}
	})

	t.Run("the key is checked for key-pair profiles", func(t *testing.T) {
		keyFile := writeKey(t)
		out, err := run(t, healthyDeps(t), common.CommonFlags{
			Profile:        "default",
			ProfileStore:   filepath.Join(t.TempDir(), "no-such-store"),
			Account:        "acct",
			User:           "alice",
			Authenticator:  "snowflake_jwt",
			PrivateKeyFile: keyFile,
		}, doctor.Flag{})
		if err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, out)
		}
		if !strings.Contains(out, "ok:   private key (SHA256:") {
			t.Errorf("output misses the key check:\n%s", out)
		}
	})

	t.Run("--probe runs a statement over the SQL API", func(t *testing.T) {
		probed := false
		server := httptest.NewServer(http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				probed = true
				w.WriteHeader(http.StatusOK)
			},
		))
		defer server.Close()

		deps := healthyDeps(t)
		deps.SQLOpts = []sqlapi.Option{sqlapi.WithBaseURL(server.URL)}

		keyFile := writeKey(t)
		out, err := run(t, deps, common.CommonFlags{
			Profile:        "default",
			ProfileStore:   filepath.Join(t.TempDir(), "no-such-store"),
			Account:        "acct",
			User:           "alice",
			Authenticator:  "snowflake_jwt",
			PrivateKeyFile: keyFile,
		}, doctor.Flag{Probe: true})
		if err != nil {
			t.Fatalf("unexpected error: %v\n%s", err, out)
		}
		if !probed {
			t.Error("the SQL API was never called")
		}
		if !strings.Contains(out, "ok:   SQL API probe") {
			t.Errorf("output misses the probe:\n%s", out)
		}
	})

	t.Run("--probe without a key-pair profile fails", func(t *testing.T) {
		out, err := run(t, healthyDeps(t), common.CommonFlags{
			Profile:      "default",
			ProfileStore: filepath.Join(t.TempDir(), "no-such-store"),
			Account:      "acct",
			User:         "alice",
		}, doctor.Flag{Probe: true})
		if err == nil {
			t.Error("expected an error")
		}
		if !strings.Contains(out, "FAIL: SQL API probe") {
			t.Errorf("output misses the probe failure:\n%s", out)
		}
	})
}
