package common_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/common"
)

func TestFlags(t *testing.T) {
	write := func(t *testing.T, path string, content string) {
		t.Helper()
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("without project files it falls back to defaults", func(t *testing.T) {
		root := t.TempDir()
		home := t.TempDir()

		actual, err := common.Flags(root, common.WithHome(home))
		if err != nil {
			t.Fatal(err)
		}

		if actual.Profile != "default" {
			t.Errorf("wrong profile: %s", actual.Profile)
		}
		if expected := filepath.Join(home, ".pcbcv", "profile"); actual.ProfileStore != expected {
			t.Errorf(
				"wrong profile store: (actual, expected) = (%s, %s)",
				actual.ProfileStore, expected,
			)
		}
	})

	t.Run("it reads .pcbcvprofile and finds pcbcvenv next to it", func(t *testing.T) {
		root := t.TempDir()
		write(t, filepath.Join(root, ".pcbcvprofile"), "demo\n")
		write(t, filepath.Join(root, "pcbcvenv"), "")

		actual, err := common.Flags(root, common.WithHome(t.TempDir()))
		if err != nil {
			t.Fatal(err)
		}

		if actual.Profile != "demo" {
			t.Errorf("wrong profile: %s", actual.Profile)
		}
		if actual.Env != filepath.Join(root, "pcbcvenv") {
			t.Errorf("wrong env: %s", actual.Env)
		}
	})

	t.Run("project files are found in ancestor directories", func(t *testing.T) {
		root := t.TempDir()
		write(t, filepath.Join(root, ".pcbcvprofile"), "demo\n")
		write(t, filepath.Join(root, "pcbcvenv"), "")
		nested := filepath.Join(root, "a", "b")
		if err := os.MkdirAll(nested, 0755); err != nil {
			t.Fatal(err)
		}

		actual, err := common.Flags(nested, common.WithHome(t.TempDir()))
		if err != nil {
			t.Fatal(err)
		}

		if actual.Profile != "demo" {
			t.Errorf("wrong profile: %s", actual.Profile)
		}
		if actual.Env != filepath.Join(root, "pcbcvenv") {
			t.Errorf("wrong env: %s", actual.Env)
		}
	})

	t.Run("a .env in the start directory is loaded, not overriding", func(t *testing.T) {
		root := t.TempDir()
		write(t, filepath.Join(root, ".env"),
			"SNOWFLAKE_ACCOUNT=from-dotenv\nSNOWFLAKE_USER=dotenv-user\n")

		t.Setenv("SNOWFLAKE_ACCOUNT", "from-environ")
		t.Setenv("SNOWFLAKE_USER", "")
		os.Unsetenv("SNOWFLAKE_USER")

		if _, err := common.Flags(root, common.WithHome(t.TempDir())); err != nil {
			t.Fatal(err)
		}

		if actual := os.Getenv("SNOWFLAKE_ACCOUNT"); actual != "from-environ" {
			t.Errorf(".env overrode the environment: %s", actual)
		}
		if actual := os.Getenv("SNOWFLAKE_USER"); actual != "dotenv-user" {
			t.Errorf(".env was not loaded: %s", actual)
		}
	})
}
