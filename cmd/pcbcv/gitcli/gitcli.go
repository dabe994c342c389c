// Package gitcli fetches the public dataset with the git CLI, using a
// sparse checkout so that only the dataset directory is downloaded.
package gitcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/probeworks/pcbcv/pkg/utils"
)

var ErrGitNotFound = errors.New("git is not found on PATH")
var ErrCheckoutFailed = errors.New("git checkout failed")

// SparseCheckout describes what to fetch.
type SparseCheckout struct {
	// Repo is the clone URL.
	Repo string

	// Ref is a branch or tag. Empty means the remote default branch.
	Ref string

	// Paths are the only directories checked out.
	Paths []string

	// Dest is the directory the repository is cloned into.
	Dest string
}

// Cloner runs git.
type Cloner interface {
	Version(ctx context.Context) (string, error)
	SparseCheckout(ctx context.Context, sc SparseCheckout) error
}

type cloner struct {
	bin    string
	stdout io.Writer
	stderr io.Writer
}

type Option = func(*cloner) *cloner

func WithBinary(bin string) Option {
	return func(c *cloner) *cloner {
		c.bin = bin
		return c
	}
}

func WithStdout(w io.Writer) Option {
	return func(c *cloner) *cloner {
		c.stdout = w
		return c
	}
}

func WithStderr(w io.Writer) Option {
	return func(c *cloner) *cloner {
		c.stderr = w
		return c
	}
}

func New(opt ...Option) Cloner {
	return utils.ApplyAll(
		&cloner{bin: "git", stdout: os.Stdout, stderr: os.Stderr},
		opt...,
	)
}

func (c *cloner) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, c.bin, "--version").Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrGitNotFound, c.bin)
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// SparseCheckout clones sc.Repo into sc.Dest without blobs, restricts the
// working tree to sc.Paths and checks it out. Each git invocation is
// checked before the next runs.
func (c *cloner) SparseCheckout(ctx context.Context, sc SparseCheckout) error {
	cloneArgs := []string{
		"clone", "--filter=blob:none", "--no-checkout", "--depth", "1",
	}
	if sc.Ref != "" {
		cloneArgs = append(cloneArgs, "--branch", sc.Ref)
	}
	cloneArgs = append(cloneArgs, sc.Repo, sc.Dest)

	steps := [][]string{
		cloneArgs,
		append([]string{"-C", sc.Dest, "sparse-checkout", "set", "--cone"}, sc.Paths...),
		{"-C", sc.Dest, "checkout"},
	}

	for _, args := range steps {
		if err := c.run(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

func (c *cloner) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrGitNotFound, c.bin)
	}
	exitErr := new(exec.ExitError)
	if errors.As(err, &exitErr) {
		return fmt.Errorf(
			"%w: git %s (exit code %d)",
			ErrCheckoutFailed, args[0], exitErr.ExitCode(),
		)
	}
	return err
}
