// Package snowcli drives the vendor `snow` CLI. Everything the tool does
// against the platform, except the bulk upload ETL, goes through here.
package snowcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/probeworks/pcbcv/cmd/pcbcv/config/profiles"
	"github.com/probeworks/pcbcv/pkg/utils"
)

var ErrCLINotFound = errors.New("vendor CLI is not found on PATH")
var ErrCommandFailed = errors.New("vendor CLI command failed")

// Connection is the set of connection parameters passed to every vendor
// CLI invocation. Each non-zero field maps 1:1 to the CLI flag of the
// same name.
type Connection struct {
	Account        string
	User           string
	Password       string
	Authenticator  string
	PrivateKeyFile string

	Database  string
	Schema    string
	Role      string
	Warehouse string

	Connection string
	Temporary  bool
}

// FromProfile translates a stored profile into connection arguments.
func FromProfile(p *profiles.Profile) Connection {
	if p == nil {
		return Connection{}
	}
	return Connection{
		Account:        p.Account,
		User:           p.User,
		Password:       p.Password,
		Authenticator:  p.Authenticator,
		PrivateKeyFile: p.PrivateKeyFile,
		Database:       p.Database,
		Schema:         p.Schema,
		Role:           p.Role,
		Warehouse:      p.Warehouse,
		Connection:     p.Connection,
		Temporary:      p.Temporary,
	}
}

// Args renders the connection as CLI arguments. Zero fields emit nothing.
func (c Connection) Args() []string {
	args := []string{}
	appendArg := func(flag, value string) {
		if value != "" {
			args = append(args, flag, value)
		}
	}

	appendArg("--connection", c.Connection)
	appendArg("--account", c.Account)
	appendArg("--user", c.User)
	appendArg("--password", c.Password)
	appendArg("--authenticator", c.Authenticator)
	appendArg("--private-key-file", c.PrivateKeyFile)
	appendArg("--database", c.Database)
	appendArg("--schema", c.Schema)
	appendArg("--role", c.Role)
	appendArg("--warehouse", c.Warehouse)
	if c.Temporary {
		args = append(args, "--temporary-connection")
	}
	return args
}

// Client runs vendor CLI commands with a fixed connection.
type Client interface {
	// Version reports the installed vendor CLI version.
	Version(ctx context.Context) (string, error)

	// SQL executes one or more SQL statements.
	SQL(ctx context.Context, statements string) error

	// SQLFile executes the SQL script at path.
	SQLFile(ctx context.Context, path string) error

	// StageCopy uploads a local file to a stage path ("@stage/dir").
	StageCopy(ctx context.Context, local string, stage string, overwrite bool) error
}

type client struct {
	bin    string
	conn   Connection
	stdout io.Writer
	stderr io.Writer
	tmpdir string
}

type Option = func(*client) *client

// WithBinary overrides the vendor CLI executable name. Default "snow".
func WithBinary(bin string) Option {
	return func(c *client) *client {
		c.bin = bin
		return c
	}
}

func WithStdout(w io.Writer) Option {
	return func(c *client) *client {
		c.stdout = w
		return c
	}
}

func WithStderr(w io.Writer) Option {
	return func(c *client) *client {
		c.stderr = w
		return c
	}
}

func WithTempDir(dir string) Option {
	return func(c *client) *client {
		c.tmpdir = dir
		return c
	}
}

func New(conn Connection, opt ...Option) Client {
	return utils.ApplyAll(
		&client{
			bin:    "snow",
			conn:   conn,
			stdout: os.Stdout,
			stderr: os.Stderr,
		},
		opt...,
	)
}

func (c *client) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrCLINotFound, c.bin)
	}
	exitErr := new(exec.ExitError)
	if errors.As(err, &exitErr) {
		head := args
		if 2 < len(head) {
			head = head[:2]
		}
		return fmt.Errorf(
			"%w: %s %s (exit code %d)",
			ErrCommandFailed, c.bin, strings.Join(head, " "), exitErr.ExitCode(),
		)
	}
	return err
}

func (c *client) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, c.bin, "--version").Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrCLINotFound, c.bin)
		}
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// SQL writes statements into a temporary script and executes it, so that
// multi-statement steps behave the same as hand-run scripts. The script is
// removed when the call returns.
func (c *client) SQL(ctx context.Context, statements string) error {
	f, err := os.CreateTemp(c.tmpdir, "pcbcv-*.sql")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	_, werr := f.WriteString(statements)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	if cerr != nil {
		return cerr
	}

	return c.SQLFile(ctx, f.Name())
}

func (c *client) SQLFile(ctx context.Context, path string) error {
	args := append([]string{"sql", "-f", path}, c.conn.Args()...)
	return c.run(ctx, args...)
}

func (c *client) StageCopy(ctx context.Context, local string, stage string, overwrite bool) error {
	args := []string{"stage", "copy", local, stage}
	if overwrite {
		args = append(args, "--overwrite")
	}
	args = append(args, c.conn.Args()...)
	return c.run(ctx, args...)
}
