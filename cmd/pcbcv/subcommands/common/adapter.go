package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/youta-t/flarc"

	"github.com/probeworks/pcbcv/cmd/pcbcv/config/profiles"
	"github.com/probeworks/pcbcv/cmd/pcbcv/env"
	"github.com/probeworks/pcbcv/cmd/pcbcv/snowcli"
)

type TaskWithCommonFlag[T any] func(
	ctx context.Context,
	logger *log.Logger,
	commonFlag CommonFlags,
	cl flarc.Commandline[T],
	params []any,
) error

func NewTaskWithCommonFlag[T any](task TaskWithCommonFlag[T]) flarc.Task[T] {
	return func(ctx context.Context, cl flarc.Commandline[T], pos []any) error {
		var commonFlag CommonFlags
		found := false
		newpos := make([]any, 0, len(pos))
		for _, p := range pos {
			switch v := p.(type) {
			case CommonFlags:
				found = true
				commonFlag = v
			default:
				newpos = append(newpos, p)
			}
		}
		if !found {
			return errors.New("programming error: common flags not found")
		}

		logger := log.New(cl.Stderr(), "", log.LstdFlags)
		logger.SetPrefix(fmt.Sprintf("[%s] ", cl.Fullname()))

		return task(
			ctx,
			logger,
			commonFlag,
			cl,
			newpos,
		)
	}
}

type Task[T any] func(
	ctx context.Context,
	logger *log.Logger,
	e env.Env,
	profile profiles.Profile,
	client snowcli.Client,
	cl flarc.Commandline[T],
	params []any,
) error

// NewTask wraps a task needing a resolved connection: the stored profile
// overlaid with SNOWFLAKE_* environment variables and then with command
// line flags, in that precedence order (flags win).
func NewTask[T any](task Task[T]) flarc.Task[T] {
	return NewTaskWithCommonFlag(func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag CommonFlags,
		cl flarc.Commandline[T],
		params []any,
	) error {
		prof, err := ResolveProfile(commonFlag)
		if err != nil {
			return err
		}

		e, err := env.LoadEnv(commonFlag.Env)
		if err != nil {
			return fmt.Errorf("%w: failed to load pcbcvenv", err)
		}

		client := snowcli.New(
			snowcli.FromProfile(prof),
			snowcli.WithStdout(cl.Stdout()),
			snowcli.WithStderr(cl.Stderr()),
		)
		return task(ctx, logger, *e, *prof, client, cl, params)
	})
}

// ResolveProfile loads the named profile (when the store has it), applies
// environment and flag overrides, and verifies the result.
//
// A missing store or profile is fine as long as the flags (or environment)
// carry enough to connect; the three scripts this tool replaces worked
// from bare flags, too.
func ResolveProfile(commonFlag CommonFlags) (*profiles.Profile, error) {
	prof := &profiles.Profile{}

	store, err := profiles.LoadProfileStore(commonFlag.ProfileStore)
	switch {
	case err == nil:
		if p, ok := store[commonFlag.Profile]; ok {
			prof = p
		}
	case errors.Is(err, profiles.ErrProfileStoreNotFound):
		// fall through to overrides.
	default:
		return nil, fmt.Errorf(
			"%w: failed to load profile store (%s)", err, commonFlag.ProfileStore,
		)
	}

	applyEnvOverrides(prof)
	applyFlagOverrides(prof, commonFlag)

	if prof.Connection == "" && prof.Account == "" {
		return nil, fmt.Errorf(
			"%w: profile '%s' is not in the profile store (%s) and no"+
				" --connection/--account is given. Try `pcbcv init` first",
			profiles.ErrProfileInvalid, commonFlag.Profile, commonFlag.ProfileStore,
		)
	}

	if err := prof.Verify(); err != nil {
		return nil, err
	}
	return prof, nil
}

// OverlayProfile applies environment and then flag overrides onto p.
// Used by `init` to build a profile from scratch.
func OverlayProfile(p *profiles.Profile, f CommonFlags) {
	applyEnvOverrides(p)
	applyFlagOverrides(p, f)
}

func applyEnvOverrides(p *profiles.Profile) {
	overlay := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	overlay(&p.Account, "SNOWFLAKE_ACCOUNT")
	overlay(&p.User, "SNOWFLAKE_USER")
	overlay(&p.Password, "SNOWFLAKE_PASSWORD")
	overlay(&p.Authenticator, "SNOWFLAKE_AUTHENTICATOR")
	overlay(&p.PrivateKeyFile, "SNOWFLAKE_PRIVATE_KEY_PATH")
	overlay(&p.Database, "SNOWFLAKE_DATABASE")
	overlay(&p.Schema, "SNOWFLAKE_SCHEMA")
	overlay(&p.Role, "SNOWFLAKE_ROLE")
	overlay(&p.Warehouse, "SNOWFLAKE_WAREHOUSE")
	overlay(&p.Connection, "SNOWFLAKE_DEFAULT_CONNECTION_NAME")
}

func applyFlagOverrides(p *profiles.Profile, f CommonFlags) {
	overlay := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	overlay(&p.Account, f.Account)
	overlay(&p.User, f.User)
	overlay(&p.Password, f.Password)
	overlay(&p.Authenticator, f.Authenticator)
	overlay(&p.PrivateKeyFile, f.PrivateKeyFile)
	overlay(&p.Database, f.Database)
	overlay(&p.Schema, f.Schema)
	overlay(&p.Role, f.Role)
	overlay(&p.Warehouse, f.Warehouse)
	overlay(&p.Connection, f.Connection)
	if f.Temporary {
		p.Temporary = true
	}
}
