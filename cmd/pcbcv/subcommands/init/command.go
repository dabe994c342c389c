package init

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/youta-t/flarc"

	"github.com/probeworks/pcbcv/cmd/pcbcv/config/profiles"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/common"
	"github.com/probeworks/pcbcv/pkg/warehouse/keypair"
)

type Flag struct {
	Verify bool `flag:"verify" help:"check the private key and print its fingerprint before saving"`
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"register a connection profile for this project",
		Flag{},
		flarc.Args{},
		common.NewTaskWithCommonFlag(Task()),
		flarc.WithDescription(`
Register the connection parameters given by flags (or SNOWFLAKE_* environment
variables) as the profile named by --profile, and mark the current directory
as a pcbcv project.

To register a key-pair profile named "demo":

    {{ .Command }} --profile demo --account myorg-myacct --user alice \
        --authenticator snowflake_jwt --private-key-file ~/.ssh/sf_rsa_key.p8

To reuse a named connection of the vendor CLI:

    {{ .Command }} --profile demo --connection demo

The profile store is a private file; it is created with permission 0600.
`),
	)
}

func Task() common.TaskWithCommonFlag[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		commonFlag common.CommonFlags,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		prof := &profiles.Profile{}
		common.OverlayProfile(prof, commonFlag)

		if prof.Connection == "" && prof.Account == "" {
			return fmt.Errorf(
				"%w: give at least --connection or --account/--user",
				flarc.ErrUsage,
			)
		}
		if err := prof.Verify(); err != nil {
			return err
		}

		if cl.Flags().Verify && prof.PrivateKeyFile != "" {
			key, err := keypair.Load(prof.PrivateKeyFile)
			if err != nil {
				return err
			}
			fp, err := keypair.Fingerprint(&key.PublicKey)
			if err != nil {
				return err
			}
			logger.Printf("private key is fine. public key fingerprint: %s", fp)
		}

		if prof.Password != "" {
			logger.Println(
				"[WARN] the profile stores a password. Prefer key-pair auth" +
					" or a named vendor CLI connection.",
			)
		}

		store, err := profiles.LoadProfileStore(commonFlag.ProfileStore)
		if errors.Is(err, profiles.ErrProfileStoreNotFound) {
			store = profiles.ProfileStore{}
		} else if err != nil {
			return fmt.Errorf(
				"%w: failed to load profile store (%s)", err, commonFlag.ProfileStore,
			)
		}

		store[commonFlag.Profile] = prof
		if err := store.Save(commonFlag.ProfileStore); err != nil {
			return fmt.Errorf(
				"%w: failed to save profile store (%s)", err, commonFlag.ProfileStore,
			)
		}
		logger.Printf(
			"profile %s is saved to %s", commonFlag.Profile, commonFlag.ProfileStore,
		)

		f, err := os.OpenFile(
			".pcbcvprofile", os.O_RDWR|os.O_CREATE|os.O_TRUNC, os.FileMode(0600),
		)
		if err != nil {
			return fmt.Errorf("failed to open .pcbcvprofile: %w", err)
		}
		defer f.Close()
		if _, err := fmt.Fprintln(f, commonFlag.Profile); err != nil {
			return err
		}
		logger.Printf("this directory now uses profile %s", commonFlag.Profile)

		return nil
	}
}
