package app

import (
	app_deploy "github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/app/deploy"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	deploy, err := app_deploy.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Manage the inspector web app.",
		struct{}{},
		flarc.WithSubcommand("deploy", deploy),
	)
}
