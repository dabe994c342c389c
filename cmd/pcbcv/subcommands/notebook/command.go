package notebook

import (
	notebook_deploy "github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/notebook/deploy"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	deploy, err := notebook_deploy.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Manage the GPU training notebook.",
		struct{}{},
		flarc.WithSubcommand("deploy", deploy),
	)
}
