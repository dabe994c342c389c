package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"

	subapp "github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/app"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/common"
	subdataset "github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/dataset"
	subdoctor "github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/doctor"
	subinit "github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/init"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/logger"
	subnotebook "github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/notebook"
	subsetup "github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/setup"
	subteardown "github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/teardown"
	subversion "github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/version"
	"github.com/probeworks/pcbcv/pkg/utils/try"
	"github.com/youta-t/flarc"
)

func main() {
	name := path.Base(os.Args[0])
	logger := logger.Default()
	logger.SetPrefix(fmt.Sprintf("[%s] ", name))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	cf := try.To(common.Flags(".")).OrFatal(logger)
	init := try.To(subinit.New()).OrFatal(logger)
	setup := try.To(subsetup.New()).OrFatal(logger)
	teardown := try.To(subteardown.New()).OrFatal(logger)
	dataset := try.To(subdataset.New()).OrFatal(logger)
	notebook := try.To(subnotebook.New()).OrFatal(logger)
	app := try.To(subapp.New()).OrFatal(logger)
	doctor := try.To(subdoctor.New()).OrFatal(logger)
	version := try.To(subversion.New()).OrFatal(logger)

	pcbcv := try.To(
		flarc.NewCommandGroup(
			"Provision, load and deploy the PCB defect detection demo",
			cf,
			flarc.WithSubcommand("init", init),
			flarc.WithSubcommand("doctor", doctor),
			flarc.WithSubcommand("setup", setup),
			flarc.WithSubcommand("dataset", dataset),
			flarc.WithSubcommand("notebook", notebook),
			flarc.WithSubcommand("app", app),
			flarc.WithSubcommand("teardown", teardown),
			flarc.WithSubcommand("version", version),
		),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, pcbcv, flarc.WithHelp(true)))
}
