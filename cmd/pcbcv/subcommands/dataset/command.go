package dataset

import (
	dataset_download "github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/dataset/download"
	dataset_upload "github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/dataset/upload"
	"github.com/youta-t/flarc"
)

func New() (flarc.Command, error) {
	download, err := dataset_download.New()
	if err != nil {
		return nil, err
	}
	upload, err := dataset_upload.New()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Fetch the public PCB dataset and load it into the warehouse.",
		struct{}{},
		flarc.WithSubcommand("download", download),
		flarc.WithSubcommand("upload", upload),
	)
}
