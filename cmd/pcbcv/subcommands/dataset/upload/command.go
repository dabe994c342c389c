package upload

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
	"github.com/youta-t/flarc"

	"github.com/probeworks/pcbcv/cmd/pcbcv/config/profiles"
	"github.com/probeworks/pcbcv/cmd/pcbcv/env"
	"github.com/probeworks/pcbcv/cmd/pcbcv/snowcli"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/common"
	"github.com/probeworks/pcbcv/pkg/dataset"
	"github.com/probeworks/pcbcv/pkg/utils"
	"github.com/probeworks/pcbcv/pkg/warehouse/session"
)

type Flag struct {
	DataDir      string  `flag:"data-dir" help:"dataset directory. Default: <download dest>/<dataset path>"`
	BatchSize    int     `flag:"batch-size" help:"rows per INSERT statement"`
	TestFraction float64 `flag:"test-fraction" help:"fraction of images held out as the test set"`
	Seed         int64   `flag:"seed" help:"shuffle seed of the train/test split"`
}

// tables written by the ETL, in write order.
const (
	tableLabels = "LABELS_TRAIN"
	tableJoined = "TRAIN_IMAGES_LABELS"
	tableTrain  = "TRAINING_DATA"
	tableTest   = "TEST_DATA"
)

var labelColumns = []session.Column{
	{Name: "FILENAME", Type: "VARCHAR"},
	{Name: "XMIN", Type: "FLOAT"},
	{Name: "YMIN", Type: "FLOAT"},
	{Name: "XMAX", Type: "FLOAT"},
	{Name: "YMAX", Type: "FLOAT"},
	{Name: "CLASS", Type: "NUMBER(38,0)"},
}

var recordColumns = append(
	labelColumns[0:len(labelColumns):len(labelColumns)],
	session.Column{Name: "IMAGE_DATA", Type: "VARCHAR"},
)

// Opener opens the warehouse session the rows are written through.
type Opener func(params session.Params, opt ...session.Option) (session.Writer, error)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"parse the dataset and bulk-load it into the warehouse",
		Flag{
			DataDir:      filepath.Join("data", "PCBData"),
			BatchSize:    500,
			TestFraction: 0.1,
			Seed:         dataset.DefaultSeed,
		},
		flarc.Args{},
		common.NewTask(Task(defaultOpener)),
		flarc.WithDescription(`
Walk the dataset directory, parse the bounding-box label files, encode the
test images as base64 and write four tables:

	LABELS_TRAIN         every bounding box of a labelled image
	TRAIN_IMAGES_LABELS  the boxes joined with their base64 image
	TRAINING_DATA        the training side of the shuffled split
	TEST_DATA            the held-out side of the shuffled split

Images that fail to decode are skipped with a warning; malformed label lines
are skipped silently, matching the dataset's own loose format.

The split is reproducible: the same --seed and --test-fraction always cut
the same way. Tables are replaced wholesale, so rerunning is safe.

This command connects with the database driver directly instead of the
vendor CLI, because it binds tens of thousands of rows.
`),
	)
}

func defaultOpener(params session.Params, opt ...session.Option) (session.Writer, error) {
	return session.Open(params, opt...)
}

func Task(open Opener) common.Task[Flag] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		e env.Env,
		profile profiles.Profile,
		client snowcli.Client,
		cl flarc.Commandline[Flag],
		params []any,
	) error {
		flags := cl.Flags()
		if flags.TestFraction < 0 || 1 < flags.TestFraction {
			return fmt.Errorf("%w: --test-fraction must be in [0, 1]", flarc.ErrUsage)
		}
		if profile.Account == "" {
			// named vendor CLI connections are opaque to the driver.
			return fmt.Errorf(
				"%w: upload connects with the driver directly and needs"+
					" --account/--user (or a profile carrying them),"+
					" not only --connection",
				profiles.ErrProfileInvalid,
			)
		}

		boxes, nFiles, err := dataset.CollectLabels(flags.DataDir)
		if err != nil {
			return fmt.Errorf("reading labels under %s: %w", flags.DataDir, err)
		}
		if len(boxes) == 0 {
			return fmt.Errorf(
				"no labels found under %s. run `dataset download` first?", flags.DataDir,
			)
		}
		logger.Printf("parsed %d bounding boxes from %d label files", len(boxes), nFiles)

		images, skipped, err := dataset.EncodeImages(
			flags.DataDir, dataset.LabelledFilenames(boxes),
		)
		if err != nil {
			return fmt.Errorf("encoding images under %s: %w", flags.DataDir, err)
		}
		for _, s := range skipped {
			logger.Printf("[WARN] %s does not decode as an image. skipped.", s)
		}
		logger.Printf("encoded %d images", len(images))

		records := dataset.Merge(boxes, images)
		train, test := dataset.Split(records, flags.TestFraction, flags.Seed)
		logger.Printf(
			"split %d rows into %d train / %d test (seed %d)",
			len(records), len(train), len(test), flags.Seed,
		)

		writer, err := open(
			sessionParams(profile, e), session.WithBatchSize(flags.BatchSize),
		)
		if err != nil {
			return fmt.Errorf("opening the warehouse session: %w", err)
		}
		defer writer.Close()

		recordRows := func(rs []dataset.Record) [][]any {
			return utils.Map(rs, func(r dataset.Record) []any {
				return []any{r.Filename, r.XMin, r.YMin, r.XMax, r.YMax, r.Class, r.ImageData}
			})
		}
		writes := []struct {
			table string
			cols  []session.Column
			rows  [][]any
		}{
			{tableLabels, labelColumns, utils.Map(boxes, func(b dataset.BoundingBox) []any {
				return []any{b.Filename, b.XMin, b.YMin, b.XMax, b.YMax, b.Class}
			})},
			{tableJoined, recordColumns, recordRows(records)},
			{tableTrain, recordColumns, recordRows(train)},
			{tableTest, recordColumns, recordRows(test)},
		}

		for _, w := range writes {
			logger.Printf("writing %s (%d rows) ...", w.table, len(w.rows))
			bar := pb.New(len(w.rows)).SetWriter(cl.Stderr()).Start()
			err := writer.Overwrite(ctx, w.table, w.cols, w.rows, func(written int) {
				bar.SetCurrent(int64(written))
			})
			bar.Finish()
			if err != nil {
				return fmt.Errorf("writing %s: %w", w.table, err)
			}
		}

		logger.Println("done.")
		return nil
	}
}

// sessionParams merges the profile with the provisioned object names: when
// the profile does not pin a database (schema, role, warehouse), the tables
// go where `setup` created them.
func sessionParams(p profiles.Profile, e env.Env) session.Params {
	params := session.Params{
		Account:        p.Account,
		User:           p.User,
		Password:       p.Password,
		Authenticator:  p.Authenticator,
		PrivateKeyFile: p.PrivateKeyFile,
		Database:       p.Database,
		Schema:         p.Schema,
		Role:           p.Role,
		Warehouse:      p.Warehouse,
	}
	if params.Database == "" {
		params.Database = e.Objects.Database
	}
	if params.Schema == "" {
		params.Schema = e.Objects.Schema
	}
	if params.Role == "" {
		params.Role = e.Objects.Role
	}
	if params.Warehouse == "" {
		params.Warehouse = e.Objects.Warehouse
	}
	return params
}
