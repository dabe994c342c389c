package upload_test

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/probeworks/pcbcv/cmd/pcbcv/config/profiles"
	"github.com/probeworks/pcbcv/cmd/pcbcv/env"
	"github.com/probeworks/pcbcv/cmd/pcbcv/snowcli/mock"
	upload "github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/dataset/upload"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/internal/commandline"
	"github.com/probeworks/pcbcv/cmd/pcbcv/subcommands/logger"
	"github.com/probeworks/pcbcv/pkg/warehouse/session"
)

type overwriteCall struct {
	table string
	cols  []session.Column
	rows  [][]any
}

type mockWriter struct {
	calls  []overwriteCall
	err    error
	closed bool
}

var _ session.Writer = &mockWriter{}

func (m *mockWriter) Overwrite(
	_ context.Context,
	table string,
	cols []session.Column,
	rows [][]any,
	progress func(int),
) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, overwriteCall{table: table, cols: cols, rows: rows})
	if progress != nil {
		progress(len(rows))
	}
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

// fixtureDataset builds a dataset tree with nImages labelled board shots,
// one bounding box each.
func fixtureDataset(t *testing.T, nImages int) string {
	t.Helper()
	root := t.TempDir()
	imageDir := filepath.Join(root, "group00041", "00041")
	labelDir := filepath.Join(root, "group00041", "00041_not")
	for _, d := range []string{imageDir, labelDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}

	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := 0; i < nImages; i++ {
		base := "0004100" + string(rune('0'+i))
		f, err := os.Create(filepath.Join(imageDir, base+"_test.jpg"))
		if err != nil {
			t.Fatal(err)
		}
		if err := jpeg.Encode(f, img, nil); err != nil {
			t.Fatal(err)
		}
		f.Close()

		label := filepath.Join(labelDir, base+".txt")
		if err := os.WriteFile(label, []byte("1 2 3 4 0\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestUpload(t *testing.T) {
	profile := profiles.Profile{Account: "acct", User: "alice"}

	run := func(t *testing.T, writer *mockWriter, flags upload.Flag) (session.Params, error) {
		t.Helper()
		var gotParams session.Params
		opener := func(params session.Params, opt ...session.Option) (session.Writer, error) {
			gotParams = params
			return writer, nil
		}

		testee := upload.Task(opener)
		err := testee(
			context.Background(), logger.Null(), *env.New(), profile, mock.New(t),
			commandline.MockCommandline[upload.Flag]{
				Fullname_: "pcbcv dataset upload",
				Stdout_:   new(strings.Builder),
				Stderr_:   new(strings.Builder),
				Flags_:    flags,
			},
			[]any{},
		)
		return gotParams, err
	}

	t.Run("it writes the four tables from the dataset", func(t *testing.T) {
		root := fixtureDataset(t, 10)
		writer := &mockWriter{}

		params, err := run(t, writer, upload.Flag{
			DataDir:      root,
			BatchSize:    500,
			TestFraction: 0.1,
			Seed:         42,
		})
		if err != nil {
			t.Fatal(err)
		}

		if len(writer.calls) != 4 {
			t.Fatalf("wrong table count: %d", len(writer.calls))
		}
		tables := []string{}
		for _, c := range writer.calls {
			tables = append(tables, c.table)
		}
		expected := []string{
			"LABELS_TRAIN", "TRAIN_IMAGES_LABELS", "TRAINING_DATA", "TEST_DATA",
		}
		for i := range expected {
			if tables[i] != expected[i] {
				t.Errorf(
					"wrong tables:\nactual   = %v\nexpected = %v",
					tables, expected,
				)
				break
			}
		}

		// 10 boxes, 10 joined rows; 10 * 0.1 = 1 held out.
		if n := len(writer.calls[0].rows); n != 10 {
			t.Errorf("wrong LABELS_TRAIN rows: %d", n)
		}
		if n := len(writer.calls[1].rows); n != 10 {
			t.Errorf("wrong TRAIN_IMAGES_LABELS rows: %d", n)
		}
		if n := len(writer.calls[2].rows); n != 9 {
			t.Errorf("wrong TRAINING_DATA rows: %d", n)
		}
		if n := len(writer.calls[3].rows); n != 1 {
			t.Errorf("wrong TEST_DATA rows: %d", n)
		}

		// label rows carry no image, joined rows do.
		if n := len(writer.calls[0].cols); n != 6 {
			t.Errorf("wrong LABELS_TRAIN columns: %d", n)
		}
		if n := len(writer.calls[1].cols); n != 7 {
			t.Errorf("wrong TRAIN_IMAGES_LABELS columns: %d", n)
		}
		if img := writer.calls[1].rows[0][6].(string); img == "" {
			t.Error("joined row has no image data")
		}

		if !writer.closed {
			t.Error("the session was not closed")
		}

		// the profile had no database; the provisioned names fill in.
		if params.Database != "PCB_CV" || params.Warehouse != "PCB_CV_WH" {
			t.Errorf("wrong session params: %+v", params)
		}
		if params.Account != "acct" || params.User != "alice" {
			t.Errorf("wrong session params: %+v", params)
		}
	})

	t.Run("an empty dataset is an error", func(t *testing.T) {
		writer := &mockWriter{}
		_, err := run(t, writer, upload.Flag{
			DataDir:      t.TempDir(),
			BatchSize:    500,
			TestFraction: 0.1,
			Seed:         42,
		})
		if err == nil {
			t.Error("expected an error")
		}
		if len(writer.calls) != 0 {
			t.Error("tables were written from an empty dataset")
		}
	})

	t.Run("an out-of-range test fraction is a usage error", func(t *testing.T) {
		writer := &mockWriter{}
		_, err := run(t, writer, upload.Flag{
			DataDir:      fixtureDataset(t, 2),
			BatchSize:    500,
			TestFraction: 1.5,
			Seed:         42,
		})
		if err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("a connection-only profile is rejected", func(t *testing.T) {
		opener := func(params session.Params, opt ...session.Option) (session.Writer, error) {
			t.Error("opener should not be called")
			return nil, nil
		}

		testee := upload.Task(opener)
		err := testee(
			context.Background(), logger.Null(), *env.New(),
			profiles.Profile{Connection: "demo"}, mock.New(t),
			commandline.MockCommandline[upload.Flag]{
				Fullname_: "pcbcv dataset upload",
				Stdout_:   new(strings.Builder),
				Stderr_:   new(strings.Builder),
				Flags_: upload.Flag{
					DataDir:      fixtureDataset(t, 2),
					BatchSize:    500,
					TestFraction: 0.1,
					Seed:         42,
				},
			},
			[]any{},
		)
		if !errors.Is(err, profiles.ErrProfileInvalid) {
			t.Errorf("wrong error: %v", err)
		}
	})

	t.Run("write failures are passed through", func(t *testing.T) {
		expectedErr := errors.New("fake error")
		writer := &mockWriter{err: expectedErr}

		_, err := run(t, writer, upload.Flag{
			DataDir:      fixtureDataset(t, 2),
			BatchSize:    500,
			TestFraction: 0.1,
			Seed:         42,
		})
		if !errors.Is(err, expectedErr) {
			t.Errorf("wrong error: %v", err)
		}
	})
}
