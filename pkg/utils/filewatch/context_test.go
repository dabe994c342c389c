package filewatch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/probeworks/pcbcv/pkg/utils/filewatch"
)

func TestUntilModifyContext(t *testing.T) {
	t.Run("writing a watched file cancels the context", func(t *testing.T) {
		dir := t.TempDir()
		target := filepath.Join(dir, "watched")
		if err := os.WriteFile(target, []byte("before"), 0644); err != nil {
			t.Fatal(err)
		}

		ctx, cancel, err := filewatch.UntilModifyContext(context.Background(), target)
		if err != nil {
			t.Fatal(err)
		}
		defer cancel()

		if err := os.WriteFile(target, []byte("after"), 0644); err != nil {
			t.Fatal(err)
		}

		select {
		case <-ctx.Done():
			// ok
		case <-time.After(5 * time.Second):
			t.Fatal("context was not canceled by the write")
		}
	})

	t.Run("creating a file in a watched directory cancels the context", func(t *testing.T) {
		dir := t.TempDir()

		ctx, cancel, err := filewatch.UntilModifyContext(context.Background(), dir)
		if err != nil {
			t.Fatal(err)
		}
		defer cancel()

		if err := os.WriteFile(filepath.Join(dir, "new"), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}

		select {
		case <-ctx.Done():
			// ok
		case <-time.After(5 * time.Second):
			t.Fatal("context was not canceled by the new file")
		}
	})

	t.Run("a missing target is an error", func(t *testing.T) {
		_, _, err := filewatch.UntilModifyContext(
			context.Background(), filepath.Join(t.TempDir(), "no-such-path"),
		)
		if err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("the parent context cancels through", func(t *testing.T) {
		parent, cancelParent := context.WithCancel(context.Background())

		ctx, cancel, err := filewatch.UntilModifyContext(parent, t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		defer cancel()

		cancelParent()

		select {
		case <-ctx.Done():
			// ok
		case <-time.After(5 * time.Second):
			t.Fatal("context did not follow its parent")
		}
	})
}
