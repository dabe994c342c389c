package mock

import (
	"context"
	"testing"

	"github.com/probeworks/pcbcv/cmd/pcbcv/snowcli"
)

func New(t *testing.T) *mockClient {
	return &mockClient{t: t}
}

type mockClient struct {
	t    *testing.T
	Impl struct {
		Version   func(ctx context.Context) (string, error)
		SQL       func(ctx context.Context, statements string) error
		SQLFile   func(ctx context.Context, path string) error
		StageCopy func(ctx context.Context, local string, stage string, overwrite bool) error
	}
}

var _ snowcli.Client = &mockClient{}

func (m *mockClient) Version(ctx context.Context) (string, error) {
	if m.Impl.Version == nil {
		m.t.Fatal("mock snowcli: Version should not be called")
	}
	return m.Impl.Version(ctx)
}

func (m *mockClient) SQL(ctx context.Context, statements string) error {
	if m.Impl.SQL == nil {
		m.t.Fatal("mock snowcli: SQL should not be called")
	}
	return m.Impl.SQL(ctx, statements)
}

func (m *mockClient) SQLFile(ctx context.Context, path string) error {
	if m.Impl.SQLFile == nil {
		m.t.Fatal("mock snowcli: SQLFile should not be called")
	}
	return m.Impl.SQLFile(ctx, path)
}

func (m *mockClient) StageCopy(ctx context.Context, local string, stage string, overwrite bool) error {
	if m.Impl.StageCopy == nil {
		m.t.Fatal("mock snowcli: StageCopy should not be called")
	}
	return m.Impl.StageCopy(ctx, local, stage, overwrite)
}
