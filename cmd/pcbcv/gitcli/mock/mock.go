package mock

import (
	"context"
	"testing"

	"github.com/probeworks/pcbcv/cmd/pcbcv/gitcli"
)

func New(t *testing.T) *mockCloner {
	return &mockCloner{t: t}
}

type mockCloner struct {
	t    *testing.T
	Impl struct {
		Version        func(ctx context.Context) (string, error)
		SparseCheckout func(ctx context.Context, sc gitcli.SparseCheckout) error
	}
}

var _ gitcli.Cloner = &mockCloner{}

func (m *mockCloner) Version(ctx context.Context) (string, error) {
	if m.Impl.Version == nil {
		m.t.Fatal("mock gitcli: Version should not be called")
	}
	return m.Impl.Version(ctx)
}

func (m *mockCloner) SparseCheckout(ctx context.Context, sc gitcli.SparseCheckout) error {
	if m.Impl.SparseCheckout == nil {
		m.t.Fatal("mock gitcli: SparseCheckout should not be called")
	}
	return m.Impl.SparseCheckout(ctx, sc)
}
