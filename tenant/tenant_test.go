package tenant_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/courier"
	"github.com/xraph/courier/metadata"
	"github.com/xraph/courier/scope"
	"github.com/xraph/courier/tenant"
)

func TestCreationAccessorWriteOnce(t *testing.T) {
	t.Parallel()
	a := tenant.NewCreationAccessor(context.Background())

	if err := a.SetTenantID("100"); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if got := a.TenantID(); got != "100" {
		t.Fatalf("TenantID = %q, want %q", got, "100")
	}

	// Second set is rejected deterministically, even with the same value.
	tests := []struct {
		name  string
		value string
	}{
		{"different value", "200"},
		{"same value", "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := a.SetTenantID(tt.value); !errors.Is(err, courier.ErrTenantAlreadySet) {
				t.Errorf("second set = %v, want ErrTenantAlreadySet", err)
			}
		})
	}

	if got := a.TenantID(); got != "100" {
		t.Errorf("TenantID changed after rejected set: %q", got)
	}
}

func TestCreationAccessorFromContext(t *testing.T) {
	t.Parallel()
	ctx := tenant.WithID(context.Background(), "acme")

	a := tenant.NewCreationAccessor(ctx)
	if got := a.TenantID(); got != "acme" {
		t.Fatalf("TenantID = %q, want %q", got, "acme")
	}

	// Context-derived identity consumes the single write.
	if err := a.SetTenantID("other"); !errors.Is(err, courier.ErrTenantAlreadySet) {
		t.Errorf("set after context capture = %v, want ErrTenantAlreadySet", err)
	}
}

func TestExecutionAccessorImmutable(t *testing.T) {
	t.Parallel()
	reg := scope.NewRegistry()
	tenant.RegisterProvider(reg)

	s := reg.Open()
	defer s.Dispose()
	s.Seed(metadata.TenantKey, "100")

	a, err := scope.Resolve[tenant.Accessor](s)
	if err != nil {
		t.Fatalf("resolve accessor: %v", err)
	}
	if got := a.TenantID(); got != "100" {
		t.Fatalf("TenantID = %q, want %q", got, "100")
	}

	if err := a.SetTenantID("999"); !errors.Is(err, courier.ErrTenantImmutable) {
		t.Fatalf("execution-side set = %v, want ErrTenantImmutable", err)
	}
	if got := a.TenantID(); got != "100" {
		t.Errorf("TenantID changed after rejected set: %q", got)
	}
}

func TestExecutionAccessorDefault(t *testing.T) {
	t.Parallel()
	reg := scope.NewRegistry()
	tenant.RegisterProvider(reg)

	// No metadata was written at submission: the derived value is the
	// documented default (empty string), not an error.
	s := reg.Open()
	defer s.Dispose()

	a, err := scope.Resolve[tenant.Accessor](s)
	if err != nil {
		t.Fatalf("resolve accessor: %v", err)
	}
	if got := a.TenantID(); got != "" {
		t.Errorf("TenantID = %q, want empty default", got)
	}
}

func TestCurrent(t *testing.T) {
	t.Parallel()
	reg := scope.NewRegistry()
	tenant.RegisterProvider(reg)

	s := reg.Open()
	defer s.Dispose()
	s.Seed(metadata.TenantKey, "100")
	ctx := scope.WithScope(context.Background(), s)

	a, ok := tenant.Current(ctx)
	if !ok {
		t.Fatal("Current found no accessor inside a scoped context")
	}
	if got := a.TenantID(); got != "100" {
		t.Errorf("TenantID = %q, want %q", got, "100")
	}

	if _, ok := tenant.Current(context.Background()); ok {
		t.Error("Current reported an accessor outside any scope")
	}
}

func TestIDFromContext(t *testing.T) {
	t.Parallel()
	if _, ok := tenant.IDFromContext(context.Background()); ok {
		t.Error("empty context reported a tenant")
	}

	ctx := tenant.WithID(context.Background(), "")
	if _, ok := tenant.IDFromContext(ctx); ok {
		t.Error("empty tenant id treated as present")
	}
}
