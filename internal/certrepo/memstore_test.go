package certrepo

import (
	"context"
	"testing"

	"github.com/nordiqpay/qcert-pki/pkg/certrepo"
)

func TestMemStore_AddDuplicateKeyID(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	rec := certrepo.Record{KeyID: "abc", Subject: "CN=test"}
	if _, err := store.Add(ctx, rec); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := store.Add(ctx, rec); err == nil {
		t.Error("expected duplicate key-id error")
	}
}

func TestMemStore_RevokeIdempotent(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	rec := certrepo.Record{KeyID: "abc", Subject: "CN=test"}
	if _, err := store.Add(ctx, rec); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := store.Revoke(ctx, "abc"); err != nil {
		t.Fatalf("first Revoke: %v", err)
	}
	if err := store.Revoke(ctx, "abc"); err != nil {
		t.Fatalf("second Revoke should be a no-op, got: %v", err)
	}

	if _, err := store.GetByID(ctx, "abc"); err == nil {
		t.Error("expected GetByID to hide a revoked certificate")
	}

	list, err := store.RevocationList(ctx, nil)
	if err != nil {
		t.Fatalf("RevocationList: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected exactly one revoked entry, got %d", len(list))
	}
}

func TestMemStore_RevokeUnknown(t *testing.T) {
	store := NewMemStore()
	if err := store.Revoke(context.Background(), "nope"); err == nil {
		t.Error("expected not-found error revoking an unknown key-id")
	}
}

func TestMemStore_NextCRLNumberMonotonic(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	a, err := store.NextCRLNumber(ctx)
	if err != nil {
		t.Fatalf("NextCRLNumber: %v", err)
	}
	b, err := store.NextCRLNumber(ctx)
	if err != nil {
		t.Fatalf("NextCRLNumber: %v", err)
	}
	if b != a+1 {
		t.Errorf("expected monotonically increasing CRL numbers, got %d then %d", a, b)
	}
}
