package certrepo

import (
	"context"
	"testing"

	"github.com/nordiqpay/qcert-pki/pkg/certrepo"
)

func TestFileStore_AddGetRevoke(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir)
	if err := store.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	ctx := context.Background()
	rec := certrepo.Record{KeyID: "abc123", Subject: "CN=example.psp.eu", SerialNumber: "01"}

	if _, err := store.Add(ctx, rec); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := store.Add(ctx, rec); err == nil {
		t.Error("expected duplicate key-id error on second Add")
	}

	got, err := store.GetByID(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Subject != rec.Subject {
		t.Errorf("Subject = %q, want %q", got.Subject, rec.Subject)
	}

	if err := store.Revoke(ctx, "abc123"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := store.Revoke(ctx, "abc123"); err != nil {
		t.Fatalf("second Revoke should be idempotent, got: %v", err)
	}

	if _, err := store.GetByID(ctx, "abc123"); err == nil {
		t.Error("expected GetByID to hide revoked certificate")
	}

	revoked := true
	list, err := store.List(ctx, certrepo.ListFilter{Revoked: &revoked})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one revoked record, got %d", len(list))
	}
}

func TestFileStore_ReopenPersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := NewFileStore(dir)
	if err := first.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := first.Add(ctx, certrepo.Record{KeyID: "k1", SerialNumber: "02"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	second := NewFileStore(dir)
	rec, err := second.GetByID(ctx, "k1")
	if err != nil {
		t.Fatalf("GetByID on reopened store: %v", err)
	}
	if rec.SerialNumber != "02" {
		t.Errorf("SerialNumber = %q, want 02", rec.SerialNumber)
	}
}
