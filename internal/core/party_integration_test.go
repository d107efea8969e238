package core_test

import (
	"context"
	"errors"
	"testing"

	"reseller-ledger/internal/core"
)

func TestParty_ClientCRUD(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool)
	ctx := context.Background()

	c, err := svc.parties.CreateClient(ctx, core.PartyInput{Name: " Fatima ", Phone: ptr("0770112233")})
	if err != nil {
		t.Fatalf("CreateClient failed: %v", err)
	}
	if c.Name != "Fatima" {
		t.Errorf("expected trimmed name, got %q", c.Name)
	}

	if _, err := svc.parties.CreateClient(ctx, core.PartyInput{Name: "Fatima"}); !errors.Is(err, core.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
	if _, err := svc.parties.CreateClient(ctx, core.PartyInput{Name: ""}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}

	c, err = svc.parties.UpdateClient(ctx, c.ID, core.PartyInput{Name: "Fatima B.", Address: ptr("Blida")})
	if err != nil {
		t.Fatalf("UpdateClient failed: %v", err)
	}
	if c.Phone != nil || c.Address == nil || *c.Address != "Blida" {
		t.Errorf("update did not replace fields: %+v", c)
	}

	clients, err := svc.parties.ListClients(ctx)
	if err != nil {
		t.Fatalf("ListClients failed: %v", err)
	}
	if len(clients) != 1 {
		t.Errorf("expected 1 client, got %d", len(clients))
	}

	if err := svc.parties.DeleteClient(ctx, c.ID); err != nil {
		t.Fatalf("DeleteClient failed: %v", err)
	}
	if _, err := svc.parties.GetClient(ctx, c.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := svc.parties.DeleteClient(ctx, c.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestParty_SupplierInUseCannotBeDeleted(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool)
	ctx := context.Background()

	sup := createSupplier(t, svc, "Dz Mobile")
	if _, err := svc.parties.CreateSupplier(ctx, core.PartyInput{Name: "Dz Mobile"}); !errors.Is(err, core.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}

	if _, err := svc.inventory.AddSerialBatch(ctx, core.SerialBatchInput{
		Brand: "Tecno", Model: "Spark 10", Serials: []string{"303030"},
		CostPrice: dec("120"), SalePrice: dec("150"), SupplierID: sup.ID,
	}); err != nil {
		t.Fatalf("AddSerialBatch failed: %v", err)
	}

	if err := svc.parties.DeleteSupplier(ctx, sup.ID); !errors.Is(err, core.ErrConstraintViolation) {
		t.Errorf("expected ErrConstraintViolation, got %v", err)
	}

	suppliers, err := svc.parties.ListSuppliers(ctx)
	if err != nil {
		t.Fatalf("ListSuppliers failed: %v", err)
	}
	if len(suppliers) != 1 || suppliers[0].ID != sup.ID {
		t.Errorf("unexpected suppliers: %+v", suppliers)
	}
}

func TestUserService(t *testing.T) {
	pool := setupTestDB(t)
	svc := newServices(pool)
	ctx := context.Background()

	u, err := svc.users.Create(ctx, core.NewUser{Username: "admin", Email: "admin@example.com", PasswordHash: "$2a$10$hash"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if u.Role != "staff" || !u.IsActive {
		t.Errorf("unexpected defaults: role=%s active=%v", u.Role, u.IsActive)
	}

	if _, err := svc.users.Create(ctx, core.NewUser{Username: "admin", Email: "other@example.com", PasswordHash: "x"}); !errors.Is(err, core.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	got, err := svc.users.GetByUsername(ctx, "admin")
	if err != nil {
		t.Fatalf("GetByUsername failed: %v", err)
	}
	if got.ID != u.ID || got.PasswordHash != "$2a$10$hash" {
		t.Errorf("unexpected user: %+v", got)
	}
	if _, err := svc.users.GetByUsername(ctx, "nobody"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.users.GetByID(ctx, u.ID); err != nil {
		t.Errorf("GetByID failed: %v", err)
	}
}
