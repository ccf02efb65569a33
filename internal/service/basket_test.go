package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"onlinestore/internal/service"
	"onlinestore/internal/testutil"
)

func TestAddOrMergeCreatesThenMerges(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewMemoryRepository()
	product := repo.AddProduct("Widget", "100.00")
	svc := service.NewBasketService(repo)

	line, created, err := svc.AddOrMerge(ctx, "u1", product.ID, 2)
	if err != nil {
		t.Fatalf("first add: %v", err)
	}
	if !created || line.Quantity != 2 {
		t.Fatalf("first add = (qty %d, created %v), want (2, true)", line.Quantity, created)
	}

	again, created, err := svc.AddOrMerge(ctx, "u1", product.ID, 3)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if created {
		t.Error("second add reported a new line")
	}
	if again.ID != line.ID || again.Quantity != 5 {
		t.Errorf("second add = (%s, qty %d), want (%s, 5)", again.ID, again.Quantity, line.ID)
	}

	lines, err := svc.ListFor(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("basket has %d lines, want 1", len(lines))
	}
	if got := lines[0].Product.Name; got != "Widget" {
		t.Errorf("product name = %q, want Widget", got)
	}
}

func TestAddOrMergeConcurrentAddsSum(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewMemoryRepository()
	product := repo.AddProduct("Widget", "1.00")
	svc := service.NewBasketService(repo)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := svc.AddOrMerge(ctx, "u1", product.ID, 1); err != nil {
				t.Errorf("add: %v", err)
			}
		}()
	}
	wg.Wait()

	lines, err := svc.ListFor(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != workers {
		t.Fatalf("basket = %+v, want one line with quantity %d", lines, workers)
	}
}

func TestAddOrMergeValidation(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewMemoryRepository()
	product := repo.AddProduct("Widget", "1.00")
	svc := service.NewBasketService(repo)

	tests := []struct {
		name      string
		productID string
		quantity  int
		want      error
	}{
		{"missing product id", "", 1, service.ErrValidation},
		{"zero quantity", product.ID, 0, service.ErrValidation},
		{"negative quantity", product.ID, -1, service.ErrValidation},
		{"unknown product", "b6a1d6a4-0000-0000-0000-000000000000", 1, service.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.AddOrMerge(ctx, "u1", tt.productID, tt.quantity)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if lines, _ := svc.ListFor(ctx, "u1"); len(lines) != 0 {
		t.Errorf("rejected adds left %d lines", len(lines))
	}
}

func TestSetQuantity(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewMemoryRepository()
	product := repo.AddProduct("Widget", "1.00")
	svc := service.NewBasketService(repo)

	line, _, err := svc.AddOrMerge(ctx, "u1", product.ID, 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	updated, err := svc.SetQuantity(ctx, "u1", line.ID, 7)
	if err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if updated.Quantity != 7 {
		t.Errorf("quantity = %d, want 7", updated.Quantity)
	}

	if _, err := svc.SetQuantity(ctx, "u2", line.ID, 3); !errors.Is(err, service.ErrNotFound) {
		t.Errorf("foreign line: err = %v, want ErrNotFound", err)
	}

	removed, err := svc.SetQuantity(ctx, "u1", line.ID, 0)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed != nil {
		t.Errorf("remove returned line %+v", removed)
	}
	if lines, _ := svc.ListFor(ctx, "u1"); len(lines) != 0 {
		t.Errorf("basket has %d lines after removal", len(lines))
	}

	if _, err := svc.SetQuantity(ctx, "u1", line.ID, -1); err != nil {
		t.Errorf("removing an absent line: %v", err)
	}
}

func TestListForEmptyBasketIsNotNil(t *testing.T) {
	svc := service.NewBasketService(testutil.NewMemoryRepository())

	lines, err := svc.ListFor(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if lines == nil {
		t.Fatal("list returned nil slice")
	}
}

func TestClearForKeepsLinesAddedAfterSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := testutil.NewMemoryRepository()
	a := repo.AddProduct("A", "1.00")
	b := repo.AddProduct("B", "2.00")
	svc := service.NewBasketService(repo)

	if _, _, err := svc.AddOrMerge(ctx, "u1", a.ID, 1); err != nil {
		t.Fatalf("add a: %v", err)
	}
	snapshot, err := svc.ListFor(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, _, err := svc.AddOrMerge(ctx, "u1", b.ID, 1); err != nil {
		t.Fatalf("add b: %v", err)
	}

	if err := svc.ClearFor(ctx, "u1", snapshot); err != nil {
		t.Fatalf("clear: %v", err)
	}

	lines, _ := svc.ListFor(ctx, "u1")
	if len(lines) != 1 || lines[0].ProductID != b.ID {
		t.Fatalf("basket after clear = %+v, want only product B", lines)
	}
}
