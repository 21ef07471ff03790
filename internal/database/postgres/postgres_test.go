//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/signature"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testDim = 16

func setupTestContainer(t *testing.T) (*Store, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	store, err := Open(ctx, cfg, testDim)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open store: %v", err)
	}

	// Opening twice must be harmless.
	again, err := Open(ctx, cfg, testDim)
	if err != nil {
		store.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to reopen store: %v", err)
	}
	again.Close()

	cleanup := func() {
		store.Close()
		container.Terminate(ctx)
	}

	return store, cleanup
}

func testSignature(seed float64) signature.Signature {
	sig := make(signature.Signature, testDim)
	for i := range sig {
		sig[i] = seed + float64(i)/100
	}
	return sig
}

func TestIdentityStore(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	if store == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	t.Run("EmptyLoad", func(t *testing.T) {
		records, err := store.LoadAll(ctx)
		if err != nil {
			t.Fatalf("LoadAll failed: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("Expected no records, got %d", len(records))
		}
	})

	t.Run("InsertAndLoad", func(t *testing.T) {
		sig := testSignature(0.123456789)
		id, err := store.Insert(ctx, "Alice", sig)
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}

		records, err := store.LoadAll(ctx)
		if err != nil {
			t.Fatalf("LoadAll failed: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("Expected 1 record, got %d", len(records))
		}
		if records[0].ID != id || records[0].Name != "Alice" {
			t.Errorf("Unexpected record %+v", records[0])
		}
		for i := range sig {
			if records[0].Signature[i] != sig[i] {
				t.Fatalf("Signature element %d changed: %v vs %v", i, records[0].Signature[i], sig[i])
			}
		}
	})

	t.Run("Validation", func(t *testing.T) {
		if _, err := store.Insert(ctx, " ", testSignature(1)); !errors.Is(err, database.ErrEmptyName) {
			t.Errorf("Expected ErrEmptyName, got %v", err)
		}
		if _, err := store.Insert(ctx, "Bob", make(signature.Signature, 3)); !errors.Is(err, signature.ErrMalformedSignature) {
			t.Errorf("Expected ErrMalformedSignature, got %v", err)
		}
	})

	t.Run("ListNames", func(t *testing.T) {
		if _, err := store.Insert(ctx, "Alice", testSignature(2)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		names, err := store.ListNames(ctx)
		if err != nil {
			t.Fatalf("ListNames failed: %v", err)
		}
		if len(names) != 1 || names[0].Name != "Alice" || names[0].Count != 2 {
			t.Errorf("Unexpected names %+v", names)
		}

		count, err := store.Count(ctx)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected 2, got %d", count)
		}
	})
}
