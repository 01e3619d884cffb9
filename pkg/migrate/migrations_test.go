package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/tinytales/storefront-backend/pkg/migrate"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := migrate.Validate(migrate.Migrations()); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
	entries, err := fs.ReadDir(migrate.Migrations(), ".")
	if err != nil {
		t.Fatalf("read embedded: %v", err)
	}
	onDisk, _ := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if len(entries) != len(onDisk) {
		t.Fatalf("embedded %d migrations, directory has %d", len(entries), len(onDisk))
	}
}

func TestValidateRejectsBrokenFiles(t *testing.T) {
	upDown := &fstest.MapFile{Data: []byte("-- +goose Up\n-- +goose Down\n")}
	cases := map[string]fstest.MapFS{
		"bad name":     {"1_init.sql": upDown},
		"missing down": {"20260301090000_init.sql": {Data: []byte("-- +goose Up\nSELECT 1;\n")}},
		"unbalanced":   {"20260301090000_init.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\n-- +goose Down\n")}},
		"duplicate":    {"20260301090000_a.sql": upDown, "20260301090000_b.sql": upDown},
	}
	for name, fsys := range cases {
		if err := migrate.Validate(fsys); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestMigrationsCarryStorageGuards(t *testing.T) {
	cases := map[string][]string{
		"*_create_catalog.sql": {
			"CONSTRAINT product_variants_sku_key UNIQUE (sku)",
			"CHECK (stock_count >= 0)",
			"low_stock_threshold integer NOT NULL DEFAULT 5",
		},
		"*_create_orders.sql": {
			"CHECK (quantity >= 1)",
			"'OUT_FOR_DELIVERY'",
			"user_id uuid,",
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_payment_reference",
			"WHERE payment_reference IS NOT NULL",
		},
		"*_create_invoices.sql": {
			"CONSTRAINT invoices_invoice_number_key UNIQUE (invoice_number)",
			"CONSTRAINT invoices_order_id_key UNIQUE (order_id)",
		},
	}

	for pattern, checks := range cases {
		matches, err := filepath.Glob(filepath.Join("migrations", pattern))
		if err != nil {
			t.Fatalf("glob %s: %v", pattern, err)
		}
		if len(matches) != 1 {
			t.Fatalf("expected one migration for %s, got %d", pattern, len(matches))
		}
		data, err := os.ReadFile(matches[0])
		if err != nil {
			t.Fatalf("read %s: %v", matches[0], err)
		}
		content := string(data)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s missing %q", matches[0], sub)
			}
		}
	}
}

func TestCreateWritesValidSkeleton(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

	path, err := migrate.Create(dir, "Add Invoice Index!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if filepath.Base(path) != "20260302103000_add_invoice_index.sql" {
		t.Fatalf("unexpected path %s", path)
	}
	if err := migrate.Validate(os.DirFS(dir)); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
	if _, err := migrate.Create(dir, "add invoice index", now); err == nil {
		t.Fatalf("expected second create with the same version to fail")
	}
	if _, err := migrate.Create(dir, "!!!", now); err == nil {
		t.Fatalf("expected empty slug to fail")
	}
}
