package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStockUnitMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_stock_units.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS stock_units",
		"CHECK (physical_qty >= 0)",
		"CHECK (ec_qty >= 0)",
		"FOREIGN KEY (store_id) REFERENCES stores(id) ON DELETE CASCADE",
		"FOREIGN KEY (item_id) REFERENCES catalog_items(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS stock_units",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCostLotMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_cost_lots.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS cost_lots",
		"CHECK (count > 0)",
		"FOREIGN KEY (stock_unit_id) REFERENCES stock_units(id) ON DELETE CASCADE",
		"FOREIGN KEY (parent_lot_id) REFERENCES cost_lots(id) ON DELETE CASCADE",
		"idx_cost_lots_resource",
		"DROP TABLE IF EXISTS cost_lots",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationHasPartialUnpublishedIndex(t *testing.T) {
	content := readMigration(t, "*_create_outbox_channel_stock_records.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS outbox_channel_stock_records",
		"WHERE published_at IS NULL",
		"attempt_count integer NOT NULL DEFAULT 0",
		"DROP TABLE IF EXISTS outbox_channel_stock_records",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestEnumMigrationCoversEveryReason(t *testing.T) {
	content := readMigration(t, "*_create_ledger_enums.sql")

	reasons := []string{
		"'stocking'", "'stocking_rollback'", "'transaction_sell'",
		"'transaction_sell_return'", "'transaction_buy'", "'transaction_buy_return'",
		"'bundle'", "'bundle_release'", "'original_pack'", "'original_pack_release'",
		"'pack_opening'", "'pack_opening_rollback'", "'box_opening'", "'box_create'",
		"'carton_opening'", "'carton_create'", "'loss'", "'loss_rollback'",
		"'store_shipment'", "'store_shipment_rollback'", "'ec_sell'",
		"'ec_sell_return'", "'transfer'", "'adjustment'",
		"'consignment_create'", "'consignment_return'",
	}

	for _, sub := range reasons {
		if !strings.Contains(content, sub) {
			t.Errorf("stock_reason enum missing %s", sub)
		}
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %q found", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
