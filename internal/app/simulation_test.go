package app

import (
	"context"
	"encoding/csv"
	"net"
	"os"
	"path/filepath"
	"testing"

	"crypto_swarm/internal/domain"
	"crypto_swarm/internal/infra"
)

const orders = `OrderHash,Block,Action,Price,Quantity,OrderType,SubaccountID
0x01,1,EVENT_NEW,100,1,BUY,alice
0x02,1,EVENT_NEW,101,2,SELL,bob
0x03,2,EVENT_NEW,99,1,BUY,alice
0x04,2,EVENT_NEW,98,3,SELL,carol
0x05,3,EVENT_NEW,97,1,BUY,bob
0x06,3,EVENT_NEW,96,1,BUY,carol
0x07,4,EVENT_NEW,95,2,SELL,dave
`

func setup(t *testing.T, extra string) (*Bootstrap, string) {
	t.Helper()
	dir := t.TempDir()
	ordersPath := filepath.Join(dir, "orders.csv")
	if err := os.WriteFile(ordersPath, []byte(orders), 0644); err != nil {
		t.Fatal(err)
	}

	yaml := "simulation:\n  seed: 7\n  ticks: 5\n" + extra +
		"input:\n  orders_csv: " + ordersPath + "\n" +
		"output:\n" +
		"  order_book_csv: " + filepath.Join(dir, "out", "order_book.csv") + "\n" +
		"  sqlite_path: " + filepath.Join(dir, "sim.db") + "\n" +
		"  heatmap_path: " + filepath.Join(dir, "out", "heatmap.png") + "\n" +
		"  dump_path: " + filepath.Join(dir, "dump.json") + "\n" +
		"logging:\n  level: error\n  dir: " + filepath.Join(dir, "logs") + "\n"
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	b := &Bootstrap{Metrics: &infra.Metrics{}}
	if err := b.Initialize(cfgPath); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b, dir
}

func TestSimulate(t *testing.T) {
	b, dir := setup(t, "")

	summary, err := b.Simulate(context.Background())
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if summary.Accounts != 4 || summary.Ticks != 5 {
		t.Errorf("Expected 4 accounts over 5 ticks, got %+v", summary)
	}
	if summary.Active+summary.Liquidated != 4 {
		t.Errorf("Expected 4 agents accounted for, got %+v", summary)
	}

	f, err := os.Open(filepath.Join(dir, "out", "order_book.csv"))
	if err != nil {
		t.Fatalf("Order book missing: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Order book unreadable: %v", err)
	}
	if len(rows)-1 != summary.Records {
		t.Errorf("Expected %d records in file, got %d", summary.Records, len(rows)-1)
	}
	for _, row := range rows[1:] {
		if row[2] != domain.ActionNew || (row[5] != "BUY" && row[5] != "SELL") {
			t.Errorf("Unexpected record %v", row)
		}
	}

	if _, err := os.Stat(filepath.Join(dir, "out", "heatmap.png")); err != nil {
		t.Errorf("Heatmap missing: %v", err)
	}

	run, err := b.Storage.GetRun(summary.RunID)
	if err != nil || run == nil {
		t.Fatalf("Run not stored: %v", err)
	}
	if run.Ticks != 5 || run.Agents != 4 || run.Seed != 7 {
		t.Errorf("Unexpected run header %+v", run)
	}
	states, err := b.Storage.TickStates(summary.RunID, 4)
	if err != nil || len(states) != 4 {
		t.Errorf("Expected 4 stored states at tick 4, got %d (%v)", len(states), err)
	}
	if got := b.Metrics.Snapshot().RecordsWritten; got != uint64(summary.Records) {
		t.Errorf("Expected %d records in metrics, got %d", summary.Records, got)
	}
}

func TestSimulate_Deterministic(t *testing.T) {
	read := func() string {
		b, dir := setup(t, "")
		if _, err := b.Simulate(context.Background()); err != nil {
			t.Fatalf("Simulate failed: %v", err)
		}
		data, err := os.ReadFile(filepath.Join(dir, "out", "order_book.csv"))
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}
	if read() != read() {
		t.Error("Expected identical order books for the same seed")
	}
}

func TestSimulate_WeightedProfiles(t *testing.T) {
	b, _ := setup(t, "  profile_weights:\n    degen: 1\n")

	model, err := b.newModel(nil)
	if err == nil || model != nil {
		t.Fatal("Expected error for nil topology")
	}
	if _, err := b.Simulate(context.Background()); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
}

func TestSimulate_NumAgentsMismatch(t *testing.T) {
	b, _ := setup(t, "  num_agents: 9\n")

	_, err := b.Simulate(context.Background())
	if err == nil {
		t.Fatal("Expected topology mismatch error")
	}
}

func TestSimulate_NotInitialized(t *testing.T) {
	if _, err := NewBootstrap().Simulate(context.Background()); err == nil {
		t.Error("Expected error before Initialize")
	}
}

func TestConfigPath(t *testing.T) {
	t.Setenv("CRYPTO_SWARM_CONFIG", "")
	if ConfigPath() != DefaultConfigPath {
		t.Errorf("Expected default path, got %s", ConfigPath())
	}
	t.Setenv("CRYPTO_SWARM_CONFIG", "/tmp/x.yaml")
	if ConfigPath() != "/tmp/x.yaml" {
		t.Errorf("Expected env path, got %s", ConfigPath())
	}
}

type memorySource []domain.OrderEvent

func (m memorySource) Load(context.Context) ([]domain.OrderEvent, error) {
	return m, nil
}

func TestSimulate_InjectedSource(t *testing.T) {
	b, _ := setup(t, "")
	b.Source = memorySource{
		{Block: 1, Action: domain.ActionNew, SubaccountID: "x"},
		{Block: 1, Action: domain.ActionNew, SubaccountID: "y"},
	}

	summary, err := b.Simulate(context.Background())
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if summary.Accounts != 2 {
		t.Errorf("Expected 2 accounts from the injected source, got %d", summary.Accounts)
	}
}

func TestSimulate_NilMetrics(t *testing.T) {
	b, _ := setup(t, "")
	b.Metrics = nil

	if _, err := b.Simulate(context.Background()); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if b.Metrics != infra.GlobalMetrics {
		t.Error("Expected nil metrics to fall back to GlobalMetrics")
	}
}

func TestSimulate_Stream(t *testing.T) {
	b, _ := setup(t, "")
	b.Config.Stream.Enabled = true
	b.Config.Stream.Addr = "127.0.0.1:0"

	summary, err := b.Simulate(context.Background())
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if summary.Ticks != 5 {
		t.Errorf("Expected 5 ticks, got %d", summary.Ticks)
	}
}

func TestSimulate_StreamBindError(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer taken.Close()

	b, dir := setup(t, "")
	b.Config.Stream.Enabled = true
	b.Config.Stream.Addr = taken.Addr().String()

	if _, err := b.Simulate(context.Background()); err == nil {
		t.Fatal("Expected bind error")
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "order_book.csv")); !os.IsNotExist(err) {
		t.Errorf("Expected no order book after a failed bind, got %v", err)
	}
}
