package clickhouse

import (
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
)

func TestBuildOptions(t *testing.T) {
	cfg := defaultConfig()
	for _, opt := range []ClientOption{
		WithHost("db.local"),
		WithPort(8123),
		WithDatabase("luther"),
		WithCredentials("reader", "secret"),
		WithHTTP(true),
		WithMaxExecutionTime(30 * time.Second),
	} {
		opt(cfg)
	}
	o := buildOptions(cfg)
	if len(o.Addr) != 1 || o.Addr[0] != "db.local:8123" {
		t.Fatalf("addr=%v", o.Addr)
	}
	if o.Protocol != ch.HTTP {
		t.Fatalf("protocol=%v", o.Protocol)
	}
	if o.Auth.Database != "luther" || o.Auth.Username != "reader" || o.Auth.Password != "secret" {
		t.Fatalf("auth=%+v", o.Auth)
	}
	if o.Settings["max_execution_time"] != 30 {
		t.Fatalf("settings=%v", o.Settings)
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Fatalf("expected error without host")
	}
}
