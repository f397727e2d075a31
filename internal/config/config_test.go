package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "5000" {
		t.Errorf("Server.Port = %q, want 5000", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL != 24*time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 24h", cfg.Auth.TokenTTL)
	}
	if cfg.SITL.Connection != "" {
		t.Errorf("SITL.Connection = %q, want empty", cfg.SITL.Connection)
	}
	if cfg.Database.MaxConnections != 25 {
		t.Errorf("Database.MaxConnections = %d, want 25", cfg.Database.MaxConnections)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8091")
	t.Setenv("SITL_CONNECTION", "udp:0.0.0.0:14550")
	t.Setenv("SITL_OWNER_ID", "3")
	t.Setenv("JWT_SECRET", "supersecret")
	t.Setenv("JWT_TOKEN_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != "8091" {
		t.Errorf("Server.Port = %q, want 8091", cfg.Server.Port)
	}
	if cfg.SITL.Connection != "udp:0.0.0.0:14550" {
		t.Errorf("SITL.Connection = %q", cfg.SITL.Connection)
	}
	if cfg.SITL.OwnerID != 3 {
		t.Errorf("SITL.OwnerID = %d, want 3", cfg.SITL.OwnerID)
	}
	if cfg.Auth.JWTSecret != "supersecret" {
		t.Errorf("Auth.JWTSecret = %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("Auth.TokenTTL = %v, want 1h", cfg.Auth.TokenTTL)
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail for a non-numeric PORT")
	}
}

func TestValidate_EmptySecret(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: "5000"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() should fail for an empty JWT secret")
	}
}

func TestDatabaseConnectionString(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: "5432", Name: "gl", User: "u", Password: "p", SSLMode: "disable",
	}
	want := "host=db port=5432 user=u password=p dbname=gl sslmode=disable"
	if got := d.ConnectionString(); got != want {
		t.Errorf("ConnectionString() = %q, want %q", got, want)
	}

	d.URL = "postgres://u:p@db/gl"
	if got := d.ConnectionString(); got != d.URL {
		t.Errorf("ConnectionString() = %q, want URL passthrough", got)
	}
}

func TestLoadFleet(t *testing.T) {
	path := t.TempDir() + "/fleet.yaml"
	content := []byte(`vehicles:
  - name: alpha
    uin: UIN-001
    owner_id: 1
    connection: udp:0.0.0.0:14550
  - name: bravo
    uin: UIN-002
    owner_id: 2
    connection: udpin:0.0.0.0:14551
    peer_host: 10.0.0.7
    peer_port: 5792
`)
	if err := writeFile(path, content); err != nil {
		t.Fatal(err)
	}

	fleet, err := LoadFleet(path)
	if err != nil {
		t.Fatalf("LoadFleet() failed: %v", err)
	}
	if len(fleet.Vehicles) != 2 {
		t.Fatalf("got %d vehicles, want 2", len(fleet.Vehicles))
	}
	if fleet.Vehicles[1].PeerHost != "10.0.0.7" || fleet.Vehicles[1].PeerPort != 5792 {
		t.Errorf("peer override not parsed: %+v", fleet.Vehicles[1])
	}
}

func TestLoadFleet_MissingFields(t *testing.T) {
	path := t.TempDir() + "/fleet.yaml"
	if err := writeFile(path, []byte("vehicles:\n  - name: broken\n")); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFleet(path); err == nil {
		t.Fatal("LoadFleet() should fail for a vehicle without uin")
	}
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
