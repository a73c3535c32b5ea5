package db

import (
	"context"
	"errors"
	"testing"

	"Chronicle/internal/shared/serverconfig"
)

func TestDSN(t *testing.T) {
	got := DSN(serverconfig.MySQLConfig{Host: "10.0.0.5", Port: 3307, User: "chronicle", Password: "pw", DBName: "sessions"})
	want := "chronicle:pw@tcp(10.0.0.5:3307)/sessions?charset=utf8mb4&parseTime=True&loc=UTC"
	if got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}

func TestDSNDefaultsHostAndPort(t *testing.T) {
	got := DSN(serverconfig.MySQLConfig{User: "u", DBName: "d"})
	want := "u:@tcp(127.0.0.1:3306)/d?charset=utf8mb4&parseTime=True&loc=UTC"
	if got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
}

func TestOpenRequiresDatabase(t *testing.T) {
	if _, _, err := Open(context.Background(), serverconfig.MySQLConfig{}, nil); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("expected ErrNoDatabase, got %v", err)
	}
}
