package mongo

import (
	"context"
	"errors"
	"testing"

	"Chronicle/internal/shared/serverconfig"
)

func TestOpenValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := Open(ctx, serverconfig.MongoDBConfig{Database: "chronicle"}, nil); !errors.Is(err, ErrNoURI) {
		t.Fatalf("expected ErrNoURI, got %v", err)
	}
	if _, err := Open(ctx, serverconfig.MongoDBConfig{URI: "mongodb://127.0.0.1:27017"}, nil); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("expected ErrNoDatabase, got %v", err)
	}
}

func TestOptionsDefaultTimeout(t *testing.T) {
	_, timeout, err := Options(serverconfig.MongoDBConfig{URI: "mongodb://127.0.0.1:27017", Database: "chronicle"})
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if timeout != defaultTimeout {
		t.Fatalf("timeout = %v, want %v", timeout, defaultTimeout)
	}
}
