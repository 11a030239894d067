package docstore

import (
	"os"
	"testing"
)

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{"valid", "mongodb://localhost:27017", false},
		{"replica set", "mongodb://a:27017,b:27017/?replicaSet=rs0", false},
		{"empty", "", true},
		{"wrong scheme", "postgres://localhost:5432", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ClientOptions(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Errorf("ClientOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpen_RequiresDatabase(t *testing.T) {
	if _, err := Open(t.Context(), "mongodb://localhost:27017", ""); err == nil {
		t.Fatal("Open() should reject an empty database name")
	}
}

func TestOpen_Integration(t *testing.T) {
	uri := os.Getenv("LEARN_TEST_MONGO_URI")
	if testing.Short() || uri == "" {
		t.Skip("set LEARN_TEST_MONGO_URI to run against MongoDB")
	}

	ds, err := Open(t.Context(), uri, "docstore_test")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer ds.Close(t.Context())

	if err := ds.HealthCheck(t.Context()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if ds.DB.Name() != "docstore_test" {
		t.Errorf("DB.Name() = %q", ds.DB.Name())
	}
}
