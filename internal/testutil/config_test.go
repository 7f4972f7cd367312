package testutil

import "testing"

func TestDefaultTestDBConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want TestDBConfig
	}{
		{
			name: "local compose database",
			env:  map[string]string{},
			want: TestDBConfig{Host: "localhost", Port: "55432", User: "catalog", Password: "catalog", DBName: "catalog"},
		},
		{
			name: "ci overrides",
			env: map[string]string{
				"TEST_DB_HOST": "postgres",
				"TEST_DB_PORT": "5432",
				"TEST_DB_NAME": "catalog_ci",
			},
			want: TestDBConfig{Host: "postgres", Port: "5432", User: "catalog", Password: "catalog", DBName: "catalog_ci"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
				t.Setenv(key, tt.env[key])
			}
			if got := DefaultTestDBConfig(); got != tt.want {
				t.Fatalf("DefaultTestDBConfig() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDSNEscapesHost(t *testing.T) {
	t.Setenv("DB_SSL_MODE", "")
	cfg := TestDBConfig{Host: "::1", Port: "5432", User: "u", Password: "p", DBName: "d"}
	want := "postgres://u:p@[::1]:5432/d?sslmode=disable"
	if got := cfg.dsn(); got != want {
		t.Fatalf("dsn() = %q, want %q", got, want)
	}
}
