package postgres

import (
	"os"
	"testing"
	"time"

	"github.com/resonatehq/resmon/internal/app/subsystems/aio/store/test"
)

func TestPostgresStore(t *testing.T) {
	host := os.Getenv("TEST_STORE_POSTGRES_HOST")
	port := os.Getenv("TEST_STORE_POSTGRES_PORT")
	username := os.Getenv("TEST_STORE_POSTGRES_USERNAME")
	password := os.Getenv("TEST_STORE_POSTGRES_PASSWORD")
	database := os.Getenv("TEST_STORE_POSTGRES_DATABASE")

	if host == "" {
		t.Skip("Postgres is not configured, skipping")
	}

	for _, tc := range test.TestCases {
		store, err := New(&Config{
			Host:         host,
			Port:         port,
			Username:     username,
			Password:     password,
			Database:     database,
			Query:        map[string]string{"sslmode": "disable"},
			MaxOpenConns: 1,
			TxTimeout:    250 * time.Millisecond,
		})
		if err != nil {
			t.Fatal(err)
		}

		if err := store.Start(nil); err != nil {
			t.Fatal(err)
		}

		tc.Run(t, store)

		if err := store.Reset(); err != nil {
			t.Fatal(err)
		}

		if err := store.Stop(); err != nil {
			t.Fatal(err)
		}
	}
}
