package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to local test database port 55432", func(t *testing.T) {
		for _, k := range []string{"TEST_DB_HOST", "TEST_DB_PORT", "TEST_DB_USER", "TEST_DB_PASSWORD", "TEST_DB_NAME"} {
			t.Setenv(k, "")
		}

		cfg := DefaultTestDBConfig()
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, "55432", cfg.Port)
		assert.Equal(t, "enrichment", cfg.User)
		assert.Equal(t, "enrichment", cfg.Password)
		assert.Equal(t, "enrichment", cfg.DBName)
	})

	t.Run("respects TEST_DB_PORT environment variable", func(t *testing.T) {
		t.Setenv("TEST_DB_HOST", "postgres")
		t.Setenv("TEST_DB_PORT", "5432")

		cfg := DefaultTestDBConfig()
		assert.Equal(t, "postgres", cfg.Host)
		assert.Equal(t, "5432", cfg.Port)
	})
}

func TestTestDBConfig_DSN(t *testing.T) {
	cfg := TestDBConfig{Host: "db", Port: "5432", User: "u", Password: "p@ss", DBName: "enrichment", SSLMode: "disable"}

	assert.Equal(t, "postgres://u:p%40ss@db:5432/enrichment?sslmode=disable", cfg.DSN(""))
	assert.Equal(t,
		"postgres://u:p%40ss@db:5432/enrichment?search_path=t_abc%2Cpublic&sslmode=disable",
		cfg.DSN("t_abc"))
}

func TestEnqueueRequestBuilder(t *testing.T) {
	req := NewEnqueueRequest("m-1").
		WithBatch("a", "b").
		WithPriority(10).
		Build()

	assert.Equal(t, TestOrgID, req.OrganizationID)
	assert.Equal(t, 10, req.Priority)
	assert.JSONEq(t, `{"entity_ids":["a","b"]}`, string(req.Payload))
}
