package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/academic-records-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5433, User: "records", Password: "secret", Name: "academic"})
	assert.Equal(t, "host=db port=5433 user=records password=secret dbname=academic sslmode=disable connect_timeout=5", dsn)

	dsn = DSN(config.DatabaseConfig{Host: "db", Port: 5432, SSLMode: "require"})
	assert.Contains(t, dsn, "sslmode=require")
}
