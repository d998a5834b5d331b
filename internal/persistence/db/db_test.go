package db

import (
	"context"
	"io/fs"
	"testing"

	"github.com/hilthontt/tenantwire/internal/infrastructure/configs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(Migrations(), ".")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"00001_audit_logs.sql", "00002_tenant_memberships.sql"}, names)

	raw, err := fs.ReadFile(Migrations(), "00001_audit_logs.sql")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "-- +goose StatementBegin")
	assert.Contains(t, string(raw), "partition_key  TEXT        NOT NULL")
}

func TestNewRedisClientWithoutURL(t *testing.T) {
	client, err := NewRedisClient(context.Background(), configs.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), configs.RedisConfig{URL: "http://not-redis"})
	assert.ErrorContains(t, err, "parse redis URL")
}

func TestNewPostgresPoolValidatesDSN(t *testing.T) {
	_, err := NewPostgresPool(context.Background(), configs.PostgresConfig{})
	assert.ErrorContains(t, err, "DSN is required")

	_, err = NewPostgresPool(context.Background(), configs.PostgresConfig{DSN: "::not a dsn::"})
	assert.ErrorContains(t, err, "parse database DSN")
}

func TestNewMongoClientValidatesConfig(t *testing.T) {
	_, err := NewMongoClient(context.Background(), configs.MongoConfig{})
	assert.ErrorContains(t, err, "URI is required")

	_, err = NewMongoClient(context.Background(), configs.MongoConfig{URI: "mongodb://localhost:27017"})
	assert.ErrorContains(t, err, "database is required")
}
