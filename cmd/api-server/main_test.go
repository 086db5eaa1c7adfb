package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/hospital-portal-scheduling/internal/appointment"
	"github.com/hackgods/hospital-portal-scheduling/internal/config"
	"github.com/hackgods/hospital-portal-scheduling/internal/events"
	redisclient "github.com/hackgods/hospital-portal-scheduling/internal/redis"
)

func TestOpenRepository_Memory(t *testing.T) {
	cfg := config.Config{StorageDriver: config.StorageMemory, Location: time.UTC}

	repo, pool, err := openRepository(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, pool)
	assert.IsType(t, &appointment.MemoryRepository{}, repo)
}

func TestOpenRepository_BadDSN(t *testing.T) {
	cfg := config.Config{StorageDriver: config.StoragePostgres, PostgresDSN: "://not a dsn", Location: time.UTC}

	repo, pool, err := openRepository(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, repo)
	assert.Nil(t, pool)
}

func TestNewLocker_DisabledWithoutRedis(t *testing.T) {
	locker, rdb, err := newLocker(context.Background(), config.Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.Nil(t, rdb)
	assert.IsType(t, redisclient.NoopLocker{}, locker)
}

func TestNewPublisher(t *testing.T) {
	pub, err := newPublisher(config.Config{}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, events.NopPublisher{}, pub)

	pub, err = newPublisher(config.Config{KafkaBrokers: []string{"localhost:9092"}, KafkaTopic: "appointment-events"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &events.KafkaPublisher{}, pub)
	assert.NoError(t, pub.Close())

	_, err = newPublisher(config.Config{KafkaBrokers: []string{"localhost:9092"}}, zerolog.Nop())
	assert.Error(t, err)
}
