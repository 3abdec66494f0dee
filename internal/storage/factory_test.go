package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravadigital/polls-api/internal/config"
)

func TestValidateStorageType(t *testing.T) {
	st, err := ValidateStorageType("sqlite")
	require.NoError(t, err)
	assert.Equal(t, StorageTypeSQLite, st)

	_, err = ValidateStorageType("mongo")
	assert.ErrorContains(t, err, "unsupported storage type: mongo")
}

func TestFromConfigRejectsUnknownDriver(t *testing.T) {
	cfg := &config.Config{}
	cfg.DB.Driver = "mysql"

	_, err := FromConfig(cfg)
	assert.Error(t, err)
}

func TestCreateSQLiteContainer(t *testing.T) {
	cfg := &config.Config{}
	cfg.DB.Driver = "sqlite"
	cfg.DB.Path = filepath.Join(t.TempDir(), "polls.db")

	factory, err := FromConfig(cfg)
	require.NoError(t, err)

	container, err := factory.CreateContainer(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	assert.NoError(t, container.Health(context.Background()))
}
