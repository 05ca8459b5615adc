package postgres

import (
	"testing"
	"time"

	"lightning-timesheet/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolConfig_AppliesLimits(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "ledger",
		Password:        "secret",
		DBName:          "timesheet",
		SSLMode:         "disable",
		MaxConns:        20,
		MinConns:        5,
		ConnMaxLifetime: 30 * time.Minute,
	}

	poolCfg, err := poolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(20), poolCfg.MaxConns)
	assert.Equal(t, int32(5), poolCfg.MinConns)
	assert.Equal(t, 30*time.Minute, poolCfg.MaxConnLifetime)
	assert.Equal(t, "timesheet", poolCfg.ConnConfig.Database)
	assert.Equal(t, "ledger", poolCfg.ConnConfig.User)
	assert.Equal(t, connectTimeout, poolCfg.ConnConfig.ConnectTimeout)
	assert.Equal(t, applicationName, poolCfg.ConnConfig.RuntimeParams["application_name"])
}

func TestPoolConfig_ZeroLimitsKeepPgxDefaults(t *testing.T) {
	poolCfg, err := poolConfig(config.DatabaseConfig{
		Host:   "localhost",
		Port:   5432,
		User:   "ledger",
		DBName: "timesheet",
	})
	require.NoError(t, err)

	assert.Positive(t, poolCfg.MaxConns)
	assert.Zero(t, poolCfg.MinConns)
}

func TestPoolConfig_EscapedPassword(t *testing.T) {
	poolCfg, err := poolConfig(config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "ledger",
		Password: "p@ss:w/rd",
		DBName:   "timesheet",
	})
	require.NoError(t, err)
	assert.Equal(t, "p@ss:w/rd", poolCfg.ConnConfig.Password)
}
