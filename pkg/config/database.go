package config

import (
	"fmt"

	"github.com/jinzhu/copier"
	dbutils "github.com/tendant/db-utils/db"
)

// DatabaseConfig holds PostgreSQL database configuration
type DatabaseConfig struct {
	Host     string `env:"DEVICE_AUTH_PG_HOST" env-default:"localhost"`
	Port     uint16 `env:"DEVICE_AUTH_PG_PORT" env-default:"5432"`
	Database string `env:"DEVICE_AUTH_PG_DATABASE" env-default:"device_auth_db"`
	User     string `env:"DEVICE_AUTH_PG_USER" env-default:"deviceauth"`
	Password string `env:"DEVICE_AUTH_PG_PASSWORD" env-default:"pwd"`
	Schema   string `env:"DEVICE_AUTH_PG_SCHEMA" env-default:"public"`
}

// ToDatabaseURL converts the config to a PostgreSQL connection URL
func (d DatabaseConfig) ToDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s,public",
		d.User, d.Password, d.Host, d.Port, d.Database, d.Schema)
}

// ToDbConfig converts the config to a db-utils DbConfig
func (d DatabaseConfig) ToDbConfig() dbutils.DbConfig {
	var dbConfig dbutils.DbConfig
	copier.Copy(&dbConfig, &d)
	return dbConfig
}

// NewDatabaseConfigFromEnv creates a DatabaseConfig from environment variables
func NewDatabaseConfigFromEnv() DatabaseConfig {
	return DatabaseConfig{
		Host:     GetEnvOrDefault("DEVICE_AUTH_PG_HOST", "localhost"),
		Port:     GetEnvUint16("DEVICE_AUTH_PG_PORT", 5432),
		Database: GetEnvOrDefault("DEVICE_AUTH_PG_DATABASE", "device_auth_db"),
		User:     GetEnvOrDefault("DEVICE_AUTH_PG_USER", "deviceauth"),
		Password: GetEnvOrDefault("DEVICE_AUTH_PG_PASSWORD", "pwd"),
		Schema:   GetEnvOrDefault("DEVICE_AUTH_PG_SCHEMA", "public"),
	}
}
