package login

import (
	"fmt"
)

// RepositoryConfig contains configuration for creating a login repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories (DBTX interface)
	DB DBTX
}

// NewLoginRepository creates a new login repository based on the persistence type
func NewLoginRepository(persistenceType string, config RepositoryConfig) (LoginRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresLoginRepository(config.DB), nil
	case "memory", "inmem":
		return NewInMemLoginRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, memory)", persistenceType)
	}
}
