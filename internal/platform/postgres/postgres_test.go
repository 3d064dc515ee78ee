package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@db:5432/app?sslmode=disable": "pgx5://u:p@db:5432/app?sslmode=disable",
		"postgresql://u:p@db:5432/app":               "pgx5://u:p@db:5432/app",
		"pgx5://u:p@db:5432/app":                     "pgx5://u:p@db:5432/app",
		"host=db user=u dbname=app sslmode=disable":  "host=db user=u dbname=app sslmode=disable",
	}
	for in, want := range tests {
		assert.Equal(t, want, MigrateURL(in), in)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	assert.NoError(t, err)
	assert.Len(t, entries, 2)
}
