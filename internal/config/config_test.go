package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
		invalid bool
	}{
		{"postgres with secret", Config{StorageDriver: StoragePostgres, JWTSecret: "s3cret"}, nil, false},
		{"postgres without secret", Config{StorageDriver: StoragePostgres}, ErrMissingJWTSecret, true},
		{"memory without secret", Config{StorageDriver: StorageMemory}, nil, false},
		{"unknown driver", Config{StorageDriver: "sqlite", JWTSecret: "s3cret"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if !tt.invalid {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("JWT_SECRET", "")

	cfg := Load()
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.ErrorIs(t, cfg.Validate(), ErrMissingJWTSecret)
}
