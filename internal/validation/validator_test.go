package validation

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstay/internal/api"
	"medstay/internal/config"
)

func TestSmokeValidator_AgainstMemoryServer(t *testing.T) {
	server, err := api.NewServer(&config.Config{
		GinMode:             gin.TestMode,
		StorageDriver:       config.StorageMemory,
		CalendarConcurrency: 2,
	})
	require.NoError(t, err)
	defer server.Cleanup()

	ts := httptest.NewServer(server.GetRouter())
	defer ts.Close()

	v := NewSmokeValidator(ts.URL, 1, WithStart(time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.NoError(t, v.ValidateAll())
}

func TestSmokeValidator_UnknownProperty(t *testing.T) {
	server, err := api.NewServer(&config.Config{
		GinMode:             gin.TestMode,
		StorageDriver:       config.StorageMemory,
		CalendarConcurrency: 2,
	})
	require.NoError(t, err)
	defer server.Cleanup()

	ts := httptest.NewServer(server.GetRouter())
	defer ts.Close()

	err = NewSmokeValidator(ts.URL, 404).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "calendar validation failed")
}
