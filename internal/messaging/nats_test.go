package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNATSClient_NotConnected(t *testing.T) {
	client := &NATSClient{}

	err := client.Publish("booking.created", map[string]string{"id": "1"})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = client.SubscribeQueue("booking.created", "indexer", nil)
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.NoError(t, client.Close())
}

func TestNATSClient_NilClient(t *testing.T) {
	var client *NATSClient
	assert.ErrorIs(t, client.Publish("booking.created", nil), ErrNotConnected)
}
