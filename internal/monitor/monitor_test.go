package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nostrelay/relay/internal/broadcast"
)

func TestRunPublishesASignedAdvertisementImmediately(t *testing.T) {
	hub := broadcast.New()
	ch := hub.Register()
	defer hub.Unregister(ch)

	ctx, cancel := context.WithCancel(context.Background())
	go Run(ctx, hub, "wss://relay.example.com")
	defer cancel()

	select {
	case ev := <-ch:
		require.NotNil(t, ev)
		assert.Equal(t, kindRelayMonitor, ev.Kind)
		ok, err := ev.IDMatches()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "d", ev.Tags[0].Name())
		assert.Equal(t, "wss://relay.example.com", ev.Tags[0].Value())
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never published its advertisement event")
	}
}
