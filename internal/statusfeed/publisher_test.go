package statusfeed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/xrrecorder/internal/logger"
	"github.com/MrSnakeDoc/xrrecorder/internal/recorder"
)

// memClient keeps keys in a map and records publishes.
type memClient struct {
	mu        sync.Mutex
	keys      map[string][]byte
	published map[string][][]byte
	failPub   error
}

func newMemClient() *memClient {
	return &memClient{keys: map[string][]byte{}, published: map[string][][]byte{}}
}

func (m *memClient) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPub != nil {
		return redis.NewIntResult(0, m.failPub)
	}
	m.published[channel] = append(m.published[channel], message.([]byte))
	return redis.NewIntResult(1, nil)
}

func (m *memClient) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func (m *memClient) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.keys[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (m *memClient) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func TestPublishAndLatest(t *testing.T) {
	c := newMemClient()
	p := NewPublisher(c, "xrrecorder:status", logger.Nop())
	ctx := context.Background()

	_, ok, err := p.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	st := recorder.Status{IsRecording: true, State: recorder.StateRecording, Generation: 3, File: "a.wav"}
	require.NoError(t, p.Publish(ctx, st))

	require.Len(t, c.published["xrrecorder:status"], 1)
	var wire map[string]any
	require.NoError(t, json.Unmarshal(c.published["xrrecorder:status"][0], &wire))
	assert.Equal(t, "status", wire["type"])
	assert.Equal(t, "recording", wire["state"])

	got, ok, err := p.Latest(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, recorder.StateRecording, got.State)
	assert.Equal(t, uint64(3), got.Generation)
	assert.Equal(t, "a.wav", got.File)

	assert.NoError(t, p.Ping(ctx))
}

func TestNotifySwallowsErrors(t *testing.T) {
	c := newMemClient()
	c.failPub = errors.New("connection reset")
	p := NewPublisher(c, "ch", logger.Nop())

	p.Notify(recorder.Status{State: recorder.StateIdle})
	assert.Empty(t, c.published["ch"])
	assert.Error(t, p.Publish(context.Background(), recorder.Status{}))
}
