package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/saaga0h/parking-edge/pkg/mqtt/mqtttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockRedis implements redis.Client with testify/mock
type mockRedis struct {
	mock.Mock
}

func (m *mockRedis) HSet(ctx context.Context, key string, values ...interface{}) error {
	return m.Called(key).Error(0)
}

func (m *mockRedis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	args := m.Called(key)
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *mockRedis) LPush(ctx context.Context, key string, values ...interface{}) error {
	return m.Called(key).Error(0)
}

func (m *mockRedis) LTrim(ctx context.Context, key string, start, stop int64) error {
	return m.Called(key, start, stop).Error(0)
}

func (m *mockRedis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	args := m.Called(key, start, stop)
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockRedis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return m.Called(key, ttl).Error(0)
}

func (m *mockRedis) Ping(ctx context.Context) error {
	return m.Called().Error(0)
}

func (m *mockRedis) Close() error {
	return m.Called().Error(0)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(t *testing.T, c *Checker, path string) (int, HealthResponse) {
	mux := http.NewServeMux()
	c.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec.Code, resp
}

func TestLivenessIgnoresDependencies(t *testing.T) {
	c := NewChecker(mqtttest.NewClient(), nil, quietLogger())
	code, resp := serve(t, c, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Services)
}

func TestDetailedWithoutRedis(t *testing.T) {
	client := mqtttest.NewClient()
	require.NoError(t, client.Connect(context.Background()))

	code, resp := serve(t, NewChecker(client, nil, quietLogger()), "/health/detailed")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "disabled", resp.Services.Redis)
	assert.Equal(t, "connected", resp.Services.MQTT)
}

func TestDetailedDegradedWhenRedisDown(t *testing.T) {
	client := mqtttest.NewClient()
	require.NoError(t, client.Connect(context.Background()))
	r := &mockRedis{}
	r.On("Ping").Return(errors.New("refused"))

	code, resp := serve(t, NewChecker(client, r, quietLogger()), "/health/detailed")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "disconnected", resp.Services.Redis)
	r.AssertExpectations(t)
}

func TestDetailedDegradedWhenMQTTDown(t *testing.T) {
	r := &mockRedis{}
	r.On("Ping").Return(nil)

	code, resp := serve(t, NewChecker(mqtttest.NewClient(), r, quietLogger()), "/health/detailed")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "connected", resp.Services.Redis)
	assert.Equal(t, "disconnected", resp.Services.MQTT)
}
