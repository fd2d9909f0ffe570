package reconnws

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/reconnws/reconnws/internal/mock"
	"github.com/reconnws/reconnws/pkg/logger"
	"github.com/reconnws/reconnws/pkg/transport/gorillaws"
)

func TestNewConfigDefaults(t *testing.T) {
	c := NewConfig()

	assert.False(t, c.Debug)
	assert.True(t, c.AutomaticOpen)
	assert.Equal(t, time.Second, c.ReconnectInterval)
	assert.Equal(t, 30*time.Second, c.MaxReconnectInterval)
	assert.Equal(t, 1.5, c.ReconnectDecay)
	assert.Equal(t, 2*time.Second, c.TimeoutInterval)
	assert.Equal(t, 0, c.MaxReconnectAttempts)
	assert.Equal(t, 3.0, c.FirstConnectBackoffFactor)
	assert.Nil(t, c.UnreachableCloseCodes)
	assert.Equal(t, 3, c.MaxUnreachableFailures)
	assert.Equal(t, BinaryTypeText, c.BinaryType)
}

func TestConfigOptions(t *testing.T) {
	dialer := &mock.Dialer{}
	header := http.Header{"Authorization": []string{"Bearer t"}}

	c := NewConfig(
		WithDebug(),
		WithAutomaticOpen(false),
		WithReconnectInterval(100*time.Millisecond),
		WithMaxReconnectInterval(time.Second),
		WithReconnectDecay(2.0),
		WithTimeoutInterval(time.Second),
		WithMaxReconnectAttempts(5),
		WithFirstConnectBackoffFactor(1),
		WithUnreachableCloseCodes(1011, 1012),
		WithMaxUnreachableFailures(1),
		WithBinaryType(BinaryTypeBinary),
		WithSubprotocols("chat"),
		WithRequestHeader(header),
		WithDialer(dialer),
	)

	assert.True(t, c.Debug)
	assert.False(t, c.AutomaticOpen)
	assert.Equal(t, 100*time.Millisecond, c.ReconnectInterval)
	assert.Equal(t, time.Second, c.MaxReconnectInterval)
	assert.Equal(t, 2.0, c.ReconnectDecay)
	assert.Equal(t, 5, c.MaxReconnectAttempts)
	assert.Equal(t, []int{1011, 1012}, c.UnreachableCloseCodes)
	assert.Equal(t, BinaryTypeBinary, c.BinaryType)
	assert.Equal(t, []string{"chat"}, c.Subprotocols)
	assert.Equal(t, header, c.RequestHeader)
	assert.Same(t, dialer, c.Dialer.(*mock.Dialer))
}

func TestConfigPolicy(t *testing.T) {
	c := NewConfig(
		WithReconnectInterval(100*time.Millisecond),
		WithMaxReconnectInterval(time.Second),
		WithReconnectDecay(2.0),
		WithMaxReconnectAttempts(7),
		WithFirstConnectBackoffFactor(4),
	)
	p := c.policy()

	assert.Equal(t, 100*time.Millisecond, p.InitialDelay)
	assert.Equal(t, time.Second, p.MaxDelay)
	assert.Equal(t, 2.0, p.Multiplier)
	assert.Equal(t, 4.0, p.FirstConnectFactor)
	assert.Equal(t, 7, p.MaxRetries)
}

func TestConfigLogger(t *testing.T) {
	assert.IsType(t, logger.Noop{}, NewConfig().logger())

	custom := logger.Noop{}
	assert.Equal(t, custom, NewConfig(WithLogger(custom)).logger())

	debug := NewConfig(WithDebug()).logger()
	assert.IsType(t, &logger.LogData{}, debug)
}

func TestConfigDialer(t *testing.T) {
	c := NewConfig(
		WithBinaryType(BinaryTypeBinary),
		WithSubprotocols("cbor"),
	)
	d, ok := c.dialer().(*gorillaws.Dialer)
	assert.True(t, ok)
	assert.True(t, d.Binary)
	assert.Equal(t, []string{"cbor"}, d.Subprotocols)
}

func TestConfigUnreachableCode(t *testing.T) {
	c := NewConfig()
	assert.False(t, c.unreachableCode(1006), "classification disabled by default")

	c = NewConfig(WithUnreachableCloseCodes(1006, 1012))
	assert.True(t, c.unreachableCode(1006))
	assert.True(t, c.unreachableCode(1012))
	assert.False(t, c.unreachableCode(1000))
}
