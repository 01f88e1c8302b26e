package freshdesk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitWaitRetryAfter(t *testing.T) {
	p := DefaultBackoffPolicy()

	assert.Equal(t, 5*time.Second, p.RateLimitWait(0, "5"))
	assert.Equal(t, 5*time.Second, p.RateLimitWait(3, "5"))

	// Потолок ограничивает и заголовок сервера
	assert.Equal(t, 60*time.Second, p.RateLimitWait(0, "300"))
}

func TestRateLimitWaitExponential(t *testing.T) {
	p := DefaultBackoffPolicy()

	assert.Equal(t, 1*time.Second, p.RateLimitWait(0, ""))
	assert.Equal(t, 2*time.Second, p.RateLimitWait(1, ""))
	assert.Equal(t, 4*time.Second, p.RateLimitWait(2, ""))

	// Нечисловой Retry-After игнорируется
	assert.Equal(t, 2*time.Second, p.RateLimitWait(1, "soon"))

	assert.Equal(t, 60*time.Second, p.RateLimitWait(20, ""))
}

func TestNetworkWait(t *testing.T) {
	p := DefaultBackoffPolicy()

	assert.Equal(t, 1*time.Second, p.NetworkWait(0))
	assert.Equal(t, 2*time.Second, p.NetworkWait(1))
	assert.Equal(t, 4*time.Second, p.NetworkWait(2))
	assert.Equal(t, 30*time.Second, p.NetworkWait(10))
}
