package freshdesk

import (
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffPolicy — чистая функция от номера попытки (и заголовка
// Retry-After) к паузе перед повтором. Рандомизация выключена,
// чтобы политика была детерминированной и тестируемой.
type BackoffPolicy struct {
	RateLimitCap time.Duration
	NetworkCap   time.Duration
}

func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		RateLimitCap: 60 * time.Second,
		NetworkCap:   30 * time.Second,
	}
}

// RateLimitWait — пауза после 429. Числовой Retry-After сервера
// авторитетен (в пределах потолка); иначе экспонента от попытки.
func (p BackoffPolicy) RateLimitWait(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if n, err := strconv.Atoi(retryAfter); err == nil && n >= 0 {
			wait := time.Duration(n) * time.Second
			if wait > p.RateLimitCap {
				wait = p.RateLimitCap
			}
			return wait
		}
	}
	return exponentialWait(attempt, p.RateLimitCap)
}

// NetworkWait — пауза после сетевой ошибки или 5xx
func (p BackoffPolicy) NetworkWait(attempt int) time.Duration {
	return exponentialWait(attempt, p.NetworkCap)
}

func exponentialWait(attempt int, ceiling time.Duration) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = ceiling
	b.MaxElapsedTime = 0
	// Конструктор уже засеял текущий интервал значением по умолчанию,
	// без Reset первая пауза была бы 500мс вместо базовой секунды
	b.Reset()

	wait := b.NextBackOff()
	for i := 0; i < attempt; i++ {
		wait = b.NextBackOff()
	}
	if wait > ceiling {
		wait = ceiling
	}
	return wait
}
