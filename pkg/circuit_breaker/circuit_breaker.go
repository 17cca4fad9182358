package circuit_breaker

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

type Status uint8

const (
	Closed   Status = 1
	Open     Status = 2
	HalfOpen Status = 3
)

var ErrOpenCB = errors.New("circuit breaker is open")

type Config struct {
	// RecordLength is the size of the window of tracked calls.
	RecordLength int `yaml:"recordLength" envconfig:"CB_RECORD_LENGTH" default:"10"`
	// Timeout is how long the breaker stays open before probing again.
	Timeout time.Duration `yaml:"timeout" envconfig:"CB_TIMEOUT" default:"30s"`
	// Percentile of failed calls in the window that opens the breaker.
	Percentile float64 `yaml:"percentile" envconfig:"CB_PERCENTILE" default:"0.5"`
	// RecoveryRequests successful half-open calls close the breaker again.
	RecoveryRequests int `yaml:"recoveryRequests" envconfig:"CB_RECOVERY_REQUESTS" default:"3"`
}

type CircuitBreaker interface {
	Call(service func() error) error
	State() Status
	Reset()
}

type circuitBreaker struct {
	mu sync.Mutex

	state            Status
	recordLength     int
	timeout          time.Duration
	percentile       float64
	recoveryRequests int

	lastAttemptedAt time.Time
	// buffer is a ring of call outcomes, true means failed.
	buffer       []bool
	pos          int
	successCount int
}

func New(cfg Config) CircuitBreaker {
	if cfg.RecordLength <= 0 {
		cfg.RecordLength = 10
	}
	return &circuitBreaker{
		state:            Closed,
		recordLength:     cfg.RecordLength,
		timeout:          cfg.Timeout,
		percentile:       cfg.Percentile,
		buffer:           make([]bool, cfg.RecordLength),
		recoveryRequests: cfg.RecoveryRequests,
	}
}

func (cb *circuitBreaker) State() Status {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *circuitBreaker) Call(service func() error) error {
	cb.mu.Lock()
	if cb.state == Open {
		if time.Since(cb.lastAttemptedAt) > cb.timeout {
			cb.state = HalfOpen
			cb.successCount = 0
		} else {
			cb.mu.Unlock()
			return ErrOpenCB
		}
	}
	cb.mu.Unlock()

	err := service()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.buffer[cb.pos] = err != nil
	cb.pos = (cb.pos + 1) % cb.recordLength

	if cb.state == HalfOpen {
		if err != nil {
			cb.trip()
			return err
		}
		cb.successCount++
		if cb.successCount >= cb.recoveryRequests {
			cb.reset()
		}
		return nil
	}

	fails := 0
	for _, failed := range cb.buffer {
		if failed {
			fails++
		}
	}
	if float64(fails)/float64(cb.recordLength) >= cb.percentile {
		cb.trip()
	}
	return err
}

func (cb *circuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.reset()
}

func (cb *circuitBreaker) trip() {
	cb.state = Open
	cb.successCount = 0
	cb.lastAttemptedAt = time.Now()
}

func (cb *circuitBreaker) reset() {
	for i := range cb.buffer {
		cb.buffer[i] = false
	}
	cb.successCount = 0
	cb.pos = 0
	cb.state = Closed
}
