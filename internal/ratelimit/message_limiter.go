package ratelimit

import (
	"sync"
	"time"
)

// One message costs 1e9 nano-units. Fixed point avoids float rounding drift
// in the refill math.
const nanoPerMessage int64 = int64(time.Second)

const maxInt64 = int64(^uint64(0) >> 1)

// MessageLimiter is a deterministic token bucket sized in whole messages.
//
// Each signaling connection gets its own limiter; Allow is called once per
// inbound frame. The bucket starts full so a client can burst up to the
// per-second rate immediately after connecting.
type MessageLimiter struct {
	mu sync.Mutex

	clock Clock

	burstMessages int64 // bucket capacity
	perSecond     int64 // refill rate, messages/sec

	availableNano int64
	last          time.Time
}

// NewMessageLimiter builds a limiter allowing bursts of burstMessages and a
// sustained rate of perSecond messages per second. A nil clock uses RealClock.
func NewMessageLimiter(clock Clock, burstMessages, perSecond int64) *MessageLimiter {
	if clock == nil {
		clock = RealClock{}
	}
	if burstMessages < 0 {
		burstMessages = 0
	}
	if perSecond < 0 {
		perSecond = 0
	}
	return &MessageLimiter{
		clock:         clock,
		burstMessages: burstMessages,
		perSecond:     perSecond,
		availableNano: messagesToNano(burstMessages),
		last:          clock.Now(),
	}
}

// Allow reports whether one more message may be processed now, consuming a
// token when it may.
func (l *MessageLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked()

	if l.availableNano < nanoPerMessage {
		return false
	}
	l.availableNano -= nanoPerMessage
	return true
}

func (l *MessageLimiter) refillLocked() {
	now := l.clock.Now()
	if now.Before(l.last) {
		// Clock moved backwards; re-anchor without refilling.
		l.last = now
		return
	}
	elapsed := now.Sub(l.last)
	if elapsed <= 0 {
		return
	}
	l.last = now

	if l.perSecond <= 0 || l.burstMessages <= 0 {
		return
	}

	capNano := messagesToNano(l.burstMessages)
	if l.availableNano >= capNano {
		l.availableNano = capNano
		return
	}

	// perSecond messages/sec equals perSecond nano-units per nanosecond in
	// this fixed-point representation. Clamp before multiplying so a long
	// idle period cannot overflow.
	need := capNano - l.availableNano
	elapsedNanos := elapsed.Nanoseconds()
	if fillTime := need / l.perSecond; fillTime <= 0 || elapsedNanos >= fillTime {
		l.availableNano = capNano
		return
	}

	l.availableNano += elapsedNanos * l.perSecond
	if l.availableNano > capNano {
		l.availableNano = capNano
	}
}

func messagesToNano(n int64) int64 {
	if n <= 0 {
		return 0
	}
	if n > maxInt64/nanoPerMessage {
		return maxInt64
	}
	return n * nanoPerMessage
}
