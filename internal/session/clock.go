package session

import "time"

// Clock supplies the instants the engine stamps into documents. The host's
// store-observed commit time is the single timing authority per question;
// injecting the clock keeps that stamp deterministic under test.
type Clock func() time.Time

// SystemClock reads the wall clock.
func SystemClock() time.Time { return time.Now() }

func (c Clock) nowMillis() int64 {
	return c().UnixMilli()
}
