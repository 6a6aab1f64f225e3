package id

import (
	"crypto/rand"
	"fmt"
	"sync/atomic"
	"time"
)

// Kernel-specific identifier formats (spec §6 Identifier formats).
// All of them are time-sortable by construction: a UTC timestamp
// prefix followed by a disambiguator, following the same design as
// New() above (timestamp, then uniqueness suffix).

// counter is a process-wide monotonic counter used by the
// disambiguating suffixes of escalation, request and spec IDs. It resets
// implicitly on process restart; combined with the timestamp prefix
// this keeps IDs generated within the same process unique without
// requiring a persisted sequence.
var counter uint32

func nextCounter() uint32 {
	return atomic.AddUint32(&counter, 1)
}

func utcStamp(t time.Time) string {
	return t.UTC().Format("20060102150405")
}

func hexSuffix(n int) string {
	b := make([]byte, (n+1)/2)
	if _, err := rand.Read(b); err != nil {
		panic("id: crypto/rand read failed: " + err.Error())
	}
	s := fmt.Sprintf("%x", b)
	return s[:n]
}

// NewPipelineID returns a pipeline identifier: PL-<UTC-YYYYMMDDHHMMSS>-<8-hex>.
func NewPipelineID() string {
	return fmt.Sprintf("PL-%s-%s", utcStamp(time.Now()), hexSuffix(8))
}

// NewEscalationID returns an escalation identifier:
// ESC-<UTC-YYYYMMDDHHMMSS>-<2-hex counter>. The counter suffix is always
// appended, so two escalations raised in the same wall-clock second
// remain distinct.
func NewEscalationID() string {
	c := nextCounter() & 0xff
	return fmt.Sprintf("ESC-%s-%02x", utcStamp(time.Now()), c)
}

// NewRequestID returns a per-intake request identifier:
// REQ-<UTC-YYYYMMDDHHMMSS>-<4-digit counter>.
func NewRequestID() string {
	c := nextCounter() % 10000
	return fmt.Sprintf("REQ-%s-%04d", utcStamp(time.Now()), c)
}

// NewSpecID returns a persisted-specification identifier:
// SPEC-<UTC-YYYYMMDDHHMMSS>-<4-digit counter>.
func NewSpecID() string {
	c := nextCounter() % 10000
	return fmt.Sprintf("SPEC-%s-%04d", utcStamp(time.Now()), c)
}
