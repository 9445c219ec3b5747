package realtime

// Dedup suppresses duplicate processing of idempotent control messages
// without keeping unbounded history. It remembers exactly one last-accepted
// payload fingerprint and, for round-start kinds, one last-accepted round
// id. Both slots are cleared whenever the owning connection is torn down and
// re-established.
//
// A duplicate separated by an intervening distinct message is not caught;
// that is a deliberate memory/robustness trade-off.
type Dedup struct {
	lastFingerprint string
	lastRoundID     string
}

// Admit reports whether the payload should be processed. raw is the exact
// inbound payload bytes; roundID is empty for non-round-start kinds.
// Only accepted payloads update the remembered slots.
func (d *Dedup) Admit(raw []byte, roundID string) bool {
	fp := string(raw)
	if d.lastFingerprint != "" && fp == d.lastFingerprint {
		return false
	}
	// Round starts are also matched on identity, so a near-duplicate start
	// with a slightly different embedded timestamp is still dropped.
	if roundID != "" && roundID == d.lastRoundID {
		return false
	}
	d.lastFingerprint = fp
	if roundID != "" {
		d.lastRoundID = roundID
	}
	return true
}

// Reset clears both slots.
func (d *Dedup) Reset() {
	d.lastFingerprint = ""
	d.lastRoundID = ""
}
