package realtime

import "testing"

func TestDedupFingerprintIdempotence(t *testing.T) {
	var d Dedup

	payload := []byte(`{"type":"reaction","data":{"emoji":"🔥"}}`)
	if !d.Admit(payload, "") {
		t.Fatalf("first delivery should be accepted")
	}
	if d.Admit(payload, "") {
		t.Errorf("byte-identical repeat should be dropped")
	}

	other := []byte(`{"type":"reaction","data":{"emoji":"🎤"}}`)
	if !d.Admit(other, "") {
		t.Errorf("distinct payload should be accepted")
	}
}

func TestDedupRoundID(t *testing.T) {
	var d Dedup

	first := []byte(`{"type":"band_start","round_id":"r1","ts":1}`)
	if !d.Admit(first, "r1") {
		t.Fatalf("first start should be accepted")
	}

	// Same round id, different embedded timestamp: different fingerprint,
	// must still be dropped.
	nearDup := []byte(`{"type":"band_start","round_id":"r1","ts":2}`)
	if d.Admit(nearDup, "r1") {
		t.Errorf("near-duplicate start with same round id should be dropped")
	}

	next := []byte(`{"type":"band_start","round_id":"r2","ts":3}`)
	if !d.Admit(next, "r2") {
		t.Errorf("start for a new round should be accepted")
	}
}

func TestDedupSingleSlotMemory(t *testing.T) {
	var d Dedup

	a := []byte(`{"seq":1}`)
	b := []byte(`{"seq":2}`)

	d.Admit(a, "")
	d.Admit(b, "")
	// Only the most recent fingerprint is remembered, so a duplicate
	// separated by an intervening message is accepted again.
	if !d.Admit(a, "") {
		t.Errorf("single-slot memory should not catch separated duplicates")
	}
}

func TestDedupReset(t *testing.T) {
	var d Dedup

	payload := []byte(`{"type":"band_start","round_id":"r1"}`)
	d.Admit(payload, "r1")
	d.Reset()

	if !d.Admit(payload, "r1") {
		t.Errorf("reset should clear both slots")
	}
}
