package wire

import (
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	exp := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)
	payload := []byte("hello world")

	b := Encode(exp, payload)
	if len(b) != HeaderSize+len(payload) {
		t.Fatalf("unexpected length %d", len(b))
	}

	gotExp, gotPayload, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !gotExp.Equal(exp) {
		t.Fatalf("expiry mismatch: got %v want %v", gotExp, exp)
	}
	if string(gotPayload) != string(payload) {
		t.Fatalf("payload mismatch: got %q", gotPayload)
	}
}

func TestDecodeTruncatedHeader(t *testing.T) {
	_, _, err := Decode([]byte{1, 2, 3})
	if err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestDecodeLengthMismatch(t *testing.T) {
	b := Encode(time.Now(), []byte("abcdef"))
	// Truncate the payload without updating payload_len.
	truncated := b[:len(b)-2]
	_, _, err := Decode(truncated)
	if err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestTicksRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	ticks := ToTicks(now)
	back := FromTicks(ticks)
	if !back.Equal(now) {
		t.Fatalf("tick round trip mismatch: got %v want %v", back, now)
	}
}

func TestEmptyPayload(t *testing.T) {
	// The record stores 100ns ticks, so finer precision does not survive
	// the round trip.
	exp := time.Now().UTC().Truncate(100 * time.Nanosecond)
	b := Encode(exp, nil)
	gotExp, gotPayload, err := Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(gotPayload) != 0 {
		t.Fatalf("expected empty payload, got %d bytes", len(gotPayload))
	}
	if !gotExp.Equal(exp) {
		t.Fatalf("expiry mismatch")
	}
}
