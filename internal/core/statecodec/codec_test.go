package statecodec

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/core/domain"
	"github.com/lore-lml/bioenpro4to-channel-manager/pkg/crypto/adaptive"
)

func testState() domain.EncryptedState {
	return domain.EncryptedState{
		SessionBytes:      []byte{0x01, 0x02, 0x03},
		Category:          domain.TagTrucks,
		ActorID:           "xasd",
		CreationTimestamp: domain.NewDate(25, 5, 2021).Timestamp(),
		Password:          "psw",
		Mainnet:           true,
	}
}

func TestDeriveKey(t *testing.T) {
	key, nonce := DeriveKey("psw")
	if len(key) != 32 || len(nonce) != 24 {
		t.Fatalf("DeriveKey() lengths = %d/%d, want 32/24", len(key), len(nonce))
	}
	// hex(sha256("abc")) = ba7816bf8f01cfea414140de5dae2223...
	key, _ = DeriveKey("abc")
	if string(key) != "ba7816bf8f01cfea414140de5dae2223" {
		t.Errorf("DeriveKey(abc) key = %s", key)
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	st := testState()
	blob, err := Seal(st, "psw")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if _, err := base64.RawURLEncoding.DecodeString(blob); err != nil {
		t.Fatalf("Seal() output is not base64url: %v", err)
	}

	got, err := Open(blob, "psw")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got.Category != st.Category || got.ActorID != st.ActorID ||
		got.CreationTimestamp != st.CreationTimestamp || got.Mainnet != st.Mainnet ||
		string(got.SessionBytes) != string(st.SessionBytes) {
		t.Errorf("Open() = %+v, want %+v", got, st)
	}

	again, _ := Seal(st, "psw")
	if again != blob {
		t.Error("Seal() should be deterministic for the same state and password")
	}
}

func TestOpen_Failures(t *testing.T) {
	blob, err := Seal(testState(), "psw")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	tampered := []byte(blob)
	if tampered[10] == 'A' {
		tampered[10] = 'B'
	} else {
		tampered[10] = 'A'
	}

	// A record sealed under one password but carrying another.
	mismatched := testState()
	mismatched.Password = "other"
	mismatchBlob, err := Seal(mismatched, "psw")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	// A valid seal over bytes that are not a CBOR record.
	key, nonce := DeriveKey("psw")
	c, _ := adaptive.NewXChaCha20(key)
	garbage, _ := c.Seal(nonce, []byte{0xff, 0xff}, nil)

	tests := []struct {
		name     string
		blob     string
		password string
	}{
		{"wrong password", blob, "psw2"},
		{"not base64", "!!not-base64!!", "psw"},
		{"padded base64", blob + "==", "psw"},
		{"tampered", string(tampered), "psw"},
		{"truncated", blob[:8], "psw"},
		{"embedded password mismatch", mismatchBlob, "psw"},
		{"not a record", base64.RawURLEncoding.EncodeToString(garbage), "psw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.blob, tt.password)
			if !domain.IsCrypto(err) {
				t.Errorf("Open() error = %v, want crypto error", err)
			}
		})
	}
}

func TestOpen_TooLarge(t *testing.T) {
	blob := strings.Repeat("A", base64.RawURLEncoding.EncodedLen(maxBlobLength+1))
	_, err := Open(blob, "psw")
	if !domain.IsCrypto(err) || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("Open() error = %v, want a too-large crypto error", err)
	}
}
