package qr

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func samplePayload() TicketPayload {
	return TicketPayload{
		TicketID:       "test-ticket-id",
		Code:           "TKT-AAAA-BBBB-CCCC",
		EventID:        "event-1",
		OrganizationID: "org-1",
		OwnerID:        "buyer-1",
		IssuedAt:       time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestGenerateEncryptedQR(t *testing.T) {
	gen := NewGenerator("test-secret-key")

	qrBytes, err := gen.GenerateEncryptedQR(samplePayload())
	assert.NoError(t, err)
	assert.NotEmpty(t, qrBytes)

	// output is a PNG image
	assert.True(t, bytes.HasPrefix(qrBytes, []byte("\x89PNG")))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	gen := NewGenerator("test-secret-key")
	payload := samplePayload()

	data, err := encryptAES([]byte(`{"ticket_id":"t-1"}`), gen.secret)
	assert.NoError(t, err)

	decoded, err := gen.DecodePayload(data)
	assert.NoError(t, err)
	assert.Equal(t, "t-1", decoded.TicketID)

	// full payload round trip through the generator's own marshalling
	encrypted, err := encryptAES(mustJSON(t, payload), gen.secret)
	assert.NoError(t, err)

	got, err := gen.DecodePayload(encrypted)
	assert.NoError(t, err)
	assert.Equal(t, payload.TicketID, got.TicketID)
	assert.Equal(t, payload.Code, got.Code)
	assert.Equal(t, payload.OwnerID, got.OwnerID)
	assert.True(t, payload.IssuedAt.Equal(got.IssuedAt))
}

func TestDecodeWithWrongSecretFails(t *testing.T) {
	gen := NewGenerator("test-secret-key")
	other := NewGenerator("another-secret")

	encrypted, err := encryptAES(mustJSON(t, samplePayload()), gen.secret)
	assert.NoError(t, err)

	_, err = other.DecodePayload(encrypted)
	assert.Error(t, err)
}

func TestRandomIVMakesOutputUnique(t *testing.T) {
	gen := NewGenerator("test-secret-key")
	payload := samplePayload()

	first, err := gen.GenerateEncryptedQR(payload)
	assert.NoError(t, err)
	second, err := gen.GenerateEncryptedQR(payload)
	assert.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func mustJSON(t *testing.T, payload TicketPayload) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	return data
}
