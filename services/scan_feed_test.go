package services

import (
	"context"
	"testing"
	"time"

	pubnub "github.com/pubnub/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketpass/models"
)

// blockingVerifier holds each verification until released, so tests can pin
// the consumer mid-flight.
type blockingVerifier struct {
	started chan string
	release chan struct{}
}

func newBlockingVerifier() *blockingVerifier {
	return &blockingVerifier{
		started: make(chan string, 8),
		release: make(chan struct{}),
	}
}

func (v *blockingVerifier) VerifyCode(ctx context.Context, raw string) models.VerificationResult {
	v.started <- raw
	select {
	case <-v.release:
	case <-ctx.Done():
	}
	return models.VerificationResult{Valid: true, Message: "Valid – First Entry"}
}

func startTestFeed(t *testing.T, verifier CodeVerifier) (*ScanFeed, chan string, context.CancelFunc) {
	t.Helper()
	feed := NewScanFeed(nil, verifier, "gate-scans")
	published := make(chan string, 8)
	feed.publish = func(gateID string, result models.VerificationResult) {
		published <- gateID
	}

	ctx, cancel := context.WithCancel(context.Background())
	feed.wg.Add(1)
	go feed.consume(ctx)
	return feed, published, cancel
}

func TestScanFeed_VerifiesAndPublishesPerGate(t *testing.T) {
	verifier := newBlockingVerifier()
	close(verifier.release)
	feed, published, cancel := startTestFeed(t, verifier)
	defer func() {
		cancel()
		feed.Stop()
	}()

	require.True(t, feed.Submit(gateScan{GateID: "gate-2", Code: "tkt-1"}))

	select {
	case gateID := <-published:
		assert.Equal(t, "gate-2", gateID)
	case <-time.After(2 * time.Second):
		t.Fatal("no result published")
	}
	assert.Equal(t, "tkt-1", <-verifier.started)
}

func TestScanFeed_DropsScansWhileVerifying(t *testing.T) {
	verifier := newBlockingVerifier()
	feed, published, cancel := startTestFeed(t, verifier)
	defer func() {
		cancel()
		feed.Stop()
	}()

	require.True(t, feed.Submit(gateScan{GateID: "g", Code: "first"}))

	// Wait for the consumer to pick up the first scan, then fill the single
	// pending slot.
	select {
	case <-verifier.started:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never started")
	}
	require.True(t, feed.Submit(gateScan{GateID: "g", Code: "second"}))

	assert.False(t, feed.Submit(gateScan{GateID: "g", Code: "third"}),
		"a scan arriving while the slot is full must be dropped")

	close(verifier.release)
	for i := 0; i < 2; i++ {
		select {
		case <-published:
		case <-time.After(2 * time.Second):
			t.Fatal("queued scans not drained")
		}
	}
	select {
	case gateID := <-published:
		t.Fatalf("dropped scan was still verified, published to %q", gateID)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScanFeed_StopsOnCancel(t *testing.T) {
	verifier := newBlockingVerifier()
	close(verifier.release)
	feed, _, cancel := startTestFeed(t, verifier)

	cancel()
	done := make(chan struct{})
	go func() {
		feed.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop on cancellation")
	}
}

func TestDecodeScan(t *testing.T) {
	tests := []struct {
		name    string
		message interface{}
		want    gateScan
		wantOK  bool
	}{
		{
			name:    "full payload",
			message: map[string]interface{}{"gate_id": "gate-1", "code": "tkt-9"},
			want:    gateScan{GateID: "gate-1", Code: "tkt-9"},
			wantOK:  true,
		},
		{
			name:    "missing gate defaults",
			message: map[string]interface{}{"code": "tkt-9"},
			want:    gateScan{GateID: "default", Code: "tkt-9"},
			wantOK:  true,
		},
		{
			name:    "missing code rejected",
			message: map[string]interface{}{"gate_id": "gate-1"},
		},
		{
			name:    "non-object rejected",
			message: "tkt-9",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			scan, ok := decodeScan(&pubnub.PNMessage{Message: tc.message})
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.want, scan)
			}
		})
	}
}
