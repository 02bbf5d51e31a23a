package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	pubnub "github.com/pubnub/go"

	"ticketpass/models"
)

// CodeVerifier runs the full resolve-redeem-classify pipeline for one code.
type CodeVerifier interface {
	VerifyCode(ctx context.Context, raw string) models.VerificationResult
}

// gateScan is the payload gate scanner devices publish for each decoded frame.
type gateScan struct {
	GateID string `json:"gate_id"`
	Code   string `json:"code"`
}

// ScanFeed consumes decoded QR codes from gate devices as a cancellable
// stream. Codes are verified strictly one at a time: a frame decoded while a
// verification is in flight is dropped, never queued, so one physical ticket
// cannot race itself through the gate. Stop (or context cancellation)
// releases the subscription unconditionally.
type ScanFeed struct {
	pubnub   *pubnub.PubNub
	verifier CodeVerifier
	channel  string

	// publish is swappable for tests; defaults to a PubNub publish on the
	// gate's result channel.
	publish func(gateID string, result models.VerificationResult)

	scans chan gateScan
	wg    sync.WaitGroup
}

func NewScanFeed(pn *pubnub.PubNub, verifier CodeVerifier, channel string) *ScanFeed {
	f := &ScanFeed{
		pubnub:   pn,
		verifier: verifier,
		channel:  channel,
		// Capacity 1: the slot holds the next scan; anything beyond is dropped.
		scans: make(chan gateScan, 1),
	}
	f.publish = f.publishResult
	return f
}

// Start subscribes to the gate scan channel and begins consuming. It returns
// immediately; the feed stops when ctx is cancelled.
func (f *ScanFeed) Start(ctx context.Context) {
	listener := pubnub.NewListener()
	f.pubnub.AddListener(listener)
	f.pubnub.Subscribe().
		Channels([]string{f.channel}).
		Execute()

	f.wg.Add(2)
	go f.receive(ctx, listener)
	go f.consume(ctx)
}

// Stop blocks until both feed goroutines have exited.
func (f *ScanFeed) Stop() {
	f.wg.Wait()
}

func (f *ScanFeed) receive(ctx context.Context, listener *pubnub.Listener) {
	defer f.wg.Done()
	defer f.pubnub.UnsubscribeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case message := <-listener.Message:
			scan, ok := decodeScan(message)
			if !ok {
				continue
			}
			f.Submit(scan)
		}
	}
}

// Submit offers a decoded scan to the consumer. Returns false when the
// consumer is busy and the scan was dropped.
func (f *ScanFeed) Submit(scan gateScan) bool {
	select {
	case f.scans <- scan:
		return true
	default:
		slog.Debug("scan dropped, verification in flight",
			"gate_id", scan.GateID)
		return false
	}
}

func (f *ScanFeed) consume(ctx context.Context) {
	defer f.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case scan := <-f.scans:
			result := f.verifier.VerifyCode(ctx, scan.Code)
			f.publish(scan.GateID, result)
		}
	}
}

func (f *ScanFeed) publishResult(gateID string, result models.VerificationResult) {
	f.pubnub.Publish().
		Channel("gate-results-" + gateID).
		Message(result).
		Execute()
}

func decodeScan(message *pubnub.PNMessage) (gateScan, bool) {
	data, ok := message.Message.(map[string]interface{})
	if !ok {
		return gateScan{}, false
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return gateScan{}, false
	}

	var scan gateScan
	if err := json.Unmarshal(raw, &scan); err != nil || scan.Code == "" {
		return gateScan{}, false
	}
	if scan.GateID == "" {
		scan.GateID = "default"
	}
	return scan, true
}
