package infra

import (
	"sync/atomic"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	auctionsCreated atomic.Uint64
	auctionsRemoved atomic.Uint64
	bidsAccepted    atomic.Uint64
	bidsRejected    atomic.Uint64
	withdrawals     atomic.Uint64
	sendFailures    atomic.Uint64
	eventsDropped   atomic.Uint64

	// Gauges
	streamClients atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordAuctionCreated counts a successful creation.
func (m *Metrics) RecordAuctionCreated() { m.auctionsCreated.Add(1) }

// RecordAuctionRemoved counts a liveness-entry removal.
func (m *Metrics) RecordAuctionRemoved() { m.auctionsRemoved.Add(1) }

// RecordBidAccepted counts an accepted bid.
func (m *Metrics) RecordBidAccepted() { m.bidsAccepted.Add(1) }

// RecordBidRejected counts a rejected bid.
func (m *Metrics) RecordBidRejected() { m.bidsRejected.Add(1) }

// RecordWithdrawal counts a successful withdrawal.
func (m *Metrics) RecordWithdrawal() { m.withdrawals.Add(1) }

// RecordSendFailure counts an outgoing payment the backend refused.
func (m *Metrics) RecordSendFailure() { m.sendFailures.Add(1) }

// RecordEventDropped counts a notification dropped for a slow subscriber.
func (m *Metrics) RecordEventDropped() { m.eventsDropped.Add(1) }

// IncrementStreamClients bumps the connected websocket client gauge.
func (m *Metrics) IncrementStreamClients() { m.streamClients.Add(1) }

// DecrementStreamClients drops the connected websocket client gauge.
func (m *Metrics) DecrementStreamClients() { m.streamClients.Add(-1) }

// Snapshot returns current values for reporting.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"auctions_created": int64(m.auctionsCreated.Load()),
		"auctions_removed": int64(m.auctionsRemoved.Load()),
		"bids_accepted":    int64(m.bidsAccepted.Load()),
		"bids_rejected":    int64(m.bidsRejected.Load()),
		"withdrawals":      int64(m.withdrawals.Load()),
		"send_failures":    int64(m.sendFailures.Load()),
		"events_dropped":   int64(m.eventsDropped.Load()),
		"stream_clients":   int64(m.streamClients.Load()),
	}
}
