package metrics

import "expvar"

var (
	roomsPublished    = expvar.NewInt("rooms_published_total")
	rosterSize        = expvar.NewInt("current_roster_size")
	messagesReceived  = expvar.NewInt("messages_received_total")
	messagesMalformed = expvar.NewInt("messages_malformed_total")
	messagesSent      = expvar.NewInt("messages_sent_total")
	sendFailures      = expvar.NewInt("message_send_failures_total")
	joinsRejected     = expvar.NewInt("joins_rejected_total")
	streamDrops       = expvar.NewInt("stream_drops_total")
	peerCount         = expvar.NewInt("peer_count")
)

// ObserveRoom records a published room snapshot and its roster size.
func ObserveRoom(players int) {
	roomsPublished.Add(1)
	rosterSize.Set(int64(players))
}

// IncReceived counts an inbound payload, malformed or not.
func IncReceived(malformed bool) {
	messagesReceived.Add(1)
	if malformed {
		messagesMalformed.Add(1)
	}
}

// IncSent counts an outbound payload and whether the transport refused it.
func IncSent(err error) {
	messagesSent.Add(1)
	if err != nil {
		sendFailures.Add(1)
	}
}

// IncJoinRejected counts a hello that produced no roster change.
func IncJoinRejected() {
	joinsRejected.Add(1)
}

// IncStreamDrop counts a value missed by a slow subscriber.
func IncStreamDrop() {
	streamDrops.Add(1)
}

// SetPeerCount sets the current connected peer count.
func SetPeerCount(count int) {
	peerCount.Set(int64(count))
}
