// Package models contains the data structures used throughout the application.
package models

// SyncRecord is the per-connection clock sync state: the last observed
// clock offset and round-trip time. Kept in the transient store with a
// one-hour TTL and destroyed on disconnect.
type SyncRecord struct {
	// ClientID is the connection identifier.
	ClientID string `json:"clientId"`

	// OffsetMs is server_t1 - client_t0 from the most recent ping.
	OffsetMs int64 `json:"offsetMs"`

	// RTTMs is the most recent client-reported round-trip time.
	RTTMs int64 `json:"rttMs"`

	// UpdatedAtMs is the last update instant, unix milliseconds.
	UpdatedAtMs int64 `json:"updatedAtMs"`
}

// SyncPingRequest is the payload for sync:ping.
type SyncPingRequest struct {
	ClientT0 int64 `json:"clientT0" validate:"required"`
}

// SyncPongResponse is the reply to sync:ping. T1 is the instant the server
// began processing, T2 the instant just before replying.
type SyncPongResponse struct {
	ClientT0 int64 `json:"clientT0"`
	ServerT1 int64 `json:"serverT1"`
	ServerT2 int64 `json:"serverT2"`
}

// SyncReportRequest is the payload for sync:report.
type SyncReportRequest struct {
	RTTMs int64 `json:"rttMs" validate:"min=0"`
}
