// Package models contains the data structures used throughout the application.
package models

// PlaybackRecord is the transient per-room playback state held in the shared
// store. At most one record exists per room.
type PlaybackRecord struct {
	// EntryID is the originating submission id, empty for ad-hoc plays.
	EntryID string `json:"entryId,omitempty"`

	// Media is the track being played.
	Media MediaInfo `json:"media"`

	// StartAtServerMs is the wall-clock instant, in server milliseconds
	// since epoch, at which every client starts the track.
	StartAtServerMs int64 `json:"startAtServerMs"`

	// StartedBy is the user id of the member who started playback.
	StartedBy string `json:"startedBy"`

	// IsPlaying is false while paused.
	IsPlaying bool `json:"isPlaying"`

	// PausedAtMs is the track position in milliseconds at pause time,
	// meaningful only while IsPlaying is false.
	PausedAtMs int64 `json:"pausedAtMs,omitempty"`
}

// PlaybackSnapshot is the client-visible playback state inside room:state.
// Clients compute the current position as now_in_server_time - startAtServerMs.
type PlaybackSnapshot struct {
	// Playing reports whether a track is active.
	Playing bool `json:"playing"`

	// EntryID is the originating submission id, if playing.
	EntryID string `json:"entryId,omitempty"`

	// Media is the active track, if playing.
	Media *MediaInfo `json:"media,omitempty"`

	// StartAtServerMs is the scheduled start instant, if playing.
	StartAtServerMs int64 `json:"startAtServerMs,omitempty"`

	// ServerNowMs is the server's clock at snapshot time, letting clients
	// convert to their local clock without a fresh sync round.
	ServerNowMs int64 `json:"serverNowMs,omitempty"`
}

// PlaybackStart is the playback:start broadcast payload.
type PlaybackStart struct {
	// EntryID is the originating submission id, if any.
	EntryID string `json:"entryId,omitempty"`

	// Media is the track to play.
	Media MediaInfo `json:"media"`

	// StartAtServerMs is the instant every client starts the track.
	StartAtServerMs int64 `json:"startAtServerMs"`

	// ServerNowMs is the server's clock at publish time.
	ServerNowMs int64 `json:"serverNowMs"`

	// DurationSeconds is the track length.
	DurationSeconds int `json:"durationSeconds"`
}

// StartPlaybackRequest is the payload for playback:start.
type StartPlaybackRequest struct {
	EntryID string `json:"entryId" validate:"required"`
}

// PlaybackEndedRequest is the payload for playback:ended.
type PlaybackEndedRequest struct {
	EntryID string `json:"entryId" validate:"required"`
}
