// Package rpc provides WebSocket-based RPC functionality.
package rpc

// RPC method constants
const (
	// Clock sync methods
	MethodSyncPing   = "sync.ping"
	MethodSyncReport = "sync.report"

	// Room methods
	MethodRoomCreate         = "room.create"
	MethodRoomJoin           = "room.join"
	MethodRoomLeave          = "room.leave"
	MethodRoomState          = "room.state"
	MethodRoomList           = "room.list"
	MethodRoomUpdateSettings = "room.updateSettings"

	// DJ methods
	MethodDJBecome    = "dj.become"
	MethodDJStepDown  = "dj.stepDown"
	MethodDJSet       = "dj.set"
	MethodDJRandomize = "dj.randomize"

	// Queue methods
	MethodQueueAdd       = "queue.add"
	MethodQueueList      = "queue.list"
	MethodQueueUpvote    = "queue.upvote"
	MethodQueueDownvote  = "queue.downvote"
	MethodQueueClearVote = "queue.clearVote"
	MethodQueueRemove    = "queue.remove"

	// Playback methods
	MethodPlaybackStart  = "playback.start"
	MethodPlaybackEnded  = "playback.ended"
	MethodPlaybackPause  = "playback.pause"
	MethodPlaybackResume = "playback.resume"
	MethodPlaybackStop   = "playback.stop"

	// Vote methods
	MethodVoteStartElection = "vote.startElection"
	MethodVoteStartMutiny   = "vote.startMutiny"
	MethodVoteCastDJ        = "vote.castDj"
	MethodVoteCastMutiny    = "vote.castMutiny"
	MethodVoteCurrent       = "vote.current"

	// Chat methods
	MethodChatSend    = "chat.send"
	MethodChatHistory = "chat.history"

	// Media methods
	MethodMediaResolve = "media.resolve"
)
