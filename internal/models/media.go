// Package models contains the data structures used throughout the application.
package models

// MediaInfo is the resolved metadata for an external track reference.
// It is embedded in queue submissions and playback records.
type MediaInfo struct {
	// Provider is the source platform, currently always "youtube".
	Provider string `json:"provider" bson:"provider" validate:"required,oneof=youtube"`

	// SourceID is the track's id on the source platform.
	SourceID string `json:"sourceId" bson:"sourceId" validate:"required"`

	// URL is the original URL the submitter provided.
	URL string `json:"url" bson:"url" validate:"required,url"`

	// Title is the track title.
	Title string `json:"title" bson:"title" validate:"required,max=200"`

	// Channel is the uploading artist or channel name.
	Channel string `json:"channel" bson:"channel" validate:"max=200"`

	// Thumbnail is the URL of the track's thumbnail image.
	Thumbnail string `json:"thumbnail" bson:"thumbnail"`

	// DurationSeconds is the track length in seconds.
	DurationSeconds int `json:"durationSeconds" bson:"durationSeconds" validate:"min=1"`
}

// ResolveMediaRequest is the payload for resolving a URL into MediaInfo.
type ResolveMediaRequest struct {
	URL string `json:"url" validate:"required,youtube_url"`
}
