// Package media provides media resolution functionality.
package media

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
	"norelock.dev/waveroom/backend/internal/models"
	"norelock.dev/waveroom/backend/internal/utils"
)

// Upstream failure reasons surfaced in upstream_unavailable errors.
const (
	ReasonRateLimited   = "rate_limited"
	ReasonTimeout       = "timeout"
	ReasonQuotaExceeded = "quota_exceeded"
)

// YouTubeProvider implements the Provider interface for YouTube using the
// Data API v3.
type YouTubeProvider struct {
	apiKey string
	logger *utils.Logger
}

// NewYouTubeProvider creates a new YouTube provider.
func NewYouTubeProvider(apiKey string, logger *utils.Logger) *YouTubeProvider {
	return &YouTubeProvider{
		apiKey: apiKey,
		logger: logger.Named("youtube_provider"),
	}
}

// Resolve retrieves metadata for a YouTube video.
func (p *YouTubeProvider) Resolve(ctx context.Context, sourceID string) (*models.MediaInfo, error) {
	p.logger.Debug("Resolving YouTube video", "sourceId", sourceID)

	service, err := youtube.NewService(ctx, option.WithAPIKey(p.apiKey))
	if err != nil {
		p.logger.Error("Failed to create YouTube service", err)
		return nil, models.NewUpstreamError(classifyUpstreamError(err), err)
	}

	response, err := service.Videos.List([]string{"snippet", "contentDetails"}).
		Id(sourceID).
		Context(ctx).
		Do()
	if err != nil {
		p.logger.Error("Failed to get video details", err, "sourceId", sourceID)
		return nil, models.NewUpstreamError(classifyUpstreamError(err), err)
	}

	if len(response.Items) == 0 {
		return nil, models.NewKindError(models.KindNotFound, "video not found")
	}

	video := response.Items[0]

	duration, err := parseDuration(video.ContentDetails.Duration)
	if err != nil {
		p.logger.Warn("Failed to parse video duration", "duration", video.ContentDetails.Duration, "error", err)
		duration = 0
	}

	return &models.MediaInfo{
		Provider:        "youtube",
		SourceID:        sourceID,
		URL:             fmt.Sprintf("https://www.youtube.com/watch?v=%s", sourceID),
		Title:           video.Snippet.Title,
		Channel:         video.Snippet.ChannelTitle,
		Thumbnail:       getBestThumbnail(video.Snippet.Thumbnails),
		DurationSeconds: duration,
	}, nil
}

// Type returns the provider type.
func (p *YouTubeProvider) Type() string {
	return "youtube"
}

// classifyUpstreamError maps a provider error to an upstream failure reason.
func classifyUpstreamError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429:
			return ReasonRateLimited
		case apiErr.Code == 403 && hasReason(apiErr, "quotaExceeded", "dailyLimitExceeded"):
			return ReasonQuotaExceeded
		case apiErr.Code == 403 && hasReason(apiErr, "rateLimitExceeded", "userRateLimitExceeded"):
			return ReasonRateLimited
		}
	}

	return "unavailable"
}

// hasReason checks a googleapi error for any of the given reason codes.
func hasReason(apiErr *googleapi.Error, reasons ...string) bool {
	for _, item := range apiErr.Errors {
		for _, reason := range reasons {
			if item.Reason == reason {
				return true
			}
		}
	}
	return false
}

// parseDuration parses an ISO 8601 duration string into seconds.
func parseDuration(isoDuration string) (int, error) {
	duration := strings.TrimPrefix(isoDuration, "PT")

	var hours, minutes, seconds int

	if idx := strings.Index(duration, "H"); idx != -1 {
		h, err := strconv.Atoi(duration[:idx])
		if err != nil {
			return 0, err
		}
		hours = h
		duration = duration[idx+1:]
	}

	if idx := strings.Index(duration, "M"); idx != -1 {
		m, err := strconv.Atoi(duration[:idx])
		if err != nil {
			return 0, err
		}
		minutes = m
		duration = duration[idx+1:]
	}

	if idx := strings.Index(duration, "S"); idx != -1 {
		s, err := strconv.Atoi(duration[:idx])
		if err != nil {
			return 0, err
		}
		seconds = s
	}

	return hours*3600 + minutes*60 + seconds, nil
}

// getBestThumbnail returns the best quality thumbnail URL.
func getBestThumbnail(thumbnails *youtube.ThumbnailDetails) string {
	if thumbnails == nil {
		return ""
	}

	if thumbnails.Maxres != nil && thumbnails.Maxres.Url != "" {
		return thumbnails.Maxres.Url
	}
	if thumbnails.High != nil && thumbnails.High.Url != "" {
		return thumbnails.High.Url
	}
	if thumbnails.Medium != nil && thumbnails.Medium.Url != "" {
		return thumbnails.Medium.Url
	}
	if thumbnails.Standard != nil && thumbnails.Standard.Url != "" {
		return thumbnails.Standard.Url
	}
	if thumbnails.Default != nil && thumbnails.Default.Url != "" {
		return thumbnails.Default.Url
	}

	return ""
}
