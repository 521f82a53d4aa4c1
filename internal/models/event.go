package models

import "time"

// EventType identifies a pipeline event
type EventType string

const (
	EventConversionStarted   EventType = "conversion.started"
	EventConversionProgress  EventType = "conversion.progress"
	EventConversionCompleted EventType = "conversion.completed"
	EventConversionFailed    EventType = "conversion.failed"
	EventFeedPolled          EventType = "feed.polled"
	EventMediaCollected      EventType = "media.collected"
	EventPodcastArchived     EventType = "podcast.archived"
)

// Event is a value record published on the in-process bus
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// ConversionCompletedPayload builds the completed event payload
func ConversionCompletedPayload(jobID, url, pdfPath string, pdfSize int64, score int, reasoning string, duration time.Duration) map[string]interface{} {
	return map[string]interface{}{
		"jobId":            jobID,
		"url":              url,
		"pdfPath":          pdfPath,
		"pdfSize":          pdfSize,
		"qualityScore":     score,
		"qualityReasoning": reasoning,
		"durationMs":       duration.Milliseconds(),
	}
}

// ConversionFailedPayload builds the terminal failure event payload
func ConversionFailedPayload(jobID, url, failureReason string, attemptsMade, maxAttempts int) map[string]interface{} {
	return map[string]interface{}{
		"jobId":         jobID,
		"url":           url,
		"failureReason": failureReason,
		"attemptsMade":  attemptsMade,
		"maxAttempts":   maxAttempts,
	}
}
