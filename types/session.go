package types

import "time"

// SessionStatus represents the lifecycle state of a continuity session.
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusArchived SessionStatus = "archived"
)

// ContinuitySession is a named collection of sequential shots sharing a
// style and character identity. Shots are ordered by strictly increasing
// SequenceIndex. Version increases by exactly 1 on every successful
// persisted mutation and is the basis for optimistic concurrency.
type ContinuitySession struct {
	ID                    string            `json:"id"`
	UserID                string            `json:"user_id"`
	Name                  string            `json:"name"`
	Description           string            `json:"description,omitempty"`
	PrimaryStyleReference *StyleReference   `json:"primary_style_reference,omitempty"`
	SceneProxy            *SceneProxy       `json:"scene_proxy,omitempty"`
	Shots                 []*ContinuityShot `json:"shots"`
	DefaultSettings       SessionSettings   `json:"default_settings"`
	Status                SessionStatus     `json:"status"`
	Version               int64             `json:"version"`
	CreatedAt             time.Time         `json:"created_at"`
	UpdatedAt             time.Time         `json:"updated_at"`
}

// SessionSettings holds the per-session generation defaults applied to
// shots that do not override them.
type SessionSettings struct {
	ContinuityMode     ContinuityMode `json:"continuity_mode"`
	StyleStrength      float64        `json:"style_strength"`
	StyleThreshold     float64        `json:"style_threshold"`
	IdentityThreshold  float64        `json:"identity_threshold,omitempty"`
	MaxRetries         int            `json:"max_retries"`
	AutoRetryOnFailure bool           `json:"auto_retry_on_failure"`
	UseSceneProxy      bool           `json:"use_scene_proxy"`
	ColorGrade         bool           `json:"color_grade"`
	AspectRatio        string         `json:"aspect_ratio,omitempty"`
	Resolution         string         `json:"resolution,omitempty"`
}

// DefaultSessionSettings returns the generation defaults applied to new
// sessions.
func DefaultSessionSettings() SessionSettings {
	return SessionSettings{
		ContinuityMode:     ContinuityModeStyleMatch,
		StyleStrength:      0.6,
		StyleThreshold:     0.75,
		IdentityThreshold:  0.8,
		MaxRetries:         2,
		AutoRetryOnFailure: true,
		UseSceneProxy:      false,
		ColorGrade:         false,
		AspectRatio:        "16:9",
		Resolution:         "720p",
	}
}

// FindShot returns the shot with the given ID, or nil.
func (s *ContinuitySession) FindShot(shotID string) *ContinuityShot {
	for _, shot := range s.Shots {
		if shot.ID == shotID {
			return shot
		}
	}
	return nil
}

// PrecedingShot returns the shot with the largest SequenceIndex strictly
// below the given shot's index, or nil when the shot is first. Used for
// frame-bridge and seed inheritance.
func (s *ContinuitySession) PrecedingShot(shot *ContinuityShot) *ContinuityShot {
	var prev *ContinuityShot
	for _, candidate := range s.Shots {
		if candidate.SequenceIndex >= shot.SequenceIndex {
			continue
		}
		if prev == nil || candidate.SequenceIndex > prev.SequenceIndex {
			prev = candidate
		}
	}
	return prev
}

// NextSequenceIndex returns the sequence index a newly appended shot
// should receive.
func (s *ContinuitySession) NextSequenceIndex() int {
	next := 0
	for _, shot := range s.Shots {
		if shot.SequenceIndex >= next {
			next = shot.SequenceIndex + 1
		}
	}
	return next
}
