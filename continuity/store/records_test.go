package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/bharm16/reelflow/types"
)

func TestSessionRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	score := 0.87
	generated := now.Add(time.Minute)
	pan := 0.4

	session := &types.ContinuitySession{
		ID:     "sess-1",
		UserID: "user-1",
		Name:   "pilot",
		PrimaryStyleReference: &types.StyleReference{
			ID: "style-1",
			ExtractedFrame: types.ExtractedFrame{
				SourceVideoID: "vid-0",
				FrameURL:      "https://frames.test/style.png",
				Timestamp:     1.5,
				Width:         1280,
				Height:        720,
				ExtractedAt:   now,
			},
		},
		SceneProxy: &types.SceneProxy{
			ID:        "proxy-1",
			ProxyType: types.SceneProxyTypeGaussian,
			Status:    types.SceneProxyReady,
		},
		Shots: []*types.ContinuityShot{
			{
				ID:                      "shot-1",
				SessionID:               "sess-1",
				SequenceIndex:           0,
				UserPrompt:              "opening",
				GenerationMode:          types.GenerationModeContinuity,
				ContinuityMode:          types.ContinuityModeStyleMatch,
				StyleStrength:           0.7,
				ModelID:                 "gen4_turbo",
				CameraAdjustments:       &types.CameraAdjustments{Pan: &pan},
				Status:                  types.ShotStatusCompleted,
				VideoAssetID:            "asset-1",
				SeedInfo:                &types.SeedInfo{Seed: 42, Provider: "runway", ModelID: "gen4_turbo", ExtractedAt: now},
				QualityScore:            &score,
				RetryCount:              1,
				ContinuityMechanismUsed: types.MechanismIPAdapter,
				CreatedAt:               now,
				GeneratedAt:             &generated,
			},
		},
		DefaultSettings: types.DefaultSessionSettings(),
		Status:          types.SessionStatusActive,
		Version:         3,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	payload, err := encodeSession(session)
	require.NoError(t, err)

	decoded, err := decodeSession(payload)
	require.NoError(t, err)

	assert.Equal(t, session.ID, decoded.ID)
	assert.Equal(t, session.Version, decoded.Version)
	assert.Equal(t, session.DefaultSettings, decoded.DefaultSettings)
	assert.True(t, session.CreatedAt.Equal(decoded.CreatedAt))

	require.Len(t, decoded.Shots, 1)
	shot := decoded.Shots[0]
	assert.Equal(t, types.MechanismIPAdapter, shot.ContinuityMechanismUsed)
	require.NotNil(t, shot.QualityScore)
	assert.InDelta(t, 0.87, *shot.QualityScore, 1e-9)
	require.NotNil(t, shot.GeneratedAt)
	assert.True(t, generated.Equal(*shot.GeneratedAt))
	require.NotNil(t, shot.SeedInfo)
	assert.Equal(t, int64(42), shot.SeedInfo.Seed)
	require.NotNil(t, shot.CameraAdjustments)
	require.NotNil(t, shot.CameraAdjustments.Pan)
	assert.Nil(t, shot.CameraAdjustments.Tilt)
}

func TestEncodeOmitsAbsentOptionals(t *testing.T) {
	session := &types.ContinuitySession{
		ID:        "sess-1",
		UserID:    "user-1",
		Name:      "bare",
		Shots:     []*types.ContinuityShot{{ID: "shot-1", SessionID: "sess-1", Status: types.ShotStatusDraft, CreatedAt: time.Now()}},
		Status:    types.SessionStatusActive,
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	payload, err := encodeSession(session)
	require.NoError(t, err)

	// Absent optionals must be omitted, never serialized as null.
	assert.NotContains(t, payload, "null")
	assert.NotContains(t, payload, "generatedAtMs")
	assert.NotContains(t, payload, "qualityScore")
	assert.NotContains(t, payload, "seedInfo")
	assert.NotContains(t, payload, "sceneProxy")
	assert.NotContains(t, payload, "primaryStyleReference")
}

func TestDecodeToleratesMalformedDates(t *testing.T) {
	doc := sessionDoc{
		ID:          "sess-1",
		UserID:      "user-1",
		Name:        "old",
		Status:      string(types.SessionStatusActive),
		Version:     1,
		CreatedAtMs: 0,
		UpdatedAtMs: -37,
		Shots: []shotDoc{{
			ID:          "shot-1",
			SessionID:   "sess-1",
			Status:      string(types.ShotStatusDraft),
			CreatedAtMs: 0,
		}},
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)

	before := time.Now().Add(-time.Second)
	decoded, err := decodeSession(string(data))
	require.NoError(t, err)

	// Malformed dates substitute the current time instead of failing.
	assert.True(t, decoded.CreatedAt.After(before))
	assert.True(t, decoded.UpdatedAt.After(before))
	assert.True(t, decoded.Shots[0].CreatedAt.After(before))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := decodeSession("{not json")
	assert.Error(t, err)
}

func TestRoundTripPreservesMilliseconds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		createdMs := rapid.Int64Range(1, 4_102_444_800_000).Draw(t, "createdMs")
		updatedMs := rapid.Int64Range(1, 4_102_444_800_000).Draw(t, "updatedMs")
		shotMs := rapid.Int64Range(1, 4_102_444_800_000).Draw(t, "shotMs")
		name := rapid.StringMatching(`[a-zA-Z0-9 ]{1,40}`).Draw(t, "name")
		version := rapid.Int64Range(1, 1<<40).Draw(t, "version")

		generated := time.UnixMilli(shotMs)
		session := &types.ContinuitySession{
			ID:      rapid.StringMatching(`[a-z0-9-]{8,36}`).Draw(t, "id"),
			UserID:  "user-1",
			Name:    name,
			Version: version,
			Status:  types.SessionStatusActive,
			Shots: []*types.ContinuityShot{{
				ID:          "shot-1",
				SessionID:   "sess",
				Status:      types.ShotStatusCompleted,
				CreatedAt:   time.UnixMilli(createdMs),
				GeneratedAt: &generated,
			}},
			DefaultSettings: types.DefaultSessionSettings(),
			CreatedAt:       time.UnixMilli(createdMs),
			UpdatedAt:       time.UnixMilli(updatedMs),
		}

		payload, err := encodeSession(session)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		decoded, err := decodeSession(payload)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}

		if decoded.CreatedAt.UnixMilli() != createdMs {
			t.Fatalf("created ms drifted: %d != %d", decoded.CreatedAt.UnixMilli(), createdMs)
		}
		if decoded.UpdatedAt.UnixMilli() != updatedMs {
			t.Fatalf("updated ms drifted: %d != %d", decoded.UpdatedAt.UnixMilli(), updatedMs)
		}
		if decoded.Shots[0].GeneratedAt.UnixMilli() != shotMs {
			t.Fatalf("generated ms drifted: %d != %d", decoded.Shots[0].GeneratedAt.UnixMilli(), shotMs)
		}
		if decoded.Version != version {
			t.Fatalf("version drifted: %d != %d", decoded.Version, version)
		}
		if decoded.Name != name {
			t.Fatalf("name drifted: %q != %q", decoded.Name, name)
		}
	})
}
