package continuity

import (
	"github.com/bharm16/reelflow/providers"
	"github.com/bharm16/reelflow/types"
)

// Per-second credit pricing by provider. Retried attempts are billed: the
// provider renders a full video on every attempt regardless of the gate
// verdict.
var perSecondCredits = map[string]float64{
	providers.ProviderRunway: 5.0,
	providers.ProviderLuma:   4.0,
	providers.ProviderPika:   3.0,
}

// Resolution multipliers applied on top of the per-second rate.
var resolutionMultiplier = map[string]float64{
	"480p":  0.5,
	"720p":  1.0,
	"1080p": 2.0,
	"4k":    4.0,
}

const defaultShotSeconds = 5.0

// EstimateShotCost returns the credit cost of generating one shot,
// including billed retry attempts. Unknown providers cost zero; unknown
// resolutions use the 720p rate.
func EstimateShotCost(provider, resolution string, durationSeconds float64, attempts int) float64 {
	rate, ok := perSecondCredits[provider]
	if !ok {
		return 0
	}
	if durationSeconds <= 0 {
		durationSeconds = defaultShotSeconds
	}
	if attempts < 1 {
		attempts = 1
	}

	mult, ok := resolutionMultiplier[resolution]
	if !ok {
		mult = 1.0
	}

	return rate * durationSeconds * mult * float64(attempts)
}

// SessionCreditUsage sums the credits consumed by a session's shots that
// reached a provider. Draft shots and shots that failed locally before any
// provider call consume nothing.
func SessionCreditUsage(session *types.ContinuitySession) float64 {
	if session == nil {
		return 0
	}

	total := 0.0
	for _, shot := range session.Shots {
		if shot.Status != types.ShotStatusCompleted && shot.Status != types.ShotStatusFailed {
			continue
		}
		// Locally failed shots never reached a provider.
		if shot.Status == types.ShotStatusFailed && shot.VideoAssetID == "" && shot.RetryCount == 0 {
			continue
		}
		provider := providers.FromModel(shot.ModelID)
		total += EstimateShotCost(provider, session.DefaultSettings.Resolution, defaultShotSeconds, shot.RetryCount+1)
	}
	return total
}
