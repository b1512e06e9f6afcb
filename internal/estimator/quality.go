package estimator

// QualityScore is the engine's track count as a percentage of the track
// budget, always within [0, 100].
type QualityScore int

// NormalizeQuality converts a raw track count into a QualityScore.
func NormalizeQuality(raw, maxTracks int) QualityScore {
	if raw <= 0 || maxTracks <= 0 {
		return 0
	}
	if raw >= maxTracks {
		return 100
	}
	return QualityScore(int64(raw) * 100 / int64(maxTracks))
}
