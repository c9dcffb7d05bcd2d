package types

import "time"

// SeedInfo records the random seed a provider used for a generation, so
// later shots can bias toward visual similarity by reusing it. Seeds are
// not portable across providers: inheritance requires Provider to equal the
// target provider exactly.
type SeedInfo struct {
	Seed        int64     `json:"seed"`
	Provider    string    `json:"provider"`
	ModelID     string    `json:"model_id"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// InheritableBy reports whether the seed may be inherited by a generation
// on the given provider. This is the single portability check; provider
// naming changes only need to touch this method.
func (s *SeedInfo) InheritableBy(targetProvider string) bool {
	return s != nil && s.Provider == targetProvider
}
