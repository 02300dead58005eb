package models

// Card types from the catalog.
const (
	CardTypeOshi    = "OSHI"
	CardTypeHolomem = "HOLOMEM"
	CardTypeSupport = "SUPPORT"
	CardTypeCheer   = "CHEER"
)

// Rank values. Debut units start at RankDebut and bloom one level at a time.
// RankSpot marks the spot tier, which is stageable but never blooms.
const (
	RankDebut  = 0
	RankFirst  = 1
	RankSecond = 2
	RankSpot   = -1
)

// CardInfo is the static catalog metadata for a card template (GET /cards/{id}).
type CardInfo struct {
	TemplateID string `json:"id"`
	Name       string `json:"name"`
	ImageURL   string `json:"imageUrl,omitempty"`
	Type       string `json:"type"`

	// Rank is nil when the catalog has no rank metadata for the template.
	Rank *int `json:"rank,omitempty"`
}

// IntPtr is a small helper for building CardInfo literals.
func IntPtr(v int) *int { return &v }
