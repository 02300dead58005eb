// internal/mockserver/cards.go
package mockserver

import "github.com/jason-s-yu/holosync/internal/models"

// builtinCards is the small catalog served by GET /cards/{id}. Starting boards and draws
// are dealt from it.
var builtinCards = map[string]models.CardInfo{
	"hSD01-001": {TemplateID: "hSD01-001", Name: "Tokino Sora", Type: models.CardTypeOshi},
	"hSD01-003": {TemplateID: "hSD01-003", Name: "Tokino Sora", Type: models.CardTypeHolomem, Rank: models.IntPtr(models.RankDebut)},
	"hSD01-005": {TemplateID: "hSD01-005", Name: "Tokino Sora", Type: models.CardTypeHolomem, Rank: models.IntPtr(models.RankFirst)},
	"hSD01-006": {TemplateID: "hSD01-006", Name: "Tokino Sora", Type: models.CardTypeHolomem, Rank: models.IntPtr(models.RankSecond)},
	"hSD01-007": {TemplateID: "hSD01-007", Name: "IRyS", Type: models.CardTypeHolomem, Rank: models.IntPtr(models.RankDebut)},
	"hSD01-008": {TemplateID: "hSD01-008", Name: "AZKi", Type: models.CardTypeHolomem, Rank: models.IntPtr(models.RankDebut)},
	"hSD01-009": {TemplateID: "hSD01-009", Name: "AZKi", Type: models.CardTypeHolomem, Rank: models.IntPtr(models.RankFirst)},
	"hSD01-014": {TemplateID: "hSD01-014", Name: "Amane Kanata", Type: models.CardTypeHolomem, Rank: models.IntPtr(models.RankSpot)},
	"hSD01-016": {TemplateID: "hSD01-016", Name: "Harusaki Nodoka", Type: models.CardTypeSupport},
	"hSD01-017": {TemplateID: "hSD01-017", Name: "Mane-chan", Type: models.CardTypeSupport},
	"hY01-001":  {TemplateID: "hY01-001", Name: "White Cheer", Type: models.CardTypeCheer},
	"hY02-001":  {TemplateID: "hY02-001", Name: "Green Cheer", Type: models.CardTypeCheer},
}

// drawOrder is the repeating sequence cards are drawn in.
var drawOrder = []string{
	"hSD01-003", "hSD01-005", "hSD01-008", "hSD01-016", "hSD01-009",
	"hSD01-006", "hSD01-007", "hSD01-014", "hSD01-017",
}

const (
	startingHand      = 5
	startingDeck      = 40
	startingCheerDeck = 20
	startingLife      = 5
)
