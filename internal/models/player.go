package models

// Zone names as reported by the server.
const (
	ZoneCenter  = "center"
	ZoneCollab  = "collab"
	ZoneBack    = "back"
	ZoneHand    = "hand"
	ZoneDeck    = "deck"
	ZoneCheer   = "cheer_deck"
	ZoneArchive = "archive"
	ZoneLife    = "life"
)

// BattleAttrs holds the optional runtime combat state of a unit on the field.
type BattleAttrs struct {
	HP               int            `json:"hp"`
	MaxHP            int            `json:"maxHp"`
	Damage           int            `json:"damage"`
	Cheers           map[string]int `json:"cheers,omitempty"` // color -> attached count
	StackDepth       int            `json:"stackDepth"`
	AttachedSupports int            `json:"attachedSupports"`
}

// ZoneCardInstance is a single physical card. InstanceID is stable for the card's lifetime
// on the field; the instance belongs to exactly one zone of one player at a time.
type ZoneCardInstance struct {
	InstanceID string       `json:"instanceId"`
	TemplateID string       `json:"templateId"`
	Zone       string       `json:"zone"`
	FaceUp     bool         `json:"faceUp"`
	Battle     *BattleAttrs `json:"battle,omitempty"`
}

// PlayerState is one player's board. Hidden zones only carry counts.
type PlayerState struct {
	PlayerID string             `json:"playerId"`
	Center   *ZoneCardInstance  `json:"center,omitempty"`
	Collab   *ZoneCardInstance  `json:"collab,omitempty"`
	Back     []ZoneCardInstance `json:"back"`
	Hand     []ZoneCardInstance `json:"hand"`

	HandCount      int `json:"handCount"`
	DeckCount      int `json:"deckCount"`
	CheerDeckCount int `json:"cheerDeckCount"`
	ArchiveCount   int `json:"archiveCount"`
	HoloPowerCount int `json:"holoPowerCount"`
	LifeCount      int `json:"lifeCount"`
}

// FieldUnits returns the units currently on stage, center first, then collab, then back row.
func (p *PlayerState) FieldUnits() []ZoneCardInstance {
	var units []ZoneCardInstance
	if p.Center != nil {
		units = append(units, *p.Center)
	}
	if p.Collab != nil {
		units = append(units, *p.Collab)
	}
	return append(units, p.Back...)
}

// FindHand returns the hand card with the given instance id.
func (p *PlayerState) FindHand(instanceID string) (ZoneCardInstance, bool) {
	for _, c := range p.Hand {
		if c.InstanceID == instanceID {
			return c, true
		}
	}
	return ZoneCardInstance{}, false
}

// FindField returns the on-stage unit with the given instance id.
func (p *PlayerState) FindField(instanceID string) (ZoneCardInstance, bool) {
	for _, c := range p.FieldUnits() {
		if c.InstanceID == instanceID {
			return c, true
		}
	}
	return ZoneCardInstance{}, false
}
