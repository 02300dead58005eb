package models

// CandidateCard is a selectable card inside a pending decision or interaction, carrying the
// visual and battle metadata needed to render it without another lookup.
type CandidateCard struct {
	InstanceID string       `json:"instanceId"`
	TemplateID string       `json:"templateId"`
	Name       string       `json:"name,omitempty"`
	ImageURL   string       `json:"imageUrl,omitempty"`
	Zone       string       `json:"zone,omitempty"`
	Battle     *BattleAttrs `json:"battle,omitempty"`
}

// PendingDecision is a server-declared choice attached to an already executed action.
type PendingDecision struct {
	ID         string          `json:"id"`
	Effect     string          `json:"effect"`
	PlayerID   string          `json:"playerId,omitempty"`
	MinSelect  int             `json:"minSelect"`
	MaxSelect  int             `json:"maxSelect"`
	Candidates []CandidateCard `json:"candidates"`
}

// PlacementOption is one placement choice offered by an interaction (e.g. deck top or bottom).
type PlacementOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// PendingInteraction is a mandatory confirmation that suspends play until answered.
type PendingInteraction struct {
	ID         string            `json:"id"`
	Kind       string            `json:"kind"`
	Title      string            `json:"title,omitempty"`
	Message    string            `json:"message,omitempty"`
	MinSelect  int               `json:"minSelect"`
	MaxSelect  int               `json:"maxSelect"`
	Candidates []CandidateCard   `json:"candidates,omitempty"`
	Options    []PlacementOption `json:"options,omitempty"`
}

// AcknowledgeOnly reports whether the interaction needs no selection at all.
func (p *PendingInteraction) AcknowledgeOnly() bool {
	return len(p.Candidates) == 0 && len(p.Options) == 0
}
