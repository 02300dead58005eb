// internal/actions/payloads.go
package actions

import (
	"errors"

	"github.com/jason-s-yu/holosync/internal/models"
)

// Validator is implemented by request payloads that can check their own shape before they
// are sent.
type Validator interface {
	Validate() error
}

// PlayToStagePayload puts a debut or spot unit from hand onto the stage.
type PlayToStagePayload struct {
	CardInstanceID string `json:"cardInstanceId"`
	Zone           string `json:"zone"`
}

func (p PlayToStagePayload) Validate() error {
	if p.CardInstanceID == "" {
		return errors.New("cardInstanceId is required")
	}
	if p.Zone != models.ZoneCenter && p.Zone != models.ZoneBack {
		return errors.New("zone must be center or back")
	}
	return nil
}

// PlaySupportPayload plays a support card, optionally aimed at a unit.
type PlaySupportPayload struct {
	CardInstanceID   string `json:"cardInstanceId"`
	TargetInstanceID string `json:"targetInstanceId,omitempty"`
}

func (p PlaySupportPayload) Validate() error {
	if p.CardInstanceID == "" {
		return errors.New("cardInstanceId is required")
	}
	return nil
}

// BloomPayload stacks a hand card onto a field unit.
type BloomPayload struct {
	CardInstanceID   string `json:"cardInstanceId"`
	TargetInstanceID string `json:"targetInstanceId"`
}

func (p BloomPayload) Validate() error {
	if p.CardInstanceID == "" || p.TargetInstanceID == "" {
		return errors.New("cardInstanceId and targetInstanceId are required")
	}
	return nil
}

// AttachCheerPayload moves a cheer onto a field unit.
type AttachCheerPayload struct {
	CheerInstanceID  string `json:"cheerInstanceId,omitempty"`
	TargetInstanceID string `json:"targetInstanceId"`
}

func (p AttachCheerPayload) Validate() error {
	if p.TargetInstanceID == "" {
		return errors.New("targetInstanceId is required")
	}
	return nil
}

// AttackPayload uses one art of a front-row unit against an opposing front-row unit.
type AttackPayload struct {
	AttackerInstanceID string `json:"attackerInstanceId"`
	ArtID              string `json:"artId"`
	TargetInstanceID   string `json:"targetInstanceId"`
}

func (p AttackPayload) Validate() error {
	if p.AttackerInstanceID == "" || p.TargetInstanceID == "" {
		return errors.New("attackerInstanceId and targetInstanceId are required")
	}
	if p.ArtID == "" {
		return errors.New("artId is required")
	}
	return nil
}

// DrawPayload is the turn draw; it has no fields.
type DrawPayload struct{}

// SendCheerPayload sends the top card of the cheer deck, optionally to a chosen unit.
type SendCheerPayload struct {
	TargetInstanceID string `json:"targetInstanceId,omitempty"`
}

// MoveStageHolomemPayload moves a back-row unit into an empty front-row slot.
type MoveStageHolomemPayload struct {
	InstanceID string `json:"instanceId"`
	To         string `json:"to"`
}

func (p MoveStageHolomemPayload) Validate() error {
	if p.InstanceID == "" {
		return errors.New("instanceId is required")
	}
	if p.To != models.ZoneCenter && p.To != models.ZoneCollab {
		return errors.New("to must be center or collab")
	}
	return nil
}

// ResolveDecisionPayload answers the head pending decision.
type ResolveDecisionPayload struct {
	DecisionID string   `json:"decisionId"`
	Selected   []string `json:"selectedInstanceIds"`
}

func (p ResolveDecisionPayload) Validate() error {
	if p.DecisionID == "" {
		return errors.New("decisionId is required")
	}
	return uniqueIDs(p.Selected)
}

// ResolveInteractionPayload answers the head pending interaction.
type ResolveInteractionPayload struct {
	InteractionID string   `json:"interactionId"`
	Selected      []string `json:"selectedInstanceIds,omitempty"`
	OptionID      string   `json:"optionId,omitempty"`
}

func (p ResolveInteractionPayload) Validate() error {
	if p.InteractionID == "" {
		return errors.New("interactionId is required")
	}
	return uniqueIDs(p.Selected)
}

// EndTurnPayload has no fields.
type EndTurnPayload struct{}

// JoinPayload carries a room code.
type JoinPayload struct {
	Code string `json:"code"`
}

func (p JoinPayload) Validate() error {
	if p.Code == "" {
		return errors.New("room code is required")
	}
	return nil
}

func uniqueIDs(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return errors.New("selection contains an empty id")
		}
		if _, dup := seen[id]; dup {
			return errors.New("selection contains duplicates")
		}
		seen[id] = struct{}{}
	}
	return nil
}
