// internal/actions/turn.go
package actions

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jason-s-yu/holosync/internal/api"
	"github.com/jason-s-yu/holosync/internal/gate"
	"github.com/jason-s-yu/holosync/internal/i18n"
	"github.com/jason-s-yu/holosync/internal/models"
	"github.com/jason-s-yu/holosync/internal/store"
	"github.com/jason-s-yu/holosync/internal/turnusage"
)

// builder checks local legality against the current view and returns the request payload.
type builder func(v store.View, me models.PlayerState) (any, error)

// act is the shared path of every in-match action: acquire the gate for mode, run build,
// then submit the payload as kind.
func (r *Resolver) act(ctx context.Context, mode gate.Mode, kind string, build builder) (*models.MatchSummary, error) {
	release, err := r.acquire(mode)
	if err != nil {
		r.recordRefusal(kind, err)
		return nil, err
	}
	defer release()

	v, me, err := r.matchState()
	if err != nil {
		r.recordRefusal(kind, err)
		return nil, err
	}
	payload, err := build(v, me)
	if err != nil {
		r.recordRefusal(kind, err)
		return nil, err
	}

	matchID := v.Match.ID
	return r.dispatch(ctx, release, matchID, kind, payload, func(ctx context.Context) (*models.MatchSummary, error) {
		return r.remote.SubmitAction(ctx, matchID, kind, payload)
	})
}

// card resolves the catalog entry of a hand card.
func (r *Resolver) card(ctx context.Context, inst models.ZoneCardInstance) (models.CardInfo, error) {
	if r.cards == nil {
		return models.CardInfo{}, r.illegal("card catalog unavailable")
	}
	info, ok := r.cards.Lookup(ctx, inst.TemplateID)
	if !ok {
		return models.CardInfo{}, r.illegal(fmt.Sprintf("no catalog entry for %s", inst.TemplateID))
	}
	return info, nil
}

func (r *Resolver) handCard(ctx context.Context, me models.PlayerState, instanceID string) (models.ZoneCardInstance, models.CardInfo, error) {
	inst, ok := me.FindHand(instanceID)
	if !ok {
		return inst, models.CardInfo{}, r.illegal(fmt.Sprintf("%s is not in hand", instanceID))
	}
	info, err := r.card(ctx, inst)
	return inst, info, err
}

// stageable reports whether a card may be played directly onto the stage.
func stageable(info models.CardInfo) bool {
	if info.Type != models.CardTypeHolomem || info.Rank == nil {
		return false
	}
	return *info.Rank == models.RankDebut || *info.Rank == models.RankSpot
}

// PlayToStage puts a debut or spot unit from hand into the center if it is empty,
// otherwise onto the back row.
func (r *Resolver) PlayToStage(ctx context.Context, cardInstanceID string) (*models.MatchSummary, error) {
	return r.act(ctx, gate.ModeTurn, api.KindPlayToStage, func(v store.View, me models.PlayerState) (any, error) {
		_, info, err := r.handCard(ctx, me, cardInstanceID)
		if err != nil {
			return nil, err
		}
		if !stageable(info) {
			return nil, r.illegal(fmt.Sprintf("%s is not a stageable unit", info.Name))
		}
		zone := models.ZoneCenter
		if me.Center != nil {
			if len(me.Back) >= MaxBackSlots {
				return nil, r.illegal(fmt.Sprintf("back row is full (%d/%d)", len(me.Back), MaxBackSlots))
			}
			zone = models.ZoneBack
		}
		return PlayToStagePayload{CardInstanceID: cardInstanceID, Zone: zone}, nil
	})
}

// PlaySupport plays a support card from hand. targetInstanceID is optional and must name a
// unit on either stage when set.
func (r *Resolver) PlaySupport(ctx context.Context, cardInstanceID, targetInstanceID string) (*models.MatchSummary, error) {
	return r.act(ctx, gate.ModeTurn, api.KindPlaySupport, func(v store.View, me models.PlayerState) (any, error) {
		_, info, err := r.handCard(ctx, me, cardInstanceID)
		if err != nil {
			return nil, err
		}
		if info.Type != models.CardTypeSupport {
			return nil, r.illegal(fmt.Sprintf("%s is not a support card", info.Name))
		}
		if targetInstanceID != "" && !onAnyStage(v.Snapshot, targetInstanceID) {
			return nil, r.illegal(fmt.Sprintf("%s is not on stage", targetInstanceID))
		}
		return PlaySupportPayload{CardInstanceID: cardInstanceID, TargetInstanceID: targetInstanceID}, nil
	})
}

// Bloom stacks a hand unit onto a same-name field unit one rank below it. With an empty
// targetInstanceID the single eligible target is used.
func (r *Resolver) Bloom(ctx context.Context, cardInstanceID, targetInstanceID string) (*models.MatchSummary, error) {
	return r.act(ctx, gate.ModeTurn, api.KindBloom, func(v store.View, me models.PlayerState) (any, error) {
		_, info, err := r.handCard(ctx, me, cardInstanceID)
		if err != nil {
			return nil, err
		}
		if info.Type != models.CardTypeHolomem {
			return nil, r.illegal(fmt.Sprintf("%s cannot bloom", info.Name))
		}

		var field []FieldUnit
		for _, inst := range me.FieldUnits() {
			unit := FieldUnit{Instance: inst, Info: models.CardInfo{TemplateID: inst.TemplateID}, Unresolved: true}
			if r.cards != nil {
				if ci, ok := r.cards.Lookup(ctx, inst.TemplateID); ok {
					unit.Info, unit.Unresolved = ci, false
				}
			}
			field = append(field, unit)
		}
		if len(field) == 0 {
			return nil, r.illegal("no unit on stage")
		}

		eligible, rejections := BloomTargets(info, field)
		if len(eligible) == 0 {
			details := make([]string, len(rejections))
			for i, rej := range rejections {
				details[i] = rej.String()
			}
			return nil, r.illegal(details...)
		}

		if targetInstanceID == "" {
			if len(eligible) > 1 {
				return nil, r.illegal(fmt.Sprintf("choose one of %d eligible targets", len(eligible)))
			}
			targetInstanceID = eligible[0].Instance.InstanceID
		}
		if !slices.ContainsFunc(eligible, func(u FieldUnit) bool { return u.Instance.InstanceID == targetInstanceID }) {
			for _, rej := range rejections {
				if rej.InstanceID == targetInstanceID {
					return nil, r.illegal(rej.String())
				}
			}
			return nil, r.illegal(fmt.Sprintf("%s is not on stage", targetInstanceID))
		}
		return BloomPayload{CardInstanceID: cardInstanceID, TargetInstanceID: targetInstanceID}, nil
	})
}

// AttachCheer moves a cheer onto one of the local player's units. With a single unit on
// stage the target may be left empty.
func (r *Resolver) AttachCheer(ctx context.Context, cheerInstanceID, targetInstanceID string) (*models.MatchSummary, error) {
	return r.act(ctx, gate.ModeTurn, api.KindAttachCheer, func(v store.View, me models.PlayerState) (any, error) {
		units := me.FieldUnits()
		if len(units) == 0 {
			return nil, r.illegal("no unit on stage can receive a cheer")
		}
		if targetInstanceID == "" && len(units) == 1 {
			targetInstanceID = units[0].InstanceID
		}
		if targetInstanceID != "" {
			if _, ok := me.FindField(targetInstanceID); !ok {
				return nil, r.illegal(fmt.Sprintf("%s is not on your stage", targetInstanceID))
			}
		}
		return AttachCheerPayload{CheerInstanceID: cheerInstanceID, TargetInstanceID: targetInstanceID}, nil
	})
}

// Attack uses artID of a front-row unit against an opposing front-row unit.
func (r *Resolver) Attack(ctx context.Context, attackerInstanceID, artID, targetInstanceID string) (*models.MatchSummary, error) {
	return r.act(ctx, gate.ModeTurn, api.KindAttack, func(v store.View, me models.PlayerState) (any, error) {
		if !inFront(me, attackerInstanceID) {
			return nil, r.illegal(fmt.Sprintf("%s is not in your center or collab position", attackerInstanceID))
		}
		opp, ok := opponent(v.Snapshot, r.player.PlayerID())
		if !ok || !inFront(opp, targetInstanceID) {
			return nil, r.illegal(fmt.Sprintf("%s is not an opposing center or collab unit", targetInstanceID))
		}
		return AttackPayload{AttackerInstanceID: attackerInstanceID, ArtID: artID, TargetInstanceID: targetInstanceID}, nil
	})
}

// Draw is the once-per-turn draw.
func (r *Resolver) Draw(ctx context.Context) (*models.MatchSummary, error) {
	return r.act(ctx, gate.ModeTurn, api.KindDraw, func(v store.View, me models.PlayerState) (any, error) {
		if turnusage.Derive(v.Snapshot, r.player.PlayerID()).DrawUsed {
			return nil, r.illegal("already drew this turn")
		}
		if me.DeckCount == 0 {
			return nil, r.illegal("deck is empty")
		}
		return DrawPayload{}, nil
	})
}

// SendCheer sends the top of the cheer deck, at most once per turn.
func (r *Resolver) SendCheer(ctx context.Context, targetInstanceID string) (*models.MatchSummary, error) {
	return r.act(ctx, gate.ModeTurn, api.KindSendCheer, func(v store.View, me models.PlayerState) (any, error) {
		if turnusage.Derive(v.Snapshot, r.player.PlayerID()).CheerUsed {
			return nil, r.illegal("cheer already sent this turn")
		}
		if me.CheerDeckCount == 0 {
			return nil, r.illegal("cheer deck is empty")
		}
		if targetInstanceID != "" {
			if _, ok := me.FindField(targetInstanceID); !ok {
				return nil, r.illegal(fmt.Sprintf("%s is not on your stage", targetInstanceID))
			}
		}
		return SendCheerPayload{TargetInstanceID: targetInstanceID}, nil
	})
}

// MoveStageHolomem moves a back-row unit into an empty center or collab slot. When both are
// occupied nothing is sent and the refusal carries ReasonInspectOnly. An empty to picks the
// center first.
func (r *Resolver) MoveStageHolomem(ctx context.Context, instanceID, to string) (*models.MatchSummary, error) {
	return r.act(ctx, gate.ModeTurn, api.KindMoveStageHolomem, func(v store.View, me models.PlayerState) (any, error) {
		if me.Center != nil && me.Collab != nil {
			return nil, r.refuse(ReasonInspectOnly, nil)
		}
		if !slices.ContainsFunc(me.Back, func(c models.ZoneCardInstance) bool { return c.InstanceID == instanceID }) {
			return nil, r.illegal(fmt.Sprintf("%s is not in the back row", instanceID))
		}
		switch to {
		case "":
			to = models.ZoneCenter
			if me.Center != nil {
				to = models.ZoneCollab
			}
		case models.ZoneCenter:
			if me.Center != nil {
				return nil, r.illegal("center is occupied")
			}
		case models.ZoneCollab:
			if me.Collab != nil {
				return nil, r.illegal("collab is occupied")
			}
		}
		return MoveStageHolomemPayload{InstanceID: instanceID, To: to}, nil
	})
}

// ResolveDecision answers the head pending decision with the selected candidate ids.
func (r *Resolver) ResolveDecision(ctx context.Context, decisionID string, selected []string) (*models.MatchSummary, error) {
	return r.act(ctx, gate.ModeResolveDecision, api.KindResolveDecision, func(v store.View, me models.PlayerState) (any, error) {
		d, _, _ := gate.Interrupt(v.Snapshot)
		if d == nil {
			return nil, r.illegal("no decision is pending")
		}
		if d.ID != decisionID {
			return nil, r.illegal(fmt.Sprintf("decision %s is no longer pending", decisionID))
		}
		if msg := checkSelection(d.MinSelect, d.MaxSelect, d.Candidates, selected); msg != "" {
			return nil, r.illegal(msg)
		}
		return ResolveDecisionPayload{DecisionID: decisionID, Selected: selected}, nil
	})
}

// ResolveInteraction answers the head pending interaction. Acknowledge-only interactions
// take no selection.
func (r *Resolver) ResolveInteraction(ctx context.Context, interactionID string, selected []string, optionID string) (*models.MatchSummary, error) {
	return r.act(ctx, gate.ModeResolveInteraction, api.KindResolveInteraction, func(v store.View, me models.PlayerState) (any, error) {
		_, in, _ := gate.Interrupt(v.Snapshot)
		if in == nil {
			return nil, r.illegal("no interaction is pending")
		}
		if in.ID != interactionID {
			return nil, r.illegal(fmt.Sprintf("interaction %s is no longer pending", interactionID))
		}
		if in.AcknowledgeOnly() {
			return ResolveInteractionPayload{InteractionID: interactionID}, nil
		}
		if len(in.Options) > 0 && !slices.ContainsFunc(in.Options, func(o models.PlacementOption) bool { return o.ID == optionID }) {
			return nil, r.illegal(fmt.Sprintf("%q is not an offered option", optionID))
		}
		if len(in.Candidates) > 0 {
			if msg := checkSelection(in.MinSelect, in.MaxSelect, in.Candidates, selected); msg != "" {
				return nil, r.illegal(msg)
			}
		} else if len(selected) > 0 {
			return nil, r.illegal("this interaction takes no card selection")
		}
		return ResolveInteractionPayload{InteractionID: interactionID, Selected: selected, OptionID: optionID}, nil
	})
}

// EndTurn ends the local player's turn. It is refused while a mandatory once-per-turn action
// that is still possible has not been taken; the refusal lists the missing actions.
func (r *Resolver) EndTurn(ctx context.Context) (*models.MatchSummary, error) {
	return r.act(ctx, gate.ModeTurn, api.KindEndTurn, func(v store.View, me models.PlayerState) (any, error) {
		if missing := r.MissingTurnActions(v.Snapshot); len(missing) > 0 {
			err := &RefusalError{
				Reason:  ReasonIllegal,
				Message: r.printer.Sprintf(i18n.KeyMissingActions, strings.Join(missing, r.printer.Sprintf(i18n.KeyListSeparator))),
				Details: missing,
			}
			r.store.SetError(err.Message)
			return nil, err
		}
		return EndTurnPayload{}, nil
	})
}

// MissingTurnActions returns the localized labels of the once-per-turn actions the local
// player is still eligible for but has not taken.
func (r *Resolver) MissingTurnActions(snap *models.GameSnapshot) []string {
	playerID := r.player.PlayerID()
	used := turnusage.Derive(snap, playerID)
	eligible := turnusage.EligibleFor(snap, playerID)

	var missing []string
	if eligible.Draw && !used.DrawUsed {
		missing = append(missing, r.printer.Sprintf(i18n.KeyActionDraw))
	}
	if eligible.Cheer && !used.CheerUsed {
		missing = append(missing, r.printer.Sprintf(i18n.KeyActionSendCheer))
	}
	return missing
}

// Concede forfeits the active match.
func (r *Resolver) Concede(ctx context.Context) (*models.MatchSummary, error) {
	release, err := r.acquire(gate.ModeConcede)
	if err != nil {
		r.recordRefusal(kindConcede, err)
		return nil, err
	}
	defer release()

	// The match may have been left between the gate check and here.
	m := r.store.Match()
	if m == nil {
		err := r.refuse(gate.ReasonNotStarted, nil)
		r.recordRefusal(kindConcede, err)
		return nil, err
	}
	matchID := m.ID
	return r.dispatch(ctx, release, matchID, kindConcede, nil, func(ctx context.Context) (*models.MatchSummary, error) {
		return r.remote.Concede(ctx, matchID)
	})
}

// checkSelection validates a candidate selection against [min, max]. At least one card must
// be picked whenever candidates exist; a max of zero means "up to all candidates".
func checkSelection(minSel, maxSel int, candidates []models.CandidateCard, selected []string) string {
	lo, hi := minSel, maxSel
	if len(candidates) > 0 && lo < 1 {
		lo = 1
	}
	if hi <= 0 || hi > len(candidates) {
		hi = len(candidates)
	}
	if len(selected) < lo || len(selected) > hi {
		return fmt.Sprintf("select between %d and %d cards, got %d", lo, hi, len(selected))
	}
	for _, id := range selected {
		if !slices.ContainsFunc(candidates, func(c models.CandidateCard) bool { return c.InstanceID == id }) {
			return fmt.Sprintf("%s is not a candidate", id)
		}
	}
	return ""
}

func inFront(p models.PlayerState, instanceID string) bool {
	return (p.Center != nil && p.Center.InstanceID == instanceID) ||
		(p.Collab != nil && p.Collab.InstanceID == instanceID)
}

func opponent(snap *models.GameSnapshot, playerID string) (models.PlayerState, bool) {
	if snap == nil {
		return models.PlayerState{}, false
	}
	for id, p := range snap.Players {
		if id != playerID {
			return p, true
		}
	}
	return models.PlayerState{}, false
}

func onAnyStage(snap *models.GameSnapshot, instanceID string) bool {
	if snap == nil {
		return false
	}
	for _, p := range snap.Players {
		if _, ok := p.FindField(instanceID); ok {
			return true
		}
	}
	return false
}
