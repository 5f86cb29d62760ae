package chathub

import (
	"errors"

	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/models"

	"go.uber.org/zap"
)

// findMatch runs one match pass for a Waiting requester: the best human
// candidate if any, else the synthetic partner, else a waiting notice.
// Calling it for a requester that is not Waiting does nothing, so repeated
// calls never open a second room.
func (m *ManagerService) findMatch(requesterID string) {
	requester, err := m.sessions.Lookup(requesterID)
	if err != nil || requester.State != models.StateWaiting {
		return
	}

	if candidateID, ok := m.bestCandidate(requester); ok {
		err := m.matchPair(requester, candidateID)
		if err == nil {
			return
		}
		if !errors.Is(err, ErrMatchRace) {
			m.logger.Error("match failed", zap.String("session_id", requesterID), zap.Error(err))
		}
	}

	if m.opts.SyntheticPartner && models.MutuallyCompatible(requester.Profile, syntheticProfile()) {
		m.matchSynthetic(requester)
		return
	}

	m.send(requesterID, models.OutboundEvent{
		Type: models.EventWaiting,
		Payload: models.WaitingPayload{
			Message: m.localizer.GetString(requester.Profile.Language, localization.KeyWaitingForMatch),
			Preferences: models.Preferences{
				LookingFor: requester.Profile.LookingFor,
				Interests:  requester.Profile.Interests,
			},
		},
	})
}

// bestCandidate scans the waiting pool in order and returns the mutually
// compatible candidate with the most shared interests. Only a strictly
// greater score replaces the current best, so the first candidate reaching
// the maximum wins. Candidates sharing no interests are still eligible.
func (m *ManagerService) bestCandidate(requester models.ParticipantSession) (string, bool) {
	best, bestScore := "", -1
	for id := range m.waiting.All() {
		if id == requester.SessionID {
			continue
		}
		candidate, ok := m.sessions.peek(id)
		if !ok || candidate.State != models.StateWaiting {
			continue
		}
		if !models.MutuallyCompatible(requester.Profile, candidate.Profile) {
			continue
		}
		score := len(models.CommonInterests(requester.Profile.Interests, candidate.Profile.Interests))
		if score > bestScore {
			best, bestScore = id, score
		}
	}
	return best, bestScore >= 0
}

// matchPair commits a human match. Both sessions leave the waiting pool
// before either side is notified.
func (m *ManagerService) matchPair(a models.ParticipantSession, candidateID string) error {
	b, err := m.sessions.Lookup(candidateID)
	if err != nil || b.State != models.StateWaiting || !m.waiting.Contains(candidateID) {
		return ErrMatchRace
	}

	m.leaveWaiting(a.SessionID)
	m.leaveWaiting(b.SessionID)
	room := m.createRoom(RealPeer(a.SessionID), RealPeer(b.SessionID))

	m.send(a.SessionID, matchedEvent(room.ID, a.Profile, b.SessionID, b.Profile, false))
	m.send(b.SessionID, matchedEvent(room.ID, b.Profile, a.SessionID, a.Profile, false))
	m.metrics.MatchMade("human")
	return nil
}

// matchSynthetic pairs a with a new synthetic partner and schedules its
// greeting.
func (m *ManagerService) matchSynthetic(a models.ParticipantSession) {
	m.leaveWaiting(a.SessionID)
	bot := SyntheticPeer()
	room := m.createRoom(RealPeer(a.SessionID), bot)

	m.send(a.SessionID, matchedEvent(room.ID, a.Profile, bot.SessionID, syntheticProfile(), true))
	m.greetings.schedule(room.ID)
	m.metrics.MatchMade("synthetic")
}

// matchedEvent builds the matched notice for receiver. Common interests
// follow the receiver's order.
func matchedEvent(roomID string, receiver models.Profile, partnerID string, partner models.Profile, synthetic bool) models.OutboundEvent {
	return models.OutboundEvent{
		Type:   models.EventMatched,
		RoomID: roomID,
		Payload: models.MatchedPayload{
			RoomID: roomID,
			Partner: models.PartnerView{
				SessionID:       partnerID,
				DisplayName:     partner.DisplayName,
				AvatarRef:       partner.AvatarRef,
				Gender:          partner.Gender,
				CommonInterests: models.CommonInterests(receiver.Interests, partner.Interests),
				IsSynthetic:     synthetic,
			},
		},
	}
}
