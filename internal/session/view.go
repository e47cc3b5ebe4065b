package session

import (
	"time"

	"github.com/hexark/planning-poker/internal/domain"
)

// RoomView is the per-viewer read model of a room. It never leaks a
// hidden vote value: until reveal only the Voted flag and the viewer's
// own vote are filled in.
type RoomView struct {
	ID                domain.RoomID          `json:"id"`
	Name              string                 `json:"name"`
	CreatedAt         time.Time              `json:"createdAt"`
	Participants      []ParticipantView      `json:"participants"`
	CurrentEstimate   *RoundView             `json:"currentEstimate,omitempty"`
	PreviousEstimates []domain.ArchivedRound `json:"previousEstimates"`
}

type ParticipantView struct {
	ID       domain.ParticipantID `json:"id"`
	Name     string               `json:"name"`
	JoinedAt time.Time            `json:"joinedAt"`
	Voted    bool                 `json:"voted"`
	Vote     string               `json:"vote,omitempty"`
}

type RoundView struct {
	ID       domain.RoundID `json:"id"`
	Title    string         `json:"title"`
	Revealed bool           `json:"revealed"`
}

func project(room *domain.Room, viewer domain.ParticipantID) *RoomView {
	view := &RoomView{
		ID:                room.ID,
		Name:              room.Name,
		CreatedAt:         room.CreatedAt,
		Participants:      make([]ParticipantView, 0, len(room.Participants)),
		PreviousEstimates: room.History,
	}
	if view.PreviousEstimates == nil {
		view.PreviousEstimates = []domain.ArchivedRound{}
	}

	// A room without a round behaves like one with an empty open round:
	// nobody has voted and there is nothing to hide.
	round := room.Current
	if round != nil {
		view.CurrentEstimate = &RoundView{ID: round.ID, Title: round.Title, Revealed: round.Revealed}
	}

	for _, p := range room.Participants {
		pv := ParticipantView{ID: p.ID, Name: p.Name, JoinedAt: p.JoinedAt}
		if round != nil {
			if vote, ok := round.Votes[p.ID]; ok {
				pv.Voted = true
				if round.Revealed || p.ID == viewer {
					pv.Vote = vote.Estimate
				}
			}
		}
		view.Participants = append(view.Participants, pv)
	}
	return view
}
