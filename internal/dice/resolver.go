package dice

import (
	"fmt"

	"github.com/roach88/diceroll/internal/wager"
)

// Outcome names which side a roll favoured.
type Outcome string

const (
	OutcomeDraw   Outcome = "draw"
	OutcomeVendor Outcome = "vendor"
	OutcomePlayer Outcome = "player"
)

// Roll is the result of one resolution.
type Roll struct {
	Sides   uint8   `json:"sides"`
	Vendor  uint8   `json:"vendor"`
	Player  uint8   `json:"player"`
	Outcome Outcome `json:"outcome"`
}

// WinnerIndex returns the participant index of the winner (0 vendor,
// 1 player). ok is false for a draw.
func (r Roll) WinnerIndex() (idx int, ok bool) {
	switch r.Outcome {
	case OutcomeVendor:
		return 0, true
	case OutcomePlayer:
		return 1, true
	default:
		return 0, false
	}
}

// Status maps the roll onto the session status for the given pair.
func (r Roll) Status(key wager.Key) wager.Status {
	idx, ok := r.WinnerIndex()
	if !ok {
		return wager.Draw()
	}
	return wager.Finished(key.Participants()[idx])
}

// Resolve draws the vendor's die then the player's die from src and compares
// them. Each byte is reduced modulo sides+1, so faces run 0..=sides.
//
// The reduction keeps the small bias of byte modulo for side counts where
// sides+1 does not divide 256; roll values stay compatible with historical
// results.
func Resolve(sides uint8, src Source) (Roll, error) {
	if err := wager.ValidateSides(int(sides)); err != nil {
		return Roll{}, err
	}
	mod := sides + 1

	v, err := src.Next()
	if err != nil {
		return Roll{}, fmt.Errorf("draw vendor die: %w", err)
	}
	p, err := src.Next()
	if err != nil {
		return Roll{}, fmt.Errorf("draw player die: %w", err)
	}

	r := Roll{Sides: sides, Vendor: v % mod, Player: p % mod}
	switch {
	case r.Vendor == r.Player:
		r.Outcome = OutcomeDraw
	case r.Player > r.Vendor:
		r.Outcome = OutcomePlayer
	default:
		r.Outcome = OutcomeVendor
	}
	return r, nil
}

// Recorded rebuilds the roll stored on a settled session.
func Recorded(s *wager.Session) (Roll, error) {
	if s.Phase != wager.PhaseSettled {
		return Roll{}, &wager.Error{
			Code:    wager.ErrCodeInvalidArgument,
			Message: fmt.Sprintf("session is %s, not settled", s.Phase),
			Session: s.ID,
		}
	}
	r := Roll{Sides: s.Sides, Vendor: s.VendorRoll, Player: s.PlayerRoll, Outcome: OutcomeDraw}
	if !s.Status.IsDraw() {
		r.Outcome = OutcomePlayer
		if s.Status.Winner == s.Vendor() {
			r.Outcome = OutcomeVendor
		}
	}
	return r, nil
}
