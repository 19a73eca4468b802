package wager

import (
	"math"
	"time"
)

// Side count bounds. Each die is reduced modulo sides+1, which must fit the
// 8-bit draw, so 255 is excluded.
const (
	MinSides = 1
	MaxSides = 254
)

// MaxAmount bounds a single stake so that the pot (2 × stake) and every
// balance stay representable in the ledger's signed 64-bit columns.
const MaxAmount = math.MaxInt64 / 2

// Phase tracks where a session is in its lifecycle.
type Phase string

const (
	// PhaseOpen means the vendor has funded and Play has not completed.
	PhaseOpen Phase = "open"

	// PhaseSettled means Play collected the player stake and resolved.
	PhaseSettled Phase = "settled"

	// PhaseHeld means a settlement failed; the play was rolled back and
	// the session waits for the vendor to reclaim escrow via Delete.
	PhaseHeld Phase = "held"
)

// StatusKind distinguishes a draw from a finished game.
type StatusKind string

const (
	StatusDraw     StatusKind = "draw"
	StatusFinished StatusKind = "finished"
)

// Status is the session result: Draw or Finished(winner).
type Status struct {
	Kind   StatusKind `json:"kind"`
	Winner Identity   `json:"winner,omitempty"`
}

// Draw returns the draw status. It is also the initial status of a record.
func Draw() Status {
	return Status{Kind: StatusDraw}
}

// Finished returns a finished status naming the winner.
func Finished(winner Identity) Status {
	return Status{Kind: StatusFinished, Winner: winner}
}

// IsDraw reports whether the status is a draw.
func (s Status) IsDraw() bool {
	return s.Kind != StatusFinished
}

// String renders "draw" or "finished(<winner>)".
func (s Status) String() string {
	if s.IsDraw() {
		return string(StatusDraw)
	}
	return string(StatusFinished) + "(" + string(s.Winner) + ")"
}

// Session is the persistent record of one wager.
type Session struct {
	ID  SessionID `json:"id"`
	Key Key       `json:"participants"`

	// VendorSeed is opaque metadata supplied at Setup. It is stored and
	// returned verbatim and takes no part in outcome resolution.
	VendorSeed int64 `json:"vendor_seed"`

	Stake  uint64 `json:"stake"`
	Sides  uint8  `json:"sides"`
	Status Status `json:"status"`
	Phase  Phase  `json:"phase"`

	// Roll values are set together with Status by Play.
	VendorRoll uint8 `json:"vendor_roll"`
	PlayerRoll uint8 `json:"player_roll"`

	HoldReason string `json:"hold_reason,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}

// NewSession validates the Setup arguments and returns an open record with
// status Draw.
func NewSession(key Key, stake uint64, sides uint8, vendorSeed int64, now time.Time) (*Session, error) {
	if err := ValidateStake(stake); err != nil {
		return nil, err
	}
	if err := ValidateSides(int(sides)); err != nil {
		return nil, err
	}
	return &Session{
		ID:         key.ID(),
		Key:        key,
		VendorSeed: vendorSeed,
		Stake:      stake,
		Sides:      sides,
		Status:     Draw(),
		Phase:      PhaseOpen,
		CreatedAt:  now,
	}, nil
}

// ValidateStake rejects zero stakes and stakes whose pot would overflow.
func ValidateStake(stake uint64) error {
	if stake == 0 {
		return Errorf(ErrCodeInvalidArgument, "stake must be greater than zero")
	}
	if stake > MaxAmount {
		return Errorf(ErrCodeInvalidArgument, "stake %d exceeds maximum %d", stake, uint64(MaxAmount))
	}
	return nil
}

// ValidateSides checks that sides lies in MinSides..=MaxSides.
func ValidateSides(sides int) error {
	if sides < MinSides || sides > MaxSides {
		return Errorf(ErrCodeInvalidArgument, "side count %d outside %d..=%d", sides, MinSides, MaxSides)
	}
	return nil
}

// Vendor returns participant 0.
func (s *Session) Vendor() Identity {
	return s.Key.Vendor
}

// Player returns participant 1.
func (s *Session) Player() Identity {
	return s.Key.Player
}

// Escrow returns the session's escrow account.
func (s *Session) Escrow() Account {
	return EscrowAccount(s.ID)
}

// Pot is the full amount escrowed once both parties have funded.
func (s *Session) Pot() uint64 {
	return 2 * s.Stake
}

// Playable reports whether Play may still run on this record.
func (s *Session) Playable() bool {
	return s.Phase == PhaseOpen
}

// ExpectedEscrow is the escrow balance the record implies:
// stake × funded parties before settlement, 0 after a finished game and the
// full pot after a draw.
func (s *Session) ExpectedEscrow() uint64 {
	switch s.Phase {
	case PhaseSettled:
		if s.Status.IsDraw() {
			return s.Pot()
		}
		return 0
	default:
		return s.Stake
	}
}
