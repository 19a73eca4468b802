package api

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/roach88/diceroll/internal/escrow"
	"github.com/roach88/diceroll/internal/store"
	"github.com/roach88/diceroll/internal/wager"
)

type openAccountRequest struct {
	ID         string `json:"id"`
	Credential string `json:"credential"`
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type balanceResponse struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

type setupRequest struct {
	Vendor     string `json:"vendor"`
	Player     string `json:"player"`
	Stake      uint64 `json:"stake"`
	Sides      int    `json:"sides"`
	VendorSeed int64  `json:"vendor_seed"`
}

type sessionResponse struct {
	Session *wager.Session `json:"session"`
	Escrow  uint64         `json:"escrow"`
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return wager.Wrap(wager.ErrCodeInvalidArgument, "decode request body", err)
	}
	return nil
}

func (s *server) health(c *fiber.Ctx) error {
	if err := s.journal.Ping(c.UserContext()); err != nil {
		s.log.Error().Err(err).Msg("health check failed")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *server) openAccount(c *fiber.Ctx) error {
	var req openAccountRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Credential == "" {
		return wager.Errorf(wager.ErrCodeInvalidArgument, "credential is required")
	}
	if err := s.ctl.OpenAccount(c.UserContext(), req.ID, req.Credential); err != nil {
		return err
	}
	id, _ := wager.ParseIdentity(req.ID)
	return c.Status(fiber.StatusCreated).JSON(balanceResponse{Account: string(id)})
}

func (s *server) account(c *fiber.Ctx) error {
	id, err := wager.ParseIdentity(c.Params("id"))
	if err != nil {
		return err
	}
	if err := s.requireReader(c, id); err != nil {
		return err
	}
	bal, err := s.ctl.Balance(c.UserContext(), string(id))
	if err != nil {
		return err
	}
	return c.JSON(balanceResponse{Account: string(id), Balance: bal})
}

func (s *server) deposit(c *fiber.Ctx) error {
	return s.transfer(c, s.ctl.Deposit)
}

func (s *server) withdraw(c *fiber.Ctx) error {
	return s.transfer(c, s.ctl.Withdraw)
}

func (s *server) transfer(c *fiber.Ctx, move func(ctx context.Context, id string, amount uint64) (uint64, error)) error {
	id := c.Params("id")
	if err := requireCaller(c, id); err != nil {
		return err
	}
	var req amountRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	bal, err := move(c.UserContext(), id, req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(balanceResponse{Account: id, Balance: bal})
}

func (s *server) listSessions(c *fiber.Ctx) error {
	id, err := wager.ParseIdentity(c.Params("id"))
	if err != nil {
		return err
	}
	if err := s.requireReader(c, id); err != nil {
		return err
	}
	sessions, err := s.ctl.Sessions(c.UserContext(), string(id))
	if err != nil {
		return err
	}
	if sessions == nil {
		sessions = []*wager.Session{}
	}
	return c.JSON(fiber.Map{"sessions": sessions})
}

func (s *server) setup(c *fiber.Ctx) error {
	var req setupRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if err := requireCaller(c, req.Vendor); err != nil {
		return err
	}
	if err := wager.ValidateSides(req.Sides); err != nil {
		return err
	}
	sess, err := s.ctl.Setup(c.UserContext(), escrow.SetupRequest{
		Vendor:     req.Vendor,
		Player:     req.Player,
		Stake:      req.Stake,
		Sides:      uint8(req.Sides),
		VendorSeed: req.VendorSeed,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sessionResponse{Session: sess, Escrow: sess.Stake})
}

func (s *server) session(c *fiber.Ctx) error {
	ctx := c.UserContext()
	vendor, player := c.Params("vendor"), c.Params("player")
	key, err := wager.NewKey(vendor, player)
	if err != nil {
		return err
	}
	if err := s.requireReader(c, key.Vendor, key.Player); err != nil {
		return err
	}
	sess, err := s.ctl.Session(ctx, vendor, player)
	if err != nil {
		return err
	}
	held, err := s.ctl.Escrow(ctx, vendor, player)
	if err != nil {
		return err
	}
	return c.JSON(sessionResponse{Session: sess, Escrow: held})
}

func (s *server) postings(c *fiber.Ctx) error {
	key, err := wager.NewKey(c.Params("vendor"), c.Params("player"))
	if err != nil {
		return err
	}
	if err := s.requireReader(c, key.Vendor, key.Player); err != nil {
		return err
	}
	ps, err := s.journal.Postings(c.UserContext(), store.PostingFilter{Session: key.ID()})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"session": key.ID(), "postings": ps})
}

func (s *server) play(c *fiber.Ctx) error {
	vendor, player := c.Params("vendor"), c.Params("player")
	if err := requireCaller(c, player); err != nil {
		return err
	}
	res, err := s.ctl.Play(c.UserContext(), vendor, player)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *server) delete(c *fiber.Ctx) error {
	vendor, player := c.Params("vendor"), c.Params("player")
	if err := requireCaller(c, vendor); err != nil {
		return err
	}
	res, err := s.ctl.Delete(c.UserContext(), vendor, player)
	if err != nil {
		return err
	}
	return c.JSON(res)
}
