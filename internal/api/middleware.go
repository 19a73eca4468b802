package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/roach88/diceroll/internal/auth"
	"github.com/roach88/diceroll/internal/wager"
)

func (s *server) accessLog(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		status, _ = statusOf(err)
	}
	s.log.Debug().
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", status).
		Dur("elapsed", time.Since(start)).
		Msg("request")
	return err
}

// rateLimit keys the bucket on the client address. The identity header is
// unverified at this point, so it never selects a bucket.
func (s *server) rateLimit(c *fiber.Ctx) error {
	ip := c.IP()
	if !s.limit.allow(ip) {
		return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded for "+ip)
	}
	return c.Next()
}

// credentials moves the credential header into the request context where
// the store's authenticator reads it.
func (s *server) credentials(c *fiber.Ctx) error {
	if cred := c.Get(HeaderCredential); cred != "" {
		c.SetUserContext(auth.WithCredential(c.UserContext(), cred))
	}
	return c.Next()
}

// requireCaller checks that the identity header names who the route acts as.
func requireCaller(c *fiber.Ctx, acting string) error {
	want, err := wager.ParseIdentity(acting)
	if err != nil {
		return err
	}
	claimed := c.Get(HeaderIdentity)
	if claimed == "" {
		return wager.Errorf(wager.ErrCodeUnauthorized, "missing %s header", HeaderIdentity)
	}
	got, err := wager.ParseIdentity(claimed)
	if err != nil {
		return wager.Wrap(wager.ErrCodeUnauthorized, "malformed "+HeaderIdentity, err)
	}
	if got != want {
		return wager.Errorf(wager.ErrCodeUnauthorized, "%s may not act as %s", got, want)
	}
	return nil
}

// requireReader checks that the caller is one of allowed and that the
// credential header verifies for them.
func (s *server) requireReader(c *fiber.Ctx, allowed ...wager.Identity) error {
	claimed := c.Get(HeaderIdentity)
	if claimed == "" {
		return wager.Errorf(wager.ErrCodeUnauthorized, "missing %s header", HeaderIdentity)
	}
	got, err := wager.ParseIdentity(claimed)
	if err != nil {
		return wager.Wrap(wager.ErrCodeUnauthorized, "malformed "+HeaderIdentity, err)
	}
	for _, id := range allowed {
		if got == id {
			return s.ctl.Authenticate(c.UserContext(), string(got))
		}
	}
	return wager.Errorf(wager.ErrCodeUnauthorized, "%s may not read this record", got)
}
