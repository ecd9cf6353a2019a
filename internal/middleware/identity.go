package middleware

import "github.com/labstack/echo/v4"

// Context keys set by JWTAuth.
const (
	KeyRequesterID = "requester_id"
	KeyRole        = "role"
)

// RequesterID returns the authenticated requester, or "" when the request
// carried no verified identity.
func RequesterID(c echo.Context) string {
	s, _ := c.Get(KeyRequesterID).(string)
	return s
}

// Role returns the authenticated requester's role.
func Role(c echo.Context) string {
	s, _ := c.Get(KeyRole).(string)
	return s
}

// requesterOrAnon is used for keying rate limits and caches.
func requesterOrAnon(c echo.Context) string {
	if id := RequesterID(c); id != "" {
		return id
	}
	return "anon"
}
