package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/pquerna/otp/totp"
)

// AdminOTPHeader carries the current TOTP code for threshold mutations.
const AdminOTPHeader = "X-Admin-OTP"

var (
	errAdminDisabled = errors.New("admin endpoints disabled")
	errOTPMissing    = errors.New("missing " + AdminOTPHeader)
	errOTPInvalid    = errors.New("invalid one-time password")
)

// checkAdmin validates the request's TOTP code against secret and returns
// the HTTP status to reply with on failure.
func checkAdmin(secret string, r *http.Request) (int, error) {
	if secret == "" {
		return http.StatusForbidden, errAdminDisabled
	}
	code := strings.TrimSpace(r.Header.Get(AdminOTPHeader))
	if code == "" {
		return http.StatusUnauthorized, errOTPMissing
	}
	if !totp.Validate(code, secret) {
		return http.StatusUnauthorized, errOTPInvalid
	}
	return http.StatusOK, nil
}
