package http

import (
	"github.com/go-otp-api/internal/application/otp"
	jwtinfra "github.com/go-otp-api/internal/infrastructure/jwt"
	"github.com/go-otp-api/internal/infrastructure/smtp"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	OTPRepo     otp.Repository
	Mailer      smtp.Mailer
	JWTProvider *jwtinfra.Provider
}
