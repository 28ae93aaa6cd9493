package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-otp-api/internal/application/otp"
	"github.com/go-otp-api/internal/config"
	"github.com/go-otp-api/internal/pkg/otpcode"
	"github.com/go-otp-api/internal/transport/http/handler"
	appmiddleware "github.com/go-otp-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 20 requests/second, burst of 40 — a coarse per-IP throttle over the
	// whole API. The OTP issuance endpoints get the strict fixed window below.
	globalRL := appmiddleware.NewRateLimiter(rate.Limit(20), 40, cfg.TrustProxyHeaders)
	r.Use(globalRL.Limit)

	otpRL := appmiddleware.NewFixedWindow(cfg.RateLimitMax, cfg.RateLimitWindow, cfg.TrustProxyHeaders)

	otpSvc := otp.NewService(otp.ServiceDeps{
		Repo:           deps.OTPRepo,
		Mailer:         deps.Mailer,
		Signer:         deps.JWTProvider,
		Codes:          otpcode.New(cfg.CodeLength),
		TTL:            cfg.OTPTTL,
		MaxAttempts:    cfg.MaxAttempts,
		ResendCooldown: cfg.ResendCooldown,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(otpSvc)

	r.Get("/health-check/{action}", healthH.Ping)

	r.Route("/api/auth", func(r chi.Router) {
		r.With(otpRL.Limit).Post("/send-otp", authH.SendOTP)
		r.Post("/verify-otp", authH.VerifyOTP)
		r.With(otpRL.Limit).Post("/resend-otp", authH.ResendOTP)
	})

	return r
}
