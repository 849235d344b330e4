// Command counsel runs the counseling backend: the HTTP API, schema
// migrations, reference-data seeding and the request expiry sweeper.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// @title                      Counsel API
// @version                    1.0
// @description                Anonymous counseling sessions: personality typing, counselor matching,
// @description                consultations, messages, cards and music recommendations.
// @BasePath                   /api/v1
// @securityDefinitions.apikey CounselorID
// @in                         header
// @name                       X-Counselor-ID
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("exit")
		os.Exit(1)
	}
}
