package app

import (
	"time"

	"github.com/go-chi/oauth"
	"github.com/mbolis/quick-survey/config"
	"github.com/mbolis/quick-survey/database"
	"github.com/mbolis/quick-survey/otp"
	"github.com/mbolis/quick-survey/poll"
)

type App struct {
	*database.Store
	*oauth.BearerServer
	config.Config

	Codes  *otp.Service
	Proofs *otp.Proofs
	Poller poll.Poller
	Now    func() time.Time
}
