package webhook

import (
	"github.com/mentorly/sessionmeter/internal/webhook/authenticator"
	"github.com/mentorly/sessionmeter/internal/webhook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook",
	fx.Provide(
		authenticator.New,
		service.NewService,
	),
)
