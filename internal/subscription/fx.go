package subscription

import (
	"github.com/mentorly/sessionmeter/internal/subscription/repository"
	"github.com/mentorly/sessionmeter/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
