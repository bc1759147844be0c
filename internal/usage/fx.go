package usage

import (
	"github.com/mentorly/sessionmeter/internal/usage/repository"
	"github.com/mentorly/sessionmeter/internal/usage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("usage",
	fx.Provide(
		repository.NewRepository,
		service.NewService,
	),
)
