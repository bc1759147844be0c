package conversation

import (
	"github.com/mentorly/sessionmeter/internal/conversation/repository"
	"github.com/mentorly/sessionmeter/internal/conversation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("conversation.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
