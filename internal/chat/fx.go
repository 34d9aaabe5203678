package chat

import (
	"go.uber.org/fx"

	"github.com/warrantydesk/warrantydesk/internal/chat/repository"
	"github.com/warrantydesk/warrantydesk/internal/chat/service"
)

var Module = fx.Module("chat.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
