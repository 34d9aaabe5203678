package notification

import (
	"go.uber.org/fx"

	"github.com/warrantydesk/warrantydesk/internal/notification/repository"
	"github.com/warrantydesk/warrantydesk/internal/notification/service"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
