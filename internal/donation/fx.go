package donation

import (
	"go.uber.org/fx"

	"github.com/warrantydesk/warrantydesk/internal/donation/gateway"
	"github.com/warrantydesk/warrantydesk/internal/donation/repository"
	"github.com/warrantydesk/warrantydesk/internal/donation/service"
)

var Module = fx.Module("donation.service",
	fx.Provide(gateway.New),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
