package invoice

import (
	"go.uber.org/fx"

	"github.com/warrantydesk/warrantydesk/internal/invoice/repository"
	"github.com/warrantydesk/warrantydesk/internal/invoice/service"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
