package directory

import (
	"go.uber.org/fx"

	"github.com/warrantydesk/warrantydesk/internal/directory/repository"
	"github.com/warrantydesk/warrantydesk/internal/directory/service"
)

var Module = fx.Module("directory.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
