package claim

import (
	"go.uber.org/fx"

	"github.com/warrantydesk/warrantydesk/internal/claim/repository"
	"github.com/warrantydesk/warrantydesk/internal/claim/service"
)

var Module = fx.Module("claim.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
