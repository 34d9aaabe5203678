package observability

import (
	"go.uber.org/fx"

	"github.com/warrantydesk/warrantydesk/internal/observability/metrics"
)

var Module = fx.Module("observability",
	fx.Provide(metrics.New),
)
