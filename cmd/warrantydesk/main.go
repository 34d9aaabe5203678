package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/warrantydesk/warrantydesk/internal/chat"
	"github.com/warrantydesk/warrantydesk/internal/claim"
	"github.com/warrantydesk/warrantydesk/internal/clock"
	"github.com/warrantydesk/warrantydesk/internal/config"
	"github.com/warrantydesk/warrantydesk/internal/directory"
	"github.com/warrantydesk/warrantydesk/internal/directory/reconcile"
	"github.com/warrantydesk/warrantydesk/internal/donation"
	"github.com/warrantydesk/warrantydesk/internal/invoice"
	"github.com/warrantydesk/warrantydesk/internal/logger"
	"github.com/warrantydesk/warrantydesk/internal/migration"
	"github.com/warrantydesk/warrantydesk/internal/notification"
	"github.com/warrantydesk/warrantydesk/internal/observability"
	"github.com/warrantydesk/warrantydesk/internal/providers"
	"github.com/warrantydesk/warrantydesk/internal/ratelimit"
	"github.com/warrantydesk/warrantydesk/internal/realtime"
	"github.com/warrantydesk/warrantydesk/internal/server"
	"github.com/warrantydesk/warrantydesk/pkg/db"
)

func main() {
	app := fx.New(
		fx.Provide(config.Load),
		logger.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		observability.Module,

		providers.Module,
		realtime.Module,
		ratelimit.Module,

		directory.Module,
		notification.Module,
		claim.Module,
		invoice.Module,
		chat.Module,
		donation.Module,

		server.Module,
		reconcile.Module,
	)
	app.Run()
}

func registerSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
