package providers

import (
	"go.uber.org/fx"

	"github.com/warrantydesk/warrantydesk/internal/providers/email"
	"github.com/warrantydesk/warrantydesk/internal/providers/pdf"
	"github.com/warrantydesk/warrantydesk/internal/providers/storage"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
	storage.Module,
)
