package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/mesa/internal/cache"
	"github.com/Additional-Code/mesa/internal/config"
	"github.com/Additional-Code/mesa/internal/database"
	"github.com/Additional-Code/mesa/internal/logger"
	"github.com/Additional-Code/mesa/internal/messaging"
	"github.com/Additional-Code/mesa/internal/notification"
	"github.com/Additional-Code/mesa/internal/observability"
	repositorymenu "github.com/Additional-Code/mesa/internal/repository/menu"
	repositoryorder "github.com/Additional-Code/mesa/internal/repository/order"
	repositorytransaction "github.com/Additional-Code/mesa/internal/repository/transaction"
	httpserver "github.com/Additional-Code/mesa/internal/server/http"
	serviceorder "github.com/Additional-Code/mesa/internal/service/order"
	servicepayment "github.com/Additional-Code/mesa/internal/service/payment"
	transporthttp "github.com/Additional-Code/mesa/internal/transport/http"
	"github.com/Additional-Code/mesa/internal/worker"
	workernotification "github.com/Additional-Code/mesa/internal/worker/notification"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	notification.Module,
	observability.Module,
	repositorymenu.Module,
	repositoryorder.Module,
	repositorytransaction.Module,
	serviceorder.Module,
	servicepayment.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workernotification.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
