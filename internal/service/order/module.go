package order

import (
	"go.uber.org/fx"

	menurepo "github.com/Additional-Code/mesa/internal/repository/menu"
	orderrepo "github.com/Additional-Code/mesa/internal/repository/order"
)

// Module provides the order service to Fx, binding the concrete
// repositories to the store interfaces the service depends on.
var Module = fx.Provide(
	NewService,
	func(r *orderrepo.Repository) OrderStore { return r },
	func(r *menurepo.Repository) MenuStore { return r },
)
