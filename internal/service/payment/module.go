package payment

import (
	"go.uber.org/fx"

	orderrepo "github.com/Additional-Code/mesa/internal/repository/order"
	txnrepo "github.com/Additional-Code/mesa/internal/repository/transaction"
)

// Module provides the payment service to Fx, binding the concrete
// repositories to the interfaces the service depends on.
var Module = fx.Provide(
	NewService,
	func(r *txnrepo.Repository) Ledger { return r },
	func(r *orderrepo.Repository) OrderStore { return r },
)
