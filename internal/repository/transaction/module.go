package transaction

import "go.uber.org/fx"

// Module provides the transaction ledger repository to Fx.
var Module = fx.Provide(NewRepository)
