package settlementservice

import (
	"log/slog"

	httpadapter "courtpay/contexts/settlement-core/settlement-service/adapters/http"
	"courtpay/contexts/settlement-core/settlement-service/adapters/memory"
	"courtpay/contexts/settlement-core/settlement-service/application"
	"courtpay/contexts/settlement-core/settlement-service/application/workers"
	"courtpay/contexts/settlement-core/settlement-service/ports"
)

// Module wires the settlement context: payments, the idempotency guard,
// waterfall apportionment, and the callback relay.
type Module struct {
	Handler httpadapter.Handler
	Relay   workers.CallbackRelay
	Store   *memory.Store
}

type Dependencies struct {
	Ledger      ports.LedgerRepository
	Idempotency ports.IdempotencyStore
	Gateway     ports.GatewayClient
	Accounts    ports.AccountClient
	Outbox      ports.OutboxRepository
	Publisher   ports.EventPublisher
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Features    application.Features
	RelayTopic  string
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Ledger:      deps.Ledger,
		Idempotency: deps.Idempotency,
		Gateway:     deps.Gateway,
		Accounts:    deps.Accounts,
		Clock:       deps.Clock,
		IDGen:       deps.IDGen,
		Features:    deps.Features,
		Logger:      deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{Service: service, Logger: deps.Logger},
		Relay: workers.CallbackRelay{
			Outbox:    deps.Outbox,
			Publisher: deps.Publisher,
			Clock:     deps.Clock,
			Topic:     deps.RelayTopic,
			Logger:    deps.Logger,
		},
	}
}

// NewInMemoryModule builds the module on the in-memory store; every port is
// served by the same Store instance.
func NewInMemoryModule(features application.Features, logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Ledger:      store,
		Idempotency: store,
		Gateway:     store,
		Accounts:    store,
		Outbox:      store,
		Publisher:   store,
		Clock:       store,
		IDGen:       store,
		Features:    features,
		Logger:      logger,
	})
	module.Store = store
	return module
}
