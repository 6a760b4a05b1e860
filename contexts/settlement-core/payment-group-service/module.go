package paymentgroupservice

import (
	"log/slog"

	httpadapter "courtpay/contexts/settlement-core/payment-group-service/adapters/http"
	"courtpay/contexts/settlement-core/payment-group-service/adapters/memory"
	"courtpay/contexts/settlement-core/payment-group-service/application"
	"courtpay/contexts/settlement-core/payment-group-service/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Repository  ports.Repository
	OrgLookup   ports.OrgLookupClient
	Clock       ports.Clock
	IDGenerator ports.IDGenerator
	Logger      *slog.Logger
}

func NewModule(deps Dependencies) Module {
	service := application.Service{
		Repo:      deps.Repository,
		OrgLookup: deps.OrgLookup,
		Clock:     deps.Clock,
		IDGen:     deps.IDGenerator,
		Logger:    deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Service: service,
			Logger:  deps.Logger,
		},
	}
}

func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Repository:  store,
		OrgLookup:   store,
		Clock:       store,
		IDGenerator: store,
		Logger:      logger,
	})
	module.Store = store
	return module
}
