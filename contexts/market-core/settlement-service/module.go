package settlementservice

import (
	"log/slog"

	httpadapter "calyx/contexts/market-core/settlement-service/adapters/http"
	"calyx/contexts/market-core/settlement-service/adapters/memory"
	"calyx/contexts/market-core/settlement-service/application/commands"
	"calyx/contexts/market-core/settlement-service/application/queries"
	"calyx/contexts/market-core/settlement-service/domain/entities"
	"calyx/contexts/market-core/settlement-service/ports"
)

type Module struct {
	Handler  httpadapter.Handler
	Commands commands.UseCase
	Store    *memory.Store
}

type Dependencies struct {
	Repository ports.Repository
	Outbox     ports.OutboxWriter
	Audit      ports.AuditRecorder
	Clock      ports.Clock
	IDGen      ports.IDGenerator
	Logger     *slog.Logger
}

func NewModule(deps Dependencies) Module {
	commandUseCase := commands.UseCase{
		Repository: deps.Repository,
		Outbox:     deps.Outbox,
		Audit:      deps.Audit,
		Clock:      deps.Clock,
		IDGen:      deps.IDGen,
		Logger:     deps.Logger,
	}
	queryUseCase := queries.UseCase{
		Repository: deps.Repository,
		Logger:     deps.Logger,
	}
	return Module{
		Handler: httpadapter.Handler{
			Commands: commandUseCase,
			Queries:  queryUseCase,
			Logger:   deps.Logger,
		},
		Commands: commandUseCase,
	}
}

func NewInMemoryModule(seed []entities.Wallet, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Repository: store,
		Outbox:     store,
		Audit:      store,
		Clock:      store,
		IDGen:      store,
		Logger:     logger,
	})
	module.Store = store
	return module
}
