package rankingengine

import (
	"log/slog"

	httpadapter "calyx/contexts/market-core/ranking-engine/adapters/http"
	"calyx/contexts/market-core/ranking-engine/adapters/memory"
	"calyx/contexts/market-core/ranking-engine/application/commands"
	"calyx/contexts/market-core/ranking-engine/application/queries"
	"calyx/contexts/market-core/ranking-engine/domain/entities"
	"calyx/contexts/market-core/ranking-engine/ports"

	"github.com/shopspring/decimal"
)

type Module struct {
	Handler httpadapter.Handler
	Store   *memory.Store
}

type Dependencies struct {
	Repository   ports.Repository
	Outbox       ports.OutboxWriter
	Rates        ports.RateConverter
	Certificates ports.CertificateIssuer
	Audit        ports.AuditRecorder
	Clock        ports.Clock
	IDGen        ports.IDGenerator
	DefaultRate  decimal.Decimal
	MaxRetries   int
	Logger       *slog.Logger
}

func NewModule(deps Dependencies) Module {
	commandUseCase := commands.UseCase{
		Repository:   deps.Repository,
		Outbox:       deps.Outbox,
		Rates:        deps.Rates,
		Certificates: deps.Certificates,
		Audit:        deps.Audit,
		Clock:        deps.Clock,
		IDGen:        deps.IDGen,
		DefaultRate:  deps.DefaultRate,
		MaxRetries:   deps.MaxRetries,
		Logger:       deps.Logger,
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
	}
}

func NewInMemoryModule(seed []entities.Good, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Repository:   store,
		Outbox:       store,
		Rates:        store,
		Certificates: store,
		Audit:        store,
		Clock:        store,
		IDGen:        store,
		DefaultRate:  decimal.NewFromInt(2),
		Logger:       logger,
	})
	module.Store = store
	return module
}
