package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"calyx/contexts/market-core/settlement-service/domain/entities"
	domainerrors "calyx/contexts/market-core/settlement-service/domain/errors"
	"calyx/contexts/market-core/settlement-service/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

type txContextKey struct{}

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *Repository) GetReservationView(ctx context.Context, reservationID string) (entities.ReservationView, error) {
	return r.loadView(ctx, reservationID, false)
}

func (r *Repository) GetReservationViewForUpdate(ctx context.Context, reservationID string) (entities.ReservationView, error) {
	return r.loadView(ctx, reservationID, true)
}

func (r *Repository) loadView(
	ctx context.Context,
	reservationID string,
	forUpdate bool,
) (entities.ReservationView, error) {
	query := r.conn(ctx).Where("id = ?", strings.TrimSpace(reservationID))
	if forUpdate {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var reservation reservationRowModel
	if err := query.First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ReservationView{}, domainerrors.ErrReservationNotFound
		}
		return entities.ReservationView{}, r.logError("settlement_repo_get_reservation_failed", err,
			"reservation_id", strings.TrimSpace(reservationID),
		)
	}

	var good goodRowModel
	if err := r.conn(ctx).
		Where("id = ?", reservation.GoodID).
		First(&good).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.ReservationView{}, domainerrors.ErrCollectionNotFound
		}
		return entities.ReservationView{}, r.logError("settlement_repo_get_good_failed", err,
			"reservation_id", reservation.ID,
			"good_id", reservation.GoodID,
		)
	}

	winning := reservation.Status == "active" &&
		reservation.IsCurrent &&
		reservation.SupersededBy == nil
	return entities.ReservationView{
		ID:           reservation.ID,
		GoodID:       reservation.GoodID,
		CollectionID: strings.TrimSpace(good.CollectionID),
		AccountType:  reservation.AccountType,
		Status:       reservation.Status,
		Amount:       reservation.Amount,
		ExchangeRate: reservation.ExchangeRate,
		Winning:      winning,
	}, nil
}

func (r *Repository) ListWallets(ctx context.Context, collectionID string) ([]entities.Wallet, error) {
	var rows []walletModel
	if err := r.conn(ctx).
		Where("collection_id = ?", strings.TrimSpace(collectionID)).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("settlement_repo_list_wallets_failed", err,
			"collection_id", strings.TrimSpace(collectionID),
		)
	}
	wallets := make([]entities.Wallet, 0, len(rows))
	for _, row := range rows {
		wallets = append(wallets, row.toEntity())
	}
	return wallets, nil
}

func (r *Repository) PutWallet(ctx context.Context, wallet entities.Wallet) error {
	if strings.TrimSpace(wallet.ID) == "" || strings.TrimSpace(wallet.CollectionID) == "" {
		r.logWarn("settlement_repo_put_wallet_invalid_input",
			"wallet_id", strings.TrimSpace(wallet.ID),
			"collection_id", strings.TrimSpace(wallet.CollectionID),
		)
		return domainerrors.ErrInvalidSettlementInput
	}
	row := walletModelFromEntity(wallet)
	if err := r.conn(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			r.logWarn("settlement_repo_put_wallet_unique_conflict",
				"wallet_id", row.ID,
			)
			return domainerrors.ErrWalletExists
		}
		return r.logError("settlement_repo_put_wallet_failed", err,
			"wallet_id", row.ID,
		)
	}
	return nil
}

func (r *Repository) CountDistributions(ctx context.Context, reservationID string) (int64, error) {
	var count int64
	if err := r.conn(ctx).
		Model(&distributionModel{}).
		Where("reservation_id = ?", strings.TrimSpace(reservationID)).
		Count(&count).Error; err != nil {
		return 0, r.logError("settlement_repo_count_distributions_failed", err,
			"reservation_id", strings.TrimSpace(reservationID),
		)
	}
	return count, nil
}

func (r *Repository) CreateDistribution(ctx context.Context, distribution entities.Distribution) error {
	row := distributionModelFromEntity(distribution)
	if err := r.conn(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			r.logWarn("settlement_repo_create_distribution_unique_conflict",
				"distribution_id", row.ID,
				"reservation_id", row.ReservationID,
			)
			return domainerrors.ErrDistributionsAlreadyExist
		}
		return r.logError("settlement_repo_create_distribution_failed", err,
			"distribution_id", row.ID,
			"reservation_id", row.ReservationID,
		)
	}
	return nil
}

func (r *Repository) MarkGoodFinalized(ctx context.Context, goodID string) error {
	result := r.conn(ctx).
		Model(&goodRowModel{}).
		Where("id = ?", strings.TrimSpace(goodID)).
		Update("finalized", true)
	if result.Error != nil {
		return r.logError("settlement_repo_mark_good_finalized_failed", result.Error,
			"good_id", strings.TrimSpace(goodID),
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("settlement_repo_mark_good_finalized_not_found",
			"good_id", strings.TrimSpace(goodID),
		)
		return domainerrors.ErrCollectionNotFound
	}
	return nil
}

func (r *Repository) SummarizeDistributions(
	ctx context.Context,
	collectionID string,
	filter ports.StatsFilter,
	topRankedOnly bool,
) (entities.StatsSummary, error) {
	rows, err := r.listDistributions(ctx, collectionID, filter, topRankedOnly)
	if err != nil {
		return entities.StatsSummary{}, err
	}
	summary := entities.StatsSummary{
		CollectionID: strings.TrimSpace(collectionID),
		TotalAmount:  decimal.Zero,
		ByRole:       make(map[string]entities.StatsBucket),
		ByStatus:     make(map[string]entities.StatsBucket),
	}
	for _, row := range rows {
		summary.Count++
		summary.TotalAmount = summary.TotalAmount.Add(row.Amount)

		role := summary.ByRole[row.Role]
		role.Count++
		role.TotalAmount = role.TotalAmount.Add(row.Amount)
		summary.ByRole[row.Role] = role

		status := summary.ByStatus[row.Status]
		status.Count++
		status.TotalAmount = status.TotalAmount.Add(row.Amount)
		summary.ByStatus[row.Status] = status
	}
	return summary, nil
}

func (r *Repository) ListDistributionTracking(
	ctx context.Context,
	collectionID string,
	filter ports.StatsFilter,
) ([]entities.Distribution, error) {
	rows, err := r.listDistributions(ctx, collectionID, filter, false)
	if err != nil {
		return nil, err
	}
	distributions := make([]entities.Distribution, 0, len(rows))
	for _, row := range rows {
		distributions = append(distributions, row.toEntity())
	}
	return distributions, nil
}

func (r *Repository) listDistributions(
	ctx context.Context,
	collectionID string,
	filter ports.StatsFilter,
	topRankedOnly bool,
) ([]distributionModel, error) {
	query := r.conn(ctx).
		Where("collection_id = ?", strings.TrimSpace(collectionID))
	if topRankedOnly {
		query = query.Where("top_ranked = ?", true)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", filter.To.UTC())
	}
	var rows []distributionModel
	if err := query.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("settlement_repo_list_distributions_failed", err,
			"collection_id", strings.TrimSpace(collectionID),
			"top_ranked_only", topRankedOnly,
		)
	}
	return rows, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("settlement_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := settlementOutboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAt.UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}

	createResult := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if createResult.Error != nil {
		return r.logError("settlement_repo_append_outbox_insert_failed", createResult.Error,
			"outbox_id", row.OutboxID,
			"event_type", row.EventType,
		)
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing settlementOutboxModel
	if err := r.conn(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).
		Error; err != nil {
		return r.logError("settlement_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		r.logWarn("settlement_repo_append_outbox_payload_conflict",
			"outbox_id", row.OutboxID,
			"event_type", row.EventType,
		)
		return domainerrors.ErrInvalidSettlementInput
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []settlementOutboxModel
	if err := r.conn(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("settlement_repo_list_pending_outbox_failed", err,
			"limit", limit,
		)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.conn(ctx).
		Model(&settlementOutboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("settlement_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("settlement_repo_mark_outbox_published_not_found",
			"outbox_id", strings.TrimSpace(outboxID),
		)
		return domainerrors.ErrInvalidSettlementInput
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", "market-core/settlement-service",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("settlement repository operation failed", fields...)
	return err
}

func (r *Repository) logWarn(event string, attrs ...any) {
	fields := make([]any, 0, len(attrs)+5)
	fields = append(fields,
		"event", event,
		"module", "market-core/settlement-service",
		"layer", "adapter",
	)
	fields = append(fields, attrs...)
	r.logger.Warn("settlement repository warning", fields...)
}

// reservationRowModel and goodRowModel are read-only projections of the
// ranking engine's tables. This adapter never writes reservation rows; its
// only cross-table write is the finalized flag set during settlement.
type reservationRowModel struct {
	ID           string          `gorm:"column:id;primaryKey"`
	GoodID       string          `gorm:"column:good_id"`
	AccountType  string          `gorm:"column:account_type"`
	Amount       decimal.Decimal `gorm:"column:amount"`
	ExchangeRate decimal.Decimal `gorm:"column:exchange_rate"`
	Status       string          `gorm:"column:status"`
	IsCurrent    bool            `gorm:"column:is_current"`
	SupersededBy *string         `gorm:"column:superseded_by"`
}

func (reservationRowModel) TableName() string {
	return "reservations"
}

type goodRowModel struct {
	ID           string `gorm:"column:id;primaryKey"`
	CollectionID string `gorm:"column:collection_id"`
	Finalized    bool   `gorm:"column:finalized"`
}

func (goodRowModel) TableName() string {
	return "goods"
}

type walletModel struct {
	ID           string          `gorm:"column:id;primaryKey"`
	CollectionID string          `gorm:"column:collection_id"`
	Address      string          `gorm:"column:address"`
	Share        decimal.Decimal `gorm:"column:share;type:numeric(6,3)"`
	Role         string          `gorm:"column:role"`
	CreatedAt    time.Time       `gorm:"column:created_at"`
}

func (walletModel) TableName() string {
	return "collection_wallets"
}

func walletModelFromEntity(wallet entities.Wallet) walletModel {
	return walletModel{
		ID:           strings.TrimSpace(wallet.ID),
		CollectionID: strings.TrimSpace(wallet.CollectionID),
		Address:      strings.TrimSpace(wallet.Address),
		Share:        wallet.Share,
		Role:         strings.TrimSpace(wallet.Role),
		CreatedAt:    wallet.CreatedAt.UTC(),
	}
}

func (m walletModel) toEntity() entities.Wallet {
	return entities.Wallet{
		ID:           m.ID,
		CollectionID: m.CollectionID,
		Address:      m.Address,
		Share:        m.Share,
		Role:         m.Role,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type distributionModel struct {
	ID            string          `gorm:"column:id;primaryKey"`
	ReservationID string          `gorm:"column:reservation_id"`
	GoodID        string          `gorm:"column:good_id"`
	CollectionID  string          `gorm:"column:collection_id"`
	WalletID      string          `gorm:"column:wallet_id"`
	WalletAddress string          `gorm:"column:wallet_address"`
	Role          string          `gorm:"column:role"`
	Percentage    decimal.Decimal `gorm:"column:percentage;type:numeric(6,3)"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(20,2)"`
	ExchangeRate  decimal.Decimal `gorm:"column:exchange_rate;type:numeric(30,18)"`
	TopRanked     bool            `gorm:"column:top_ranked"`
	Status        string          `gorm:"column:status"`
	CreatedAt     time.Time       `gorm:"column:created_at"`
}

func (distributionModel) TableName() string {
	return "distributions"
}

func distributionModelFromEntity(distribution entities.Distribution) distributionModel {
	return distributionModel{
		ID:            strings.TrimSpace(distribution.ID),
		ReservationID: strings.TrimSpace(distribution.ReservationID),
		GoodID:        strings.TrimSpace(distribution.GoodID),
		CollectionID:  strings.TrimSpace(distribution.CollectionID),
		WalletID:      strings.TrimSpace(distribution.WalletID),
		WalletAddress: strings.TrimSpace(distribution.WalletAddress),
		Role:          strings.TrimSpace(distribution.Role),
		Percentage:    distribution.Percentage,
		Amount:        distribution.Amount,
		ExchangeRate:  distribution.ExchangeRate,
		TopRanked:     distribution.TopRanked,
		Status:        string(distribution.Status),
		CreatedAt:     distribution.CreatedAt.UTC(),
	}
}

func (m distributionModel) toEntity() entities.Distribution {
	return entities.Distribution{
		ID:            m.ID,
		ReservationID: m.ReservationID,
		GoodID:        m.GoodID,
		CollectionID:  m.CollectionID,
		WalletID:      m.WalletID,
		WalletAddress: m.WalletAddress,
		Role:          m.Role,
		Percentage:    m.Percentage,
		Amount:        m.Amount,
		ExchangeRate:  m.ExchangeRate,
		TopRanked:     m.TopRanked,
		Status:        entities.DistributionStatus(m.Status),
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

type settlementOutboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (settlementOutboxModel) TableName() string {
	return "settlement_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.Repository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
