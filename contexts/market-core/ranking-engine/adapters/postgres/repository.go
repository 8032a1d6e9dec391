package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"calyx/contexts/market-core/ranking-engine/domain/entities"
	domainerrors "calyx/contexts/market-core/ranking-engine/domain/errors"
	"calyx/contexts/market-core/ranking-engine/ports"

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

// WithTx runs fn inside a database transaction. The transactional handle
// travels in the context so every repository call issued by fn joins the
// same transaction. Lock and serialization failures surface as
// ErrRankingConflict so callers can retry.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
	if err != nil && isSerializationConflict(err) {
		r.logWarn("ranking_repo_tx_serialization_conflict",
			"error", err.Error(),
		)
		return domainerrors.ErrRankingConflict
	}
	return err
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db.WithContext(ctx)
}

func (r *Repository) CreateGood(ctx context.Context, good entities.Good) error {
	if strings.TrimSpace(good.ID) == "" || strings.TrimSpace(good.CollectionID) == "" {
		r.logWarn("ranking_repo_create_good_invalid_input",
			"good_id", strings.TrimSpace(good.ID),
			"collection_id", strings.TrimSpace(good.CollectionID),
		)
		return domainerrors.ErrInvalidReservationInput
	}
	row := goodModelFromEntity(good)
	if err := r.conn(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			r.logWarn("ranking_repo_create_good_unique_conflict",
				"good_id", row.ID,
			)
			return domainerrors.ErrGoodExists
		}
		return r.logError("ranking_repo_create_good_failed", err,
			"good_id", row.ID,
		)
	}
	return nil
}

func (r *Repository) GetGood(ctx context.Context, goodID string) (entities.Good, error) {
	var row goodModel
	err := r.conn(ctx).
		Where("id = ?", strings.TrimSpace(goodID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Good{}, domainerrors.ErrGoodNotFound
		}
		return entities.Good{}, r.logError("ranking_repo_get_good_failed", err,
			"good_id", strings.TrimSpace(goodID),
		)
	}
	return row.toEntity(), nil
}

// GetGoodForUpdate takes a row-level exclusive lock on the good. The good
// row is the serialization point for all ranking mutations on that good.
func (r *Repository) GetGoodForUpdate(ctx context.Context, goodID string) (entities.Good, error) {
	var row goodModel
	err := r.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", strings.TrimSpace(goodID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Good{}, domainerrors.ErrGoodNotFound
		}
		if isSerializationConflict(err) {
			return entities.Good{}, domainerrors.ErrRankingConflict
		}
		return entities.Good{}, r.logError("ranking_repo_get_good_for_update_failed", err,
			"good_id", strings.TrimSpace(goodID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) UpdateGood(ctx context.Context, good entities.Good) error {
	row := goodModelFromEntity(good)
	result := r.conn(ctx).
		Model(&goodModel{}).
		Where("id = ?", row.ID).
		Updates(map[string]any{
			"collection_id": row.CollectionID,
			"published":     row.Published,
			"finalized":     row.Finalized,
		})
	if result.Error != nil {
		return r.logError("ranking_repo_update_good_failed", result.Error,
			"good_id", row.ID,
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("ranking_repo_update_good_not_found",
			"good_id", row.ID,
		)
		return domainerrors.ErrGoodNotFound
	}
	return nil
}

func (r *Repository) CreateReservation(ctx context.Context, reservation entities.Reservation) error {
	if strings.TrimSpace(reservation.ID) == "" || strings.TrimSpace(reservation.GoodID) == "" {
		r.logWarn("ranking_repo_create_reservation_invalid_input",
			"reservation_id", strings.TrimSpace(reservation.ID),
			"good_id", strings.TrimSpace(reservation.GoodID),
		)
		return domainerrors.ErrInvalidReservationInput
	}
	row := reservationModelFromEntity(reservation)
	if err := r.conn(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			r.logWarn("ranking_repo_create_reservation_unique_conflict",
				"reservation_id", row.ID,
				"good_id", row.GoodID,
			)
			return domainerrors.ErrReservationExists
		}
		return r.logError("ranking_repo_create_reservation_failed", err,
			"reservation_id", row.ID,
			"good_id", row.GoodID,
		)
	}
	return nil
}

func (r *Repository) UpdateReservation(ctx context.Context, reservation entities.Reservation) error {
	row := reservationModelFromEntity(reservation)
	result := r.conn(ctx).
		Model(&reservationModel{}).
		Where("id = ?", row.ID).
		Updates(reservationUpdatesFromModel(row))
	if result.Error != nil {
		return r.logError("ranking_repo_update_reservation_failed", result.Error,
			"reservation_id", row.ID,
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("ranking_repo_update_reservation_not_found",
			"reservation_id", row.ID,
		)
		return domainerrors.ErrReservationNotFound
	}
	return nil
}

func (r *Repository) GetReservation(ctx context.Context, reservationID string) (entities.Reservation, error) {
	var row reservationModel
	err := r.conn(ctx).
		Where("id = ?", strings.TrimSpace(reservationID)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Reservation{}, domainerrors.ErrReservationNotFound
		}
		return entities.Reservation{}, r.logError("ranking_repo_get_reservation_failed", err,
			"reservation_id", strings.TrimSpace(reservationID),
		)
	}
	return row.toEntity(), nil
}

func (r *Repository) ListCurrent(ctx context.Context, goodID string) ([]entities.Reservation, error) {
	var rows []reservationModel
	if err := r.conn(ctx).
		Where("good_id = ?", strings.TrimSpace(goodID)).
		Where("status = ?", string(entities.ReservationStatusActive)).
		Where("is_current = ?", true).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ranking_repo_list_current_failed", err,
			"good_id", strings.TrimSpace(goodID),
		)
	}
	return reservationsFromModels(rows), nil
}

func (r *Repository) ListByGood(ctx context.Context, goodID string) ([]entities.Reservation, error) {
	var rows []reservationModel
	if err := r.conn(ctx).
		Where("good_id = ?", strings.TrimSpace(goodID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ranking_repo_list_by_good_failed", err,
			"good_id", strings.TrimSpace(goodID),
		)
	}
	return reservationsFromModels(rows), nil
}

func (r *Repository) ListActiveSupersededBy(ctx context.Context, reservationID string) ([]entities.Reservation, error) {
	var rows []reservationModel
	if err := r.conn(ctx).
		Where("superseded_by = ?", strings.TrimSpace(reservationID)).
		Where("status = ?", string(entities.ReservationStatusActive)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, r.logError("ranking_repo_list_active_superseded_by_failed", err,
			"reservation_id", strings.TrimSpace(reservationID),
		)
	}
	return reservationsFromModels(rows), nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return r.logError("ranking_repo_append_outbox_marshal_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	row := rankingOutboxModel{
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
		return r.logError("ranking_repo_append_outbox_insert_failed", createResult.Error,
			"outbox_id", row.OutboxID,
			"event_type", row.EventType,
		)
	}
	if createResult.RowsAffected > 0 {
		return nil
	}

	var existing rankingOutboxModel
	if err := r.conn(ctx).
		Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).
		Error; err != nil {
		return r.logError("ranking_repo_append_outbox_load_existing_failed", err,
			"outbox_id", row.OutboxID,
		)
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		r.logWarn("ranking_repo_append_outbox_payload_conflict",
			"outbox_id", row.OutboxID,
			"event_type", row.EventType,
		)
		return domainerrors.ErrInvalidReservationInput
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []rankingOutboxModel
	if err := r.conn(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ranking_repo_list_pending_outbox_failed", err,
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
		Model(&rankingOutboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("ranking_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		r.logWarn("ranking_repo_mark_outbox_published_not_found",
			"outbox_id", strings.TrimSpace(outboxID),
		)
		return domainerrors.ErrInvalidReservationInput
	}
	return nil
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+7)
	fields = append(fields,
		"event", event,
		"module", "market-core/ranking-engine",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ranking repository operation failed", fields...)
	return err
}

func (r *Repository) logWarn(event string, attrs ...any) {
	fields := make([]any, 0, len(attrs)+5)
	fields = append(fields,
		"event", event,
		"module", "market-core/ranking-engine",
		"layer", "adapter",
	)
	fields = append(fields, attrs...)
	r.logger.Warn("ranking repository warning", fields...)
}

type goodModel struct {
	ID           string    `gorm:"column:id;primaryKey"`
	CollectionID string    `gorm:"column:collection_id"`
	Published    bool      `gorm:"column:published"`
	Finalized    bool      `gorm:"column:finalized"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (goodModel) TableName() string {
	return "goods"
}

func goodModelFromEntity(good entities.Good) goodModel {
	return goodModel{
		ID:           strings.TrimSpace(good.ID),
		CollectionID: strings.TrimSpace(good.CollectionID),
		Published:    good.Published,
		Finalized:    good.Finalized,
		CreatedAt:    good.CreatedAt.UTC(),
	}
}

func (m goodModel) toEntity() entities.Good {
	return entities.Good{
		ID:           m.ID,
		CollectionID: m.CollectionID,
		Published:    m.Published,
		Finalized:    m.Finalized,
		CreatedAt:    m.CreatedAt.UTC(),
	}
}

type reservationModel struct {
	ID              string          `gorm:"column:id;primaryKey"`
	GoodID          string          `gorm:"column:good_id"`
	AccountID       string          `gorm:"column:account_id"`
	AccountType     string          `gorm:"column:account_type"`
	WalletAddress   string          `gorm:"column:wallet_address"`
	Kind            string          `gorm:"column:kind"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric(20,8)"`
	SecondaryAmount decimal.Decimal `gorm:"column:secondary_amount;type:numeric(30,18)"`
	ExchangeRate    decimal.Decimal `gorm:"column:exchange_rate;type:numeric(30,18)"`
	Status          string          `gorm:"column:status"`
	IsCurrent       bool            `gorm:"column:is_current"`
	SupersededBy    *string         `gorm:"column:superseded_by"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at"`
}

func (reservationModel) TableName() string {
	return "reservations"
}

func reservationModelFromEntity(reservation entities.Reservation) reservationModel {
	return reservationModel{
		ID:              strings.TrimSpace(reservation.ID),
		GoodID:          strings.TrimSpace(reservation.GoodID),
		AccountID:       strings.TrimSpace(reservation.AccountID),
		AccountType:     strings.TrimSpace(reservation.AccountType),
		WalletAddress:   strings.TrimSpace(reservation.WalletAddress),
		Kind:            string(reservation.Kind),
		Amount:          reservation.Amount,
		SecondaryAmount: reservation.SecondaryAmount,
		ExchangeRate:    reservation.ExchangeRate,
		Status:          string(reservation.Status),
		IsCurrent:       reservation.IsCurrent,
		SupersededBy:    normalizeOptionalString(reservation.SupersededBy),
		CreatedAt:       reservation.CreatedAt.UTC(),
		UpdatedAt:       reservation.UpdatedAt.UTC(),
	}
}

func reservationUpdatesFromModel(row reservationModel) map[string]any {
	return map[string]any{
		"status":        row.Status,
		"is_current":    row.IsCurrent,
		"superseded_by": row.SupersededBy,
		"updated_at":    row.UpdatedAt,
	}
}

func (m reservationModel) toEntity() entities.Reservation {
	return entities.Reservation{
		ID:              m.ID,
		GoodID:          m.GoodID,
		AccountID:       m.AccountID,
		AccountType:     m.AccountType,
		WalletAddress:   m.WalletAddress,
		Kind:            entities.ReservationKind(m.Kind),
		Amount:          m.Amount,
		SecondaryAmount: m.SecondaryAmount,
		ExchangeRate:    m.ExchangeRate,
		Status:          entities.ReservationStatus(m.Status),
		IsCurrent:       m.IsCurrent,
		SupersededBy:    normalizeOptionalString(m.SupersededBy),
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       m.UpdatedAt.UTC(),
	}
}

func reservationsFromModels(rows []reservationModel) []entities.Reservation {
	reservations := make([]entities.Reservation, 0, len(rows))
	for _, row := range rows {
		reservations = append(reservations, row.toEntity())
	}
	return reservations
}

type rankingOutboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (rankingOutboxModel) TableName() string {
	return "ranking_outbox"
}

func normalizeOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isSerializationConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

var _ ports.Repository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
