package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"courtpay/contexts/settlement-core/settlement-service/domain/entities"
	domainerrors "courtpay/contexts/settlement-core/settlement-service/domain/errors"
	"courtpay/contexts/settlement-core/settlement-service/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the durable adapter behind the ledger, idempotency, and
// outbox ports. It reads the same payment_groups/payment_fees tables the
// payment-group context writes.
type Repository struct {
	DB *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return Repository{DB: db}
}

type groupModel struct {
	GroupReference string `gorm:"column:group_reference;primaryKey"`
	CCDCaseNumber  string `gorm:"column:ccd_case_number"`
	CallbackURL    string `gorm:"column:callback_url"`
}

func (groupModel) TableName() string { return "payment_groups" }

// feeModel maps the subset of payment_fees columns the settlement context
// reads and writes.
type feeModel struct {
	FeeID            string          `gorm:"column:fee_id;primaryKey"`
	GroupReference   string          `gorm:"column:group_reference;index"`
	Code             string          `gorm:"column:code"`
	CalculatedAmount decimal.Decimal `gorm:"column:calculated_amount;type:numeric(18,2)"`
	NetAmount        decimal.Decimal `gorm:"column:net_amount;type:numeric(18,2)"`
	AmountDue        decimal.Decimal `gorm:"column:amount_due;type:numeric(18,2)"`
	AllocatedAmount  decimal.Decimal `gorm:"column:allocated_amount;type:numeric(18,2)"`
	CCDCaseNumber    string          `gorm:"column:ccd_case_number"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
}

func (feeModel) TableName() string { return "payment_fees" }

type paymentModel struct {
	PaymentID         string          `gorm:"column:payment_id;primaryKey"`
	PaymentReference  string          `gorm:"column:payment_reference;uniqueIndex"`
	GroupReference    string          `gorm:"column:group_reference;index"`
	Amount            decimal.Decimal `gorm:"column:amount;type:numeric(18,2)"`
	Currency          string          `gorm:"column:currency"`
	Channel           string          `gorm:"column:channel"`
	Method            string          `gorm:"column:method"`
	Provider          string          `gorm:"column:provider"`
	ExternalReference string          `gorm:"column:external_reference"`
	PBAAccountNumber  string          `gorm:"column:pba_account_number"`
	CustomerReference string          `gorm:"column:customer_reference"`
	OrganisationName  string          `gorm:"column:organisation_name"`
	CCDCaseNumber     string          `gorm:"column:ccd_case_number"`
	Status            string          `gorm:"column:status"`
	ErrorCode         string          `gorm:"column:error_code"`
	ErrorMessage      string          `gorm:"column:error_message"`
	CreatedAt         time.Time       `gorm:"column:created_at"`
	UpdatedAt         time.Time       `gorm:"column:updated_at"`
}

func (paymentModel) TableName() string { return "payments" }

type apportionModel struct {
	ApportionID     string          `gorm:"column:apportion_id;primaryKey"`
	PaymentID       string          `gorm:"column:payment_id;index"`
	FeeID           string          `gorm:"column:fee_id;index"`
	ApportionAmount decimal.Decimal `gorm:"column:apportion_amount;type:numeric(18,2)"`
	ApportionType   string          `gorm:"column:apportion_type"`
	CCDCaseNumber   string          `gorm:"column:ccd_case_number"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
}

func (apportionModel) TableName() string { return "fee_pay_apportions" }

type idempotencyModel struct {
	ServiceRequestReference string    `gorm:"column:service_request_reference;primaryKey"`
	IdempotencyKey          string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash             string    `gorm:"column:request_hash"`
	ResponseStatus          int       `gorm:"column:response_status"`
	ResponseBody            []byte    `gorm:"column:response_body"`
	State                   string    `gorm:"column:state"`
	CreatedAt               time.Time `gorm:"column:created_at"`
	UpdatedAt               time.Time `gorm:"column:updated_at"`
}

func (idempotencyModel) TableName() string { return "idempotency_keys" }

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
}

func (outboxModel) TableName() string { return "callback_outbox" }

func (r Repository) LoadGroupForUpdate(ctx context.Context, groupReference string) (entities.ServiceRequest, error) {
	var group groupModel
	err := r.DB.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("group_reference = ?", groupReference).
		First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.ServiceRequest{}, domainerrors.ErrServiceRequestNotFound
	}
	if err != nil {
		return entities.ServiceRequest{}, err
	}

	var fees []feeModel
	if err := r.DB.WithContext(ctx).
		Where("group_reference = ?", groupReference).
		Order("created_at ASC, fee_id ASC").
		Find(&fees).Error; err != nil {
		return entities.ServiceRequest{}, err
	}

	out := entities.ServiceRequest{
		GroupReference: group.GroupReference,
		CCDCaseNumber:  group.CCDCaseNumber,
		CallbackURL:    group.CallbackURL,
		Fees:           make([]entities.Fee, 0, len(fees)),
	}
	for _, fee := range fees {
		out.Fees = append(out.Fees, feeToEntity(fee))
	}
	return out, nil
}

func (r Repository) SavePayment(ctx context.Context, payment entities.Payment) error {
	return r.DB.WithContext(ctx).Create(paymentFromEntity(payment)).Error
}

func (r Repository) UpdatePayment(ctx context.Context, payment entities.Payment) error {
	result := r.DB.WithContext(ctx).
		Model(&paymentModel{}).
		Where("payment_id = ?", payment.PaymentID).
		Updates(map[string]any{
			"status":        string(payment.Status),
			"error_code":    payment.ErrorCode,
			"error_message": payment.ErrorMessage,
			"updated_at":    payment.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrPaymentNotFound
	}
	return nil
}

func (r Repository) GetPayment(ctx context.Context, paymentReference string) (entities.Payment, error) {
	var model paymentModel
	err := r.DB.WithContext(ctx).
		Where("payment_reference = ?", paymentReference).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.Payment{}, domainerrors.ErrPaymentNotFound
	}
	if err != nil {
		return entities.Payment{}, err
	}
	return paymentToEntity(model), nil
}

// SaveSettlement commits the payment, fee balances, allocation rows, the
// callback outbox event, and the idempotency completion in one transaction.
func (r Repository) SaveSettlement(ctx context.Context, write ports.SettlementWrite) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}},
			UpdateAll: true,
		}).Create(paymentFromEntity(write.Payment)).Error; err != nil {
			return err
		}

		for _, fee := range write.Fees {
			result := tx.Model(&feeModel{}).
				Where("fee_id = ?", fee.FeeID).
				Updates(map[string]any{
					"amount_due":       fee.AmountDue,
					"allocated_amount": fee.AllocatedAmount,
					"updated_at":       fee.UpdatedAt,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domainerrors.ErrServiceRequestNotFound
			}
		}

		for _, apportion := range write.Apportions {
			if err := tx.Create(apportionFromEntity(apportion)).Error; err != nil {
				return err
			}
		}

		if write.Callback != nil {
			payload, err := json.Marshal(write.Callback)
			if err != nil {
				return err
			}
			if err := tx.Create(&outboxModel{
				OutboxID:     write.Callback.EventID,
				EventType:    write.Callback.EventType,
				PartitionKey: write.Callback.PartitionKey,
				Payload:      payload,
				CreatedAt:    write.Callback.OccurredAt,
			}).Error; err != nil {
				return err
			}
		}

		if write.Idempotency != nil {
			record := write.Idempotency
			result := tx.Model(&idempotencyModel{}).
				Where("service_request_reference = ? AND idempotency_key = ?",
					record.ServiceRequestReference, record.IdempotencyKey).
				Updates(map[string]any{
					"response_status": record.ResponseStatus,
					"response_body":   record.ResponseBody,
					"state":           string(entities.IdempotencyStateCompleted),
					"updated_at":      record.UpdatedAt,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return domainerrors.ErrTryAgain
			}
		}
		return nil
	})
}

func (r Repository) ListApportionsByPayment(ctx context.Context, paymentID string) ([]entities.FeePayApportion, error) {
	var models []apportionModel
	if err := r.DB.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC, apportion_id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]entities.FeePayApportion, 0, len(models))
	for _, model := range models {
		out = append(out, apportionToEntity(model))
	}
	return out, nil
}

// InsertPendingRecord races concurrent submitters on the composite primary
// key. ON CONFLICT DO NOTHING turns the unique violation into RowsAffected
// == 0, which the caller treats as "someone else holds this key".
func (r Repository) InsertPendingRecord(ctx context.Context, record entities.IdempotencyRecord) (bool, error) {
	result := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&idempotencyModel{
			ServiceRequestReference: record.ServiceRequestReference,
			IdempotencyKey:          record.IdempotencyKey,
			RequestHash:             record.RequestHash,
			State:                   string(record.State),
			CreatedAt:               record.CreatedAt,
			UpdatedAt:               record.UpdatedAt,
		})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r Repository) GetRecord(ctx context.Context, serviceRequestReference string, idempotencyKey string) (entities.IdempotencyRecord, bool, error) {
	var model idempotencyModel
	err := r.DB.WithContext(ctx).
		Where("service_request_reference = ? AND idempotency_key = ?", serviceRequestReference, idempotencyKey).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return entities.IdempotencyRecord{}, false, err
	}
	return entities.IdempotencyRecord{
		ServiceRequestReference: model.ServiceRequestReference,
		IdempotencyKey:          model.IdempotencyKey,
		RequestHash:             model.RequestHash,
		ResponseStatus:          model.ResponseStatus,
		ResponseBody:            model.ResponseBody,
		State:                   entities.IdempotencyState(model.State),
		CreatedAt:               model.CreatedAt,
		UpdatedAt:               model.UpdatedAt,
	}, true, nil
}

func (r Repository) CompleteRecord(ctx context.Context, serviceRequestReference string, idempotencyKey string, status int, body []byte) error {
	result := r.DB.WithContext(ctx).
		Model(&idempotencyModel{}).
		Where("service_request_reference = ? AND idempotency_key = ?", serviceRequestReference, idempotencyKey).
		Updates(map[string]any{
			"response_status": status,
			"response_body":   body,
			"state":           string(entities.IdempotencyStateCompleted),
			"updated_at":      time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrTryAgain
	}
	return nil
}

func (r Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	var models []outboxModel
	if err := r.DB.WithContext(ctx).
		Where("published_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]ports.OutboxMessage, 0, len(models))
	for _, model := range models {
		out = append(out, ports.OutboxMessage{
			OutboxID:     model.OutboxID,
			EventType:    model.EventType,
			PartitionKey: model.PartitionKey,
			Payload:      model.Payload,
			CreatedAt:    model.CreatedAt,
		})
	}
	return out, nil
}

func (r Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	return r.DB.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", outboxID).
		Update("published_at", publishedAt).Error
}

func paymentFromEntity(payment entities.Payment) *paymentModel {
	return &paymentModel{
		PaymentID:         payment.PaymentID,
		PaymentReference:  payment.PaymentReference,
		GroupReference:    payment.GroupReference,
		Amount:            payment.Amount,
		Currency:          payment.Currency,
		Channel:           payment.Channel,
		Method:            payment.Method,
		Provider:          payment.Provider,
		ExternalReference: payment.ExternalReference,
		PBAAccountNumber:  payment.PBAAccountNumber,
		CustomerReference: payment.CustomerReference,
		OrganisationName:  payment.OrganisationName,
		CCDCaseNumber:     payment.CCDCaseNumber,
		Status:            string(payment.Status),
		ErrorCode:         payment.ErrorCode,
		ErrorMessage:      payment.ErrorMessage,
		CreatedAt:         payment.CreatedAt,
		UpdatedAt:         payment.UpdatedAt,
	}
}

func paymentToEntity(model paymentModel) entities.Payment {
	return entities.Payment{
		PaymentID:         model.PaymentID,
		PaymentReference:  model.PaymentReference,
		GroupReference:    model.GroupReference,
		Amount:            model.Amount,
		Currency:          model.Currency,
		Channel:           model.Channel,
		Method:            model.Method,
		Provider:          model.Provider,
		ExternalReference: model.ExternalReference,
		PBAAccountNumber:  model.PBAAccountNumber,
		CustomerReference: model.CustomerReference,
		OrganisationName:  model.OrganisationName,
		CCDCaseNumber:     model.CCDCaseNumber,
		Status:            entities.PaymentStatus(model.Status),
		ErrorCode:         model.ErrorCode,
		ErrorMessage:      model.ErrorMessage,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}

func apportionFromEntity(apportion entities.FeePayApportion) *apportionModel {
	return &apportionModel{
		ApportionID:     apportion.ApportionID,
		PaymentID:       apportion.PaymentID,
		FeeID:           apportion.FeeID,
		ApportionAmount: apportion.ApportionAmount,
		ApportionType:   string(apportion.ApportionType),
		CCDCaseNumber:   apportion.CCDCaseNumber,
		CreatedAt:       apportion.CreatedAt,
	}
}

func apportionToEntity(model apportionModel) entities.FeePayApportion {
	return entities.FeePayApportion{
		ApportionID:     model.ApportionID,
		PaymentID:       model.PaymentID,
		FeeID:           model.FeeID,
		ApportionAmount: model.ApportionAmount,
		ApportionType:   entities.ApportionType(model.ApportionType),
		CCDCaseNumber:   model.CCDCaseNumber,
		CreatedAt:       model.CreatedAt,
	}
}

func feeToEntity(model feeModel) entities.Fee {
	return entities.Fee{
		FeeID:            model.FeeID,
		GroupReference:   model.GroupReference,
		Code:             model.Code,
		CalculatedAmount: model.CalculatedAmount,
		NetAmount:        model.NetAmount,
		AmountDue:        model.AmountDue,
		AllocatedAmount:  model.AllocatedAmount,
		CCDCaseNumber:    model.CCDCaseNumber,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
