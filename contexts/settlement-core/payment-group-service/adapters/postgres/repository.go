package postgresadapter

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"courtpay/contexts/settlement-core/payment-group-service/domain/entities"
	domainerrors "courtpay/contexts/settlement-core/payment-group-service/domain/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
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

func (r *Repository) CreateGroup(ctx context.Context, group entities.PaymentGroup) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := groupModelFromEntity(group)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrInvalidGroupInput
			}
			return err
		}
		for _, fee := range group.Fees {
			feeRow := feeModelFromEntity(fee)
			if err := tx.Create(&feeRow).Error; err != nil {
				if isUniqueViolation(err) {
					return domainerrors.ErrDuplicateFeeCode
				}
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetGroup(ctx context.Context, groupReference string) (entities.PaymentGroup, error) {
	var row groupModel
	err := r.db.WithContext(ctx).
		Where("group_reference = ?", strings.TrimSpace(groupReference)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.PaymentGroup{}, domainerrors.ErrGroupNotFound
		}
		return entities.PaymentGroup{}, err
	}

	var feeRows []feeModel
	if err := r.db.WithContext(ctx).
		Where("group_reference = ?", row.GroupReference).
		Order("created_at ASC, fee_id ASC").
		Find(&feeRows).
		Error; err != nil {
		return entities.PaymentGroup{}, err
	}

	group := row.toEntity()
	for _, feeRow := range feeRows {
		group.Fees = append(group.Fees, feeRow.toEntity())
	}
	return group, nil
}

func (r *Repository) AppendFee(ctx context.Context, fee entities.Fee) error {
	row := feeModelFromEntity(fee)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return domainerrors.ErrDuplicateFeeCode
		}
		return err
	}
	return nil
}

// SaveRemission writes the remission row and the fee's recomputed balances in
// one transaction.
func (r *Repository) SaveRemission(ctx context.Context, remission entities.Remission, fee entities.Fee) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := remissionModelFromEntity(remission)
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return domainerrors.ErrInvalidWaiverAmount
			}
			return err
		}

		result := tx.Model(&feeModel{}).
			Where("fee_id = ?", strings.TrimSpace(fee.FeeID)).
			Updates(map[string]any{
				"net_amount": fee.NetAmount,
				"amount_due": fee.AmountDue,
				"updated_at": fee.UpdatedAt.UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domainerrors.ErrFeeNotFound
		}
		return nil
	})
}

func (r *Repository) GetRemission(ctx context.Context, remissionReference string) (entities.Remission, error) {
	var row remissionModel
	err := r.db.WithContext(ctx).
		Where("remission_reference = ?", strings.TrimSpace(remissionReference)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Remission{}, domainerrors.ErrRemissionNotFound
		}
		return entities.Remission{}, err
	}
	return row.toEntity(), nil
}

func (r *Repository) ListRemissionsByFee(ctx context.Context, feeID string) ([]entities.Remission, error) {
	var rows []remissionModel
	if err := r.db.WithContext(ctx).
		Where("fee_id = ?", strings.TrimSpace(feeID)).
		Order("created_at ASC").
		Find(&rows).
		Error; err != nil {
		return nil, err
	}

	items := make([]entities.Remission, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type groupModel struct {
	GroupReference string    `gorm:"column:group_reference;primaryKey"`
	CCDCaseNumber  string    `gorm:"column:ccd_case_number"`
	CaseReference  string    `gorm:"column:case_reference"`
	ServiceCode    string    `gorm:"column:service_code"`
	CaseType       string    `gorm:"column:case_type"`
	CallbackURL    string    `gorm:"column:callback_url"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (groupModel) TableName() string {
	return "payment_groups"
}

func groupModelFromEntity(item entities.PaymentGroup) groupModel {
	return groupModel{
		GroupReference: strings.TrimSpace(item.GroupReference),
		CCDCaseNumber:  strings.TrimSpace(item.CCDCaseNumber),
		CaseReference:  strings.TrimSpace(item.CaseReference),
		ServiceCode:    strings.TrimSpace(item.ServiceCode),
		CaseType:       strings.TrimSpace(item.CaseType),
		CallbackURL:    strings.TrimSpace(item.CallbackURL),
		CreatedAt:      item.CreatedAt.UTC(),
		UpdatedAt:      item.UpdatedAt.UTC(),
	}
}

func (m groupModel) toEntity() entities.PaymentGroup {
	return entities.PaymentGroup{
		GroupReference: m.GroupReference,
		CCDCaseNumber:  m.CCDCaseNumber,
		CaseReference:  m.CaseReference,
		ServiceCode:    m.ServiceCode,
		CaseType:       m.CaseType,
		CallbackURL:    m.CallbackURL,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}
}

type feeModel struct {
	FeeID            string          `gorm:"column:fee_id;primaryKey"`
	GroupReference   string          `gorm:"column:group_reference;index"`
	Code             string          `gorm:"column:code"`
	Version          string          `gorm:"column:version"`
	Volume           int             `gorm:"column:volume"`
	FeeAmount        decimal.Decimal `gorm:"column:fee_amount;type:numeric(18,2)"`
	CalculatedAmount decimal.Decimal `gorm:"column:calculated_amount;type:numeric(18,2)"`
	NetAmount        decimal.Decimal `gorm:"column:net_amount;type:numeric(18,2)"`
	AmountDue        decimal.Decimal `gorm:"column:amount_due;type:numeric(18,2)"`
	AllocatedAmount  decimal.Decimal `gorm:"column:allocated_amount;type:numeric(18,2)"`
	CCDCaseNumber    string          `gorm:"column:ccd_case_number"`
	CaseReference    string          `gorm:"column:case_reference"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
}

func (feeModel) TableName() string {
	return "payment_fees"
}

func feeModelFromEntity(item entities.Fee) feeModel {
	return feeModel{
		FeeID:            strings.TrimSpace(item.FeeID),
		GroupReference:   strings.TrimSpace(item.GroupReference),
		Code:             strings.TrimSpace(item.Code),
		Version:          strings.TrimSpace(item.Version),
		Volume:           item.Volume,
		FeeAmount:        item.FeeAmount,
		CalculatedAmount: item.CalculatedAmount,
		NetAmount:        item.NetAmount,
		AmountDue:        item.AmountDue,
		AllocatedAmount:  item.AllocatedAmount,
		CCDCaseNumber:    strings.TrimSpace(item.CCDCaseNumber),
		CaseReference:    strings.TrimSpace(item.CaseReference),
		CreatedAt:        item.CreatedAt.UTC(),
		UpdatedAt:        item.UpdatedAt.UTC(),
	}
}

func (m feeModel) toEntity() entities.Fee {
	return entities.Fee{
		FeeID:            m.FeeID,
		GroupReference:   m.GroupReference,
		Code:             m.Code,
		Version:          m.Version,
		Volume:           m.Volume,
		FeeAmount:        m.FeeAmount,
		CalculatedAmount: m.CalculatedAmount,
		NetAmount:        m.NetAmount,
		AmountDue:        m.AmountDue,
		AllocatedAmount:  m.AllocatedAmount,
		CCDCaseNumber:    m.CCDCaseNumber,
		CaseReference:    m.CaseReference,
		CreatedAt:        m.CreatedAt.UTC(),
		UpdatedAt:        m.UpdatedAt.UTC(),
	}
}

type remissionModel struct {
	RemissionReference string          `gorm:"column:remission_reference;primaryKey"`
	GroupReference     string          `gorm:"column:group_reference;index"`
	FeeID              string          `gorm:"column:fee_id;index"`
	FeeCode            string          `gorm:"column:fee_code"`
	HwfReference       string          `gorm:"column:hwf_reference"`
	HwfAmount          decimal.Decimal `gorm:"column:hwf_amount;type:numeric(18,2)"`
	BeneficiaryName    string          `gorm:"column:beneficiary_name"`
	Retrospective      bool            `gorm:"column:retrospective"`
	CreatedAt          time.Time       `gorm:"column:created_at"`
}

func (remissionModel) TableName() string {
	return "remissions"
}

func remissionModelFromEntity(item entities.Remission) remissionModel {
	return remissionModel{
		RemissionReference: strings.TrimSpace(item.RemissionReference),
		GroupReference:     strings.TrimSpace(item.GroupReference),
		FeeID:              strings.TrimSpace(item.FeeID),
		FeeCode:            strings.TrimSpace(item.FeeCode),
		HwfReference:       strings.TrimSpace(item.HwfReference),
		HwfAmount:          item.HwfAmount,
		BeneficiaryName:    strings.TrimSpace(item.BeneficiaryName),
		Retrospective:      item.Retrospective,
		CreatedAt:          item.CreatedAt.UTC(),
	}
}

func (m remissionModel) toEntity() entities.Remission {
	return entities.Remission{
		RemissionReference: m.RemissionReference,
		GroupReference:     m.GroupReference,
		FeeID:              m.FeeID,
		FeeCode:            m.FeeCode,
		HwfReference:       m.HwfReference,
		HwfAmount:          m.HwfAmount,
		BeneficiaryName:    m.BeneficiaryName,
		Retrospective:      m.Retrospective,
		CreatedAt:          m.CreatedAt.UTC(),
	}
}
