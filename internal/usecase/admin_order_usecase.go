package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
	repo "github.com/rs-labo46/ec-checkout/internal/repository"
)

// 運用者向けの確認用。見るだけで修復はしない。
type AdminOrderUsecase struct {
	tx        repo.TransactionManager
	auditRepo repo.AuditLogRepository
	now       func() time.Time
}

func NewAdminOrderUsecase(tx repo.TransactionManager, auditRepo repo.AuditLogRepository) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, auditRepo: auditRepo, now: time.Now}
}

type ListOrphansInput struct {
	OlderThan time.Duration
	Limit     int
}

// 決済IDが付かないまま OlderThan 以上たったPENDING注文。
func (u *AdminOrderUsecase) ListOrphans(ctx context.Context, in ListOrphansInput) ([]OrderOutput, error) {
	if in.OlderThan < 0 {
		return []OrderOutput{}, invalidArgument("invalid older_than")
	}
	if in.Limit == 0 {
		in.Limit = 50
	}
	if in.Limit < 1 || in.Limit > 200 {
		return []OrderOutput{}, invalidArgument("invalid limit")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListPendingWithoutIntent(ctx, u.now().Add(-in.OlderThan), in.Limit)
		if err != nil {
			return dbError(err)
		}

		outs, err = withItems(ctx, r, orders)
		return err
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

type ListAuditLogsInput struct {
	Action     string
	ResourceID int64
	Limit      int
	Offset     int
}

func (u *AdminOrderUsecase) ListAuditLogs(ctx context.Context, in ListAuditLogsInput) ([]model.AuditLog, error) {
	if in.Limit < 0 || in.Limit > 200 {
		return []model.AuditLog{}, invalidArgument("invalid limit")
	}
	if in.Offset < 0 {
		return []model.AuditLog{}, invalidArgument("invalid offset")
	}

	f := repo.AuditLogFilter{Limit: in.Limit, Offset: in.Offset}

	if a := strings.TrimSpace(in.Action); a != "" {
		action := model.AuditAction(strings.ToUpper(a))
		switch action {
		case model.AuditActionStockShortfall, model.AuditActionOrderPaid:
		default:
			return []model.AuditLog{}, invalidArgument("invalid action")
		}
		f.Action = &action
	}
	if in.ResourceID > 0 {
		rt := model.AuditResourceOrder
		f.ResourceType = &rt
		f.ResourceID = &in.ResourceID
	}

	logs, err := u.auditRepo.List(ctx, f)
	if err != nil {
		return []model.AuditLog{}, dbError(err)
	}
	return logs, nil
}
