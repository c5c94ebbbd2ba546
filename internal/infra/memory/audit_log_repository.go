package memory

import (
	"context"
	"time"

	"github.com/rs-labo46/ec-checkout/internal/domain/model"
	repo "github.com/rs-labo46/ec-checkout/internal/repository"
)

type AuditLogRepository struct{ sc scope }

func (r *AuditLogRepository) Create(ctx context.Context, log model.AuditLog) error {
	defer r.sc.lock()()

	log.ID = r.sc.s.nextID()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	r.sc.s.auditLogs = append(r.sc.s.auditLogs, log)
	return nil
}

func (r *AuditLogRepository) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	defer r.sc.lock()()

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	out := make([]model.AuditLog, 0)
	//新しい順
	for i := len(r.sc.s.auditLogs) - 1; i >= 0; i-- {
		l := r.sc.s.auditLogs[i]
		if filter.Action != nil && l.Action != *filter.Action {
			continue
		}
		if filter.ResourceType != nil && l.ResourceType != *filter.ResourceType {
			continue
		}
		if filter.ResourceID != nil && l.ResourceID != *filter.ResourceID {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		out = append(out, l)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
