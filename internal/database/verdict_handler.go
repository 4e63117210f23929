package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jxsl13/TeeworldsDiscordBot/internal/domain"
	"github.com/jxsl13/TeeworldsDiscordBot/internal/vpn"
)

const verdictInsertBatchSize = 500

// VerdictBackend stores the verdict cache in the ip_verdicts table.
type VerdictBackend struct {
	db *gorm.DB
}

var _ vpn.Backend = (*VerdictBackend)(nil)

func NewVerdictBackend(db *gorm.DB) *VerdictBackend {
	return &VerdictBackend{db: db}
}

func (b *VerdictBackend) Load(ctx context.Context) (map[string]bool, error) {
	if b.db == nil {
		return nil, errors.New("database not initialised")
	}

	var rows []domain.IPVerdict
	if err := b.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}

	verdicts := make(map[string]bool, len(rows))
	for _, row := range rows {
		verdicts[row.IP] = row.IsVPN
	}
	return verdicts, nil
}

// Save upserts every verdict. Rows are never deleted, matching the cache.
func (b *VerdictBackend) Save(ctx context.Context, verdicts map[string]bool) error {
	if b.db == nil {
		return errors.New("database not initialised")
	}
	if len(verdicts) == 0 {
		return nil
	}

	now := time.Now().UTC()
	records := make([]domain.IPVerdict, 0, len(verdicts))
	for ip, isVPN := range verdicts {
		records = append(records, domain.IPVerdict{IP: ip, IsVPN: isVPN, UpdatedAt: now})
	}

	return b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ip"}},
		DoUpdates: clause.Assignments(map[string]any{
			"is_vpn":     gorm.Expr("EXCLUDED.is_vpn"),
			"updated_at": gorm.Expr("EXCLUDED.updated_at"),
		}),
	}).CreateInBatches(&records, verdictInsertBatchSize).Error
}
