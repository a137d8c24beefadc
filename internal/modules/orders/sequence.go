package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/database"
)

const nsuPrefix = "TN"

// NextNSU reserves the next order number of the day: TN + yyyymmdd + 5-digit counter.
// Must run inside tx; the day row stays locked until commit.
func NextNSU(ctx context.Context, tx *gorm.DB, now time.Time) (string, error) {
	day := now.Format("20060102")

	var seq Sequence
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&seq, "day = ?", day).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		seq = Sequence{Day: day, LastValue: 1}
		if err := tx.WithContext(ctx).Create(&seq).Error; err != nil {
			if !database.IsDuplicate(err) {
				return "", err
			}
			// lost the race for the first order of the day
			return bumpSequence(ctx, tx, day)
		}
	case err != nil:
		return "", err
	default:
		return bumpSequence(ctx, tx, day)
	}
	return formatNSU(day, seq.LastValue), nil
}

func bumpSequence(ctx context.Context, tx *gorm.DB, day string) (string, error) {
	if err := tx.WithContext(ctx).Model(&Sequence{}).
		Where("day = ?", day).
		UpdateColumn("last_value", gorm.Expr("last_value + 1")).Error; err != nil {
		return "", err
	}
	var seq Sequence
	if err := tx.WithContext(ctx).First(&seq, "day = ?", day).Error; err != nil {
		return "", err
	}
	return formatNSU(day, seq.LastValue), nil
}

func formatNSU(day string, n int) string {
	return fmt.Sprintf("%s%s%05d", nsuPrefix, day, n)
}
