package repository

import (
	"context"
	"errors"

	repo "thekua/internal/repository"

	"gorm.io/gorm"
)

// 1件取得。見つからなければ repo.ErrNotFound
func findOne[T any](ctx context.Context, db *gorm.DB, query string, args ...interface{}) (T, error) {
	var out T
	err := db.WithContext(ctx).Where(query, args...).First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		var zero T
		return zero, repo.ErrNotFound
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// 更新/削除で対象が無かったら repo.ErrNotFound
func mustAffect(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// page/limit を offset に直す
func pageOffset(page int, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
