package repository

import "context"

type CartRepository interface {
	//ユーザーのカートと明細を削除。無ければ何もしない
	DeleteByUserID(ctx context.Context, userID string) error
}
