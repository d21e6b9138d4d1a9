package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Carts() CartRepository
	CartItems() CartItemRepository
	Books() BookRepository
	Genres() GenreRepository
	Inventory() InventoryRepository
	AuditLogs() AuditLogRepository
	Users() UserRepository
	Profiles() ProfileRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
// fnがエラーを返したらrollback。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
