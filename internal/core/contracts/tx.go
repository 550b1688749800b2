package contracts

import "context"

// Transactor runs fn inside a database transaction carried on the
// context. fn returning an error rolls the transaction back.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
