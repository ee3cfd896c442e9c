package dynamodb

import (
	"context"
	"errors"
	"fmt"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	pkgerrors "swapcourses-backend/pkg/errors"
)

// conflictMessage marks a transact item whose conditional failure means
// a business conflict rather than a lost version race.
type txItem struct {
	item            types.TransactWriteItem
	conflictMessage string
}

// txBuilder accumulates the writes of one atomic mutation and maps a
// cancellation back to the error taxonomy: a failed condition on an
// item carrying a conflict message surfaces as Conflict, any other
// failed condition as a Store-level version conflict.
type txBuilder struct {
	operation string
	items     []txItem
}

func newTx(operation string) *txBuilder {
	return &txBuilder{operation: operation}
}

func (b *txBuilder) put(p *types.Put) {
	b.items = append(b.items, txItem{item: types.TransactWriteItem{Put: p}})
}

// putGuard adds a put whose conditional failure is a business conflict.
func (b *txBuilder) putGuard(p *types.Put, conflictMessage string) {
	b.items = append(b.items, txItem{
		item:            types.TransactWriteItem{Put: p},
		conflictMessage: conflictMessage,
	})
}

func (b *txBuilder) update(u *types.Update) {
	b.items = append(b.items, txItem{item: types.TransactWriteItem{Update: u}})
}

func (b *txBuilder) delete(d *types.Delete) {
	b.items = append(b.items, txItem{item: types.TransactWriteItem{Delete: d}})
}

func (b *txBuilder) empty() bool { return len(b.items) == 0 }

// execute runs the transaction and translates failures.
func (b *txBuilder) execute(ctx context.Context, client *awsdynamodb.Client) error {
	if b.empty() {
		return nil
	}
	items := make([]types.TransactWriteItem, len(b.items))
	for i, it := range b.items {
		items[i] = it.item
	}

	_, err := client.TransactWriteItems(ctx, &awsdynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err == nil {
		return nil
	}

	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for i, reason := range canceled.CancellationReasons {
			if reason.Code == nil || *reason.Code != "ConditionalCheckFailed" {
				continue
			}
			if i < len(b.items) && b.items[i].conflictMessage != "" {
				return pkgerrors.NewConflictError(b.items[i].conflictMessage)
			}
			return pkgerrors.NewStoreError(b.operation,
				fmt.Errorf("version conflict: concurrent modification"))
		}
	}
	return pkgerrors.NewStoreError(b.operation, err)
}
