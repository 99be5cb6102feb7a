package custody

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"crowdfund/internal/model"
	"crowdfund/internal/repository"
	"crowdfund/pkg/idgen"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ============================================================================
// 钱包（宿主侧账户）
// ============================================================================
//
// 账本本身不持有资金，只通过 Move 请求宿主在同一个数据库事务内划转余额。
// 托管账户是一个保留账户，所有活动资金和平台手续费都记在这个账户上，
// 外部只能通过账本操作向它转入或转出。
//
// 【入账回调】
// 账户可以注册 ReceiveHook，每次入账后在事务内同步调用。
// 回调相当于收款方自己的逻辑获得了控制权，它可以回调账本，
// 也可以返回错误拒收，拒收会让整笔划转连同调用方的事务一起回滚。
// ============================================================================

var (
	ErrInvalidAmount       = errors.New("金额必须大于0")
	ErrInvalidAccount      = errors.New("账户标识不能为空")
	ErrSameAccount         = errors.New("不能向自己转账")
	ErrInsufficientBalance = errors.New("余额不足")
	ErrDirectTransfer      = errors.New("不允许直接向托管账户转账")
	ErrReservedAccount     = errors.New("托管账户资金只能由账本转出")
	ErrConcurrentUpdate    = errors.New("账户并发更新冲突，请重试")
	ErrReceiverRejected    = errors.New("收款方拒绝入账")
	ErrBalanceOverflow     = errors.New("账户余额超出上限")
)

// ReceiveHook 入账回调，在划转事务内、收款方余额增加之后执行
type ReceiveHook func(ctx context.Context, from string, amount int64) error

type Wallet struct {
	db              *gorm.DB
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	logger          *zap.Logger

	mu       sync.RWMutex
	hooks    map[string]ReceiveHook
	reserved map[string]bool
}

func NewWallet(db *gorm.DB, logger *zap.Logger) *Wallet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wallet{
		db:              db,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		logger:          logger,
		hooks:           make(map[string]ReceiveHook),
		reserved:        make(map[string]bool),
	}
}

// Reserve 将账户标记为保留账户（托管账户），拒绝公开充值和转账
func (w *Wallet) Reserve(accountID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reserved[accountID] = true
}

// OnReceive 注册入账回调，hook 为 nil 时取消注册
func (w *Wallet) OnReceive(accountID string, hook ReceiveHook) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if hook == nil {
		delete(w.hooks, accountID)
		return
	}
	w.hooks[accountID] = hook
}

func (w *Wallet) isReserved(accountID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.reserved[accountID]
}

func (w *Wallet) hook(accountID string) ReceiveHook {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.hooks[accountID]
}

type txKey struct{}

// conn 入账回调内再调用钱包时复用外层划转的事务，否则使用新连接
func (w *Wallet) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return w.db
}

// transaction 在外层事务内执行时是一个保存点，失败只回滚回调自己的部分
func (w *Wallet) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return w.conn(ctx).WithContext(ctx).Transaction(fn)
}

// Deposit 充值
func (w *Wallet) Deposit(ctx context.Context, accountID string, amount int64) (*model.Account, error) {
	if accountID == "" {
		return nil, ErrInvalidAccount
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if w.isReserved(accountID) {
		return nil, ErrDirectTransfer
	}

	var result *model.Account
	err := w.transaction(ctx, func(tx *gorm.DB) error {
		account, err := w.accountRepo.GetOrCreate(ctx, tx, accountID)
		if err != nil {
			return fmt.Errorf("获取账户失败: %w", err)
		}
		if account.Balance > math.MaxInt64-amount {
			return ErrBalanceOverflow
		}

		if err := w.accountRepo.Increase(ctx, tx, accountID, amount); err != nil {
			return fmt.Errorf("充值失败: %w", err)
		}

		transaction := &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			AccountID:     accountID,
			Reference:     "deposit",
			Amount:        amount,
			Type:          model.TransactionTypeDeposit,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance + amount,
		}
		if err := w.transactionRepo.Create(ctx, tx, transaction); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		result, err = w.accountRepo.GetByAccountID(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("充值成功",
		zap.String("account_id", accountID),
		zap.Int64("amount", amount),
		zap.Int64("balance", result.Balance),
	)
	return result, nil
}

// Balance 查询余额，账户不存在视为 0
func (w *Wallet) Balance(ctx context.Context, accountID string) (int64, error) {
	account, err := w.accountRepo.GetByAccountID(ctx, w.conn(ctx), accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return account.Balance, nil
}

// Transfer 账户间转账，收款方的入账回调会被触发
// 托管账户不参与公开转账，资金进出都必须经过账本操作
func (w *Wallet) Transfer(ctx context.Context, from, to string, amount int64) error {
	if w.isReserved(to) {
		return ErrDirectTransfer
	}
	if w.isReserved(from) {
		return ErrReservedAccount
	}
	return w.transaction(ctx, func(tx *gorm.DB) error {
		return w.Move(ctx, tx, from, to, amount, "transfer")
	})
}

// Move 在调用方事务内把 amount 从 from 划转到 to，并记录双边流水
// 返回错误时调用方必须回滚事务
func (w *Wallet) Move(ctx context.Context, tx *gorm.DB, from, to string, amount int64, reference string) error {
	if from == "" || to == "" {
		return ErrInvalidAccount
	}
	if from == to {
		return ErrSameAccount
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}

	source, err := w.accountRepo.GetByAccountIDForUpdate(ctx, tx, from)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrInsufficientBalance
		}
		return fmt.Errorf("查询付款账户失败: %w", err)
	}
	if source.Balance < amount {
		return ErrInsufficientBalance
	}

	target, err := w.accountRepo.GetOrCreate(ctx, tx, to)
	if err != nil {
		return fmt.Errorf("获取收款账户失败: %w", err)
	}
	if target.Balance > math.MaxInt64-amount {
		return ErrBalanceOverflow
	}

	if err := w.accountRepo.Deduct(ctx, tx, from, amount, source.Version); err != nil {
		switch {
		case errors.Is(err, repository.ErrBalanceNotEnough):
			return ErrInsufficientBalance
		case errors.Is(err, repository.ErrOptimisticLock):
			return ErrConcurrentUpdate
		}
		return fmt.Errorf("扣款失败: %w", err)
	}
	if err := w.accountRepo.Increase(ctx, tx, to, amount); err != nil {
		return fmt.Errorf("入账失败: %w", err)
	}

	debit := &model.AccountTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		AccountID:     from,
		Counterparty:  to,
		Reference:     reference,
		Amount:        -amount,
		Type:          model.TransactionTypeDebit,
		BalanceBefore: source.Balance,
		BalanceAfter:  source.Balance - amount,
	}
	credit := &model.AccountTransaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		AccountID:     to,
		Counterparty:  from,
		Reference:     reference,
		Amount:        amount,
		Type:          model.TransactionTypeCredit,
		BalanceBefore: target.Balance,
		BalanceAfter:  target.Balance + amount,
	}
	if err := w.transactionRepo.Create(ctx, tx, debit); err != nil {
		return fmt.Errorf("记录出账流水失败: %w", err)
	}
	if err := w.transactionRepo.Create(ctx, tx, credit); err != nil {
		return fmt.Errorf("记录入账流水失败: %w", err)
	}

	if hook := w.hook(to); hook != nil {
		if err := hook(context.WithValue(ctx, txKey{}, tx), from, amount); err != nil {
			w.logger.Warn("收款方拒绝入账",
				zap.String("from", from),
				zap.String("to", to),
				zap.Int64("amount", amount),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %v", ErrReceiverRejected, err)
		}
	}

	w.logger.Debug("划转完成",
		zap.String("from", from),
		zap.String("to", to),
		zap.Int64("amount", amount),
		zap.String("reference", reference),
	)
	return nil
}

// Journal 分页查询账户流水，按时间倒序
func (w *Wallet) Journal(ctx context.Context, accountID string, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return w.transactionRepo.ListByAccountID(ctx, w.conn(ctx), accountID, page, pageSize)
}
