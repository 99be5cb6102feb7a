package handler

import (
	"errors"
	"strconv"

	"crowdfund/internal/custody"
	"crowdfund/internal/infrastructure/lock"
	"crowdfund/internal/ledger"
	"crowdfund/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 统一处理器
type Handler struct {
	ledger *ledger.Ledger
	wallet *custody.Wallet
	logger *zap.Logger
}

// NewHandler 创建处理器实例
func NewHandler(l *ledger.Ledger, wallet *custody.Wallet, logger *zap.Logger) *Handler {
	return &Handler{ledger: l, wallet: wallet, logger: logger}
}

var walletErrorCodes = []struct {
	err  error
	code int
}{
	{custody.ErrInsufficientBalance, response.CodeBalanceNotEnough},
	{custody.ErrInvalidAmount, response.CodeParamError},
	{custody.ErrInvalidAccount, response.CodeInvalidAccount},
	{custody.ErrSameAccount, response.CodeInvalidAccount},
	{custody.ErrReservedAccount, response.CodeReservedAccount},
	{custody.ErrReceiverRejected, response.CodeReceiverRejected},
	{custody.ErrBalanceOverflow, response.CodeBalanceOverflow},
	{custody.ErrConcurrentUpdate, response.CodeConcurrentUpdate},
	{lock.ErrLockFailed, response.CodeLedgerBusy},
}

// fail 把账本和钱包错误转换为业务错误码，其余错误按服务器错误处理
func (h *Handler) fail(c *gin.Context, err error) {
	if code := ledger.Code(err); code != 0 {
		response.BusinessError(c, code, err.Error())
		return
	}
	for _, ec := range walletErrorCodes {
		if errors.Is(err, ec.err) {
			response.BusinessError(c, ec.code, err.Error())
			return
		}
	}
	h.logger.Error("请求处理失败",
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString(ctxRequestID)),
		zap.Error(err),
	)
	response.ServerError(c, "服务器内部错误")
}

func pathInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v < 0 {
		response.ParamError(c, name+" 参数错误")
		return 0, false
	}
	return v, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	s := c.Query(name)
	if s == "" {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		response.ParamError(c, name+" 参数错误")
		return 0, false
	}
	return v, true
}

// ============================================================
// 钱包接口
// ============================================================

// GetBalance 查询账户余额
// GET /api/v1/account/balance?account_id=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		response.ParamError(c, "account_id 参数错误")
		return
	}

	balance, err := h.wallet.Balance(c.Request.Context(), accountID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_id": accountID,
		"balance":    balance,
	})
}

// GetJournal 查询账户流水
// GET /api/v1/account/journal?account_id=xxx&page=1&page_size=20
func (h *Handler) GetJournal(c *gin.Context) {
	accountID := c.Query("account_id")
	if accountID == "" {
		response.ParamError(c, "account_id 参数错误")
		return
	}
	page, ok := queryInt(c, "page", 1)
	if !ok {
		return
	}
	pageSize, ok := queryInt(c, "page_size", 20)
	if !ok {
		return
	}

	list, total, err := h.wallet.Journal(c.Request.Context(), accountID, page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"list":      list,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// DepositRequest 充值请求，入账到调用方自己的账户
type DepositRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// Deposit 充值接口（简化版，实际应该走支付渠道）
// POST /api/v1/account/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	account, err := h.wallet.Deposit(c.Request.Context(), caller(c), req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"account_id": account.AccountID,
		"balance":    account.Balance,
	})
}

// TransferRequest 转账请求
type TransferRequest struct {
	To     string `json:"to" binding:"required"`
	Amount int64  `json:"amount" binding:"required,gt=0"`
}

// Transfer 账户间转账，托管账户不接受直接转入
// POST /api/v1/account/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.wallet.Transfer(c.Request.Context(), caller(c), req.To, req.Amount); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{
		"message": "转账成功",
	})
}
