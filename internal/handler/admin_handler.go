package handler

import (
	"crowdfund/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 平台管理接口，调用方必须是当前管理员
// ============================================================

// GetGuardState 管理员、暂停状态、费率等全局配置
// GET /api/v1/admin/state
func (h *Handler) GetGuardState(c *gin.Context) {
	state, err := h.ledger.GuardState(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, state)
}

// GetLiabilities 托管账户应持有的资金总额，用于对账
// GET /api/v1/admin/liabilities
func (h *Handler) GetLiabilities(c *gin.Context) {
	ctx := c.Request.Context()
	liabilities, err := h.ledger.Liabilities(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	custodyBalance, err := h.wallet.Balance(ctx, h.ledger.CustodyAccount())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"liabilities":     liabilities,
		"custody_balance": custodyBalance,
		"balanced":        liabilities == custodyBalance,
	})
}

// GetDenylist GET /api/v1/admin/denylist/:account
func (h *Handler) GetDenylist(c *gin.Context) {
	account := c.Param("account")
	denied, err := h.ledger.IsDenylisted(c.Request.Context(), account)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"account": account, "denied": denied})
}

// FeeRequest 费率为 0 也是合法值，所以使用指针判断是否传入
type FeeRequest struct {
	FeePercent *int64 `json:"fee_percent" binding:"required"`
}

// UpdatePlatformFee POST /api/v1/admin/fee
func (h *Handler) UpdatePlatformFee(c *gin.Context) {
	var req FeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.ledger.UpdatePlatformFee(c.Request.Context(), caller(c), *req.FeePercent); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"fee_percent": *req.FeePercent})
}

// WithdrawPlatformFees 提取累计的平台手续费
// POST /api/v1/admin/fees/withdraw
func (h *Handler) WithdrawPlatformFees(c *gin.Context) {
	amount, err := h.ledger.WithdrawPlatformFees(c.Request.Context(), caller(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"withdrawn": amount})
}

// DenylistRequest 黑名单变更
type DenylistRequest struct {
	Account string `json:"account" binding:"required"`
	Denied  *bool  `json:"denied" binding:"required"`
}

// SetDenylist POST /api/v1/admin/denylist
func (h *Handler) SetDenylist(c *gin.Context) {
	var req DenylistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.ledger.SetDenylist(c.Request.Context(), caller(c), req.Account, *req.Denied); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"account": req.Account, "denied": *req.Denied})
}

// Pause POST /api/v1/admin/pause
func (h *Handler) Pause(c *gin.Context) {
	if err := h.ledger.Pause(c.Request.Context(), caller(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"paused": true})
}

// Unpause POST /api/v1/admin/unpause
func (h *Handler) Unpause(c *gin.Context) {
	if err := h.ledger.Unpause(c.Request.Context(), caller(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"paused": false})
}

// OwnershipRequest 管理员移交请求
type OwnershipRequest struct {
	NewOwner string `json:"new_owner" binding:"required"`
}

// TransferOwnership 提名新管理员，新管理员确认后生效
// POST /api/v1/admin/ownership/transfer
func (h *Handler) TransferOwnership(c *gin.Context) {
	var req OwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.ledger.TransferOwnership(c.Request.Context(), caller(c), req.NewOwner); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"pending_owner": req.NewOwner})
}

// AcceptOwnership POST /api/v1/admin/ownership/accept
func (h *Handler) AcceptOwnership(c *gin.Context) {
	if err := h.ledger.AcceptOwnership(c.Request.Context(), caller(c)); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"owner": caller(c)})
}
