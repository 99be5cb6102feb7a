package handler

import (
	"crowdfund/internal/ledger"
	"crowdfund/internal/model"
	"crowdfund/pkg/response"

	"github.com/gin-gonic/gin"
)

// ============================================================
// 活动接口
// ============================================================

// CreateCampaign 发起活动
// POST /api/v1/campaigns
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req ledger.CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	campaign, err := h.ledger.CreateCampaign(c.Request.Context(), caller(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, campaign)
}

// GetCampaign 活动详情，包含由时间推导出的阶段和进度
// GET /api/v1/campaigns/:id
func (h *Handler) GetCampaign(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}

	detail, err := h.ledger.CampaignDetail(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, detail)
}

// ReconcileCampaign 核对活动 raised 与出资余额之和
// GET /api/v1/campaigns/:id/reconcile
func (h *Handler) ReconcileCampaign(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}

	rec, err := h.ledger.ReconcileCampaign(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, rec)
}

// ListActiveCampaigns 按分类列出进行中的活动
// GET /api/v1/campaigns?category=games&limit=20
func (h *Handler) ListActiveCampaigns(c *gin.Context) {
	category := model.Category(c.Query("category"))
	if !category.Valid() {
		response.ParamError(c, "category 参数错误")
		return
	}
	limit, ok := queryInt(c, "limit", ledger.MaxPageSize)
	if !ok {
		return
	}

	list, err := h.ledger.ActiveCampaignsByCategory(c.Request.Context(), category, limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{"list": list})
}

// ListCreatorCampaigns 发起人的全部活动
// GET /api/v1/creators/:account/campaigns
func (h *Handler) ListCreatorCampaigns(c *gin.Context) {
	list, err := h.ledger.CreatorCampaigns(c.Request.Context(), c.Param("account"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": list})
}

// ListDonorCampaigns 出资人参与过的活动
// GET /api/v1/donors/:account/campaigns
func (h *Handler) ListDonorCampaigns(c *gin.Context) {
	list, err := h.ledger.DonorCampaigns(c.Request.Context(), c.Param("account"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": list})
}

// CancelRequest 取消活动请求
type CancelRequest struct {
	Reason string `json:"reason"`
}

// CancelCampaign 发起人取消活动，已出资金额可以退款
// POST /api/v1/campaigns/:id/cancel
func (h *Handler) CancelCampaign(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.ledger.CancelCampaign(c.Request.Context(), caller(c), id, req.Reason); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "活动已取消"})
}

// VerifyRequest 认证请求
type VerifyRequest struct {
	Verified *bool `json:"verified" binding:"required"`
}

// VerifyCampaign 管理员设置活动认证标记
// POST /api/v1/campaigns/:id/verify
func (h *Handler) VerifyCampaign(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.ledger.VerifyCampaign(c.Request.Context(), caller(c), id, *req.Verified); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{"verified": *req.Verified})
}

// UpdateRequest 活动动态
type UpdateRequest struct {
	Content string `json:"content" binding:"required"`
}

// AddCampaignUpdate 发起人发布活动动态
// POST /api/v1/campaigns/:id/updates
func (h *Handler) AddCampaignUpdate(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	update, err := h.ledger.AddCampaignUpdate(c.Request.Context(), caller(c), id, req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, update)
}

// ListUpdates GET /api/v1/campaigns/:id/updates
func (h *Handler) ListUpdates(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	list, err := h.ledger.Updates(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": list})
}

// ============================================================
// 出资与结算
// ============================================================

// DonateRequest 出资请求
type DonateRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// Donate 向活动出资，资金从调用方账户转入托管账户
// POST /api/v1/campaigns/:id/donate
func (h *Handler) Donate(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	var req DonateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	contribution, err := h.ledger.Donate(c.Request.Context(), caller(c), id, req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, contribution)
}

// GetContribution 查询某账户在活动中的累计出资
// GET /api/v1/campaigns/:id/contributions/:account
func (h *Handler) GetContribution(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	account := c.Param("account")
	amount, err := h.ledger.Contribution(c.Request.Context(), id, account)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"campaign_id": id,
		"contributor": account,
		"amount":      amount,
	})
}

// ListContributors 按首次出资顺序分页列出出资人
// GET /api/v1/campaigns/:id/contributors?offset=0&limit=20
func (h *Handler) ListContributors(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 20)
	if !ok {
		return
	}

	page, err := h.ledger.Contributors(c.Request.Context(), id, offset, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, page)
}

// WithdrawFunds 发起人提取成功活动的资金，扣除平台手续费
// POST /api/v1/campaigns/:id/withdraw
func (h *Handler) WithdrawFunds(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}

	settlement, err := h.ledger.WithdrawFunds(c.Request.Context(), caller(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, settlement)
}

// GetRefund 出资人在活动失败或取消后取回出资
// POST /api/v1/campaigns/:id/refund
func (h *Handler) GetRefund(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}

	amount, err := h.ledger.GetRefund(c.Request.Context(), caller(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"refunded": amount})
}

// EmergencyWithdraw 暂停期间管理员取出活动全部资金
// POST /api/v1/campaigns/:id/emergency-withdraw
func (h *Handler) EmergencyWithdraw(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}

	amount, err := h.ledger.EmergencyWithdraw(c.Request.Context(), caller(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"withdrawn": amount})
}

// ============================================================
// 里程碑
// ============================================================

// MilestoneRequest 新增里程碑请求
type MilestoneRequest struct {
	Description  string `json:"description" binding:"required"`
	TargetAmount int64  `json:"target_amount"`
}

// AddMilestone POST /api/v1/campaigns/:id/milestones
func (h *Handler) AddMilestone(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	var req MilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	milestone, err := h.ledger.AddMilestone(c.Request.Context(), caller(c), id, req.Description, req.TargetAmount)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, milestone)
}

// ListMilestones GET /api/v1/campaigns/:id/milestones
func (h *Handler) ListMilestones(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	list, err := h.ledger.Milestones(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"list": list})
}

// CompleteMilestone POST /api/v1/campaigns/:id/milestones/:index/complete
func (h *Handler) CompleteMilestone(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	index, ok := pathInt64(c, "index")
	if !ok {
		return
	}

	if err := h.ledger.CompleteMilestone(c.Request.Context(), caller(c), id, index); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"message": "里程碑已完成"})
}

// ApproveMilestone 出资人审批已完成的里程碑
// POST /api/v1/campaigns/:id/milestones/:index/approve
func (h *Handler) ApproveMilestone(c *gin.Context) {
	id, ok := pathInt64(c, "id")
	if !ok {
		return
	}
	index, ok := pathInt64(c, "index")
	if !ok {
		return
	}

	approvals, err := h.ledger.ApproveMilestone(c.Request.Context(), caller(c), id, index)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"approvals": approvals})
}
