package handler

import (
	"crowdfund/internal/custody"
	"crowdfund/internal/infrastructure/lock"
	"crowdfund/internal/ledger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SetupRouter 配置路由
// 查询接口直接读取已提交状态，写接口先经过账户校验和串行化锁
func SetupRouter(l *ledger.Ledger, wallet *custody.Wallet, locker lock.Locker, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	// 注册中间件
	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(l, wallet, logger)

	write := []gin.HandlerFunc{AccountMiddleware(), SerializeMiddleware(locker, logger)}

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 钱包
		account := api.Group("/account")
		{
			account.GET("/balance", h.GetBalance)
			account.GET("/journal", h.GetJournal)
			account.POST("/deposit", append(write, h.Deposit)...)
			account.POST("/transfer", append(write, h.Transfer)...)
		}

		// 活动
		campaigns := api.Group("/campaigns")
		{
			campaigns.GET("", h.ListActiveCampaigns)
			campaigns.GET("/:id", h.GetCampaign)
			campaigns.GET("/:id/reconcile", h.ReconcileCampaign)
			campaigns.GET("/:id/contributors", h.ListContributors)
			campaigns.GET("/:id/contributions/:account", h.GetContribution)
			campaigns.GET("/:id/updates", h.ListUpdates)
			campaigns.GET("/:id/milestones", h.ListMilestones)

			campaigns.POST("", append(write, h.CreateCampaign)...)
			campaigns.POST("/:id/cancel", append(write, h.CancelCampaign)...)
			campaigns.POST("/:id/verify", append(write, h.VerifyCampaign)...)
			campaigns.POST("/:id/updates", append(write, h.AddCampaignUpdate)...)
			campaigns.POST("/:id/donate", append(write, h.Donate)...)
			campaigns.POST("/:id/withdraw", append(write, h.WithdrawFunds)...)
			campaigns.POST("/:id/refund", append(write, h.GetRefund)...)
			campaigns.POST("/:id/emergency-withdraw", append(write, h.EmergencyWithdraw)...)
			campaigns.POST("/:id/milestones", append(write, h.AddMilestone)...)
			campaigns.POST("/:id/milestones/:index/complete", append(write, h.CompleteMilestone)...)
			campaigns.POST("/:id/milestones/:index/approve", append(write, h.ApproveMilestone)...)
		}

		api.GET("/creators/:account/campaigns", h.ListCreatorCampaigns)
		api.GET("/donors/:account/campaigns", h.ListDonorCampaigns)

		// 平台管理
		admin := api.Group("/admin")
		{
			admin.GET("/state", h.GetGuardState)
			admin.GET("/liabilities", h.GetLiabilities)
			admin.GET("/denylist/:account", h.GetDenylist)

			admin.POST("/fee", append(write, h.UpdatePlatformFee)...)
			admin.POST("/fees/withdraw", append(write, h.WithdrawPlatformFees)...)
			admin.POST("/denylist", append(write, h.SetDenylist)...)
			admin.POST("/pause", append(write, h.Pause)...)
			admin.POST("/unpause", append(write, h.Unpause)...)
			admin.POST("/ownership/transfer", append(write, h.TransferOwnership)...)
			admin.POST("/ownership/accept", append(write, h.AcceptOwnership)...)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "ledger_busy": l.Busy()})
	})

	return r
}
