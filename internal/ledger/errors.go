package ledger

import (
	"errors"

	"crowdfund/internal/custody"
)

// 账本操作返回的错误类型，调用方用 errors.Is 判断
// 任何错误都会让当前操作的事务整体回滚
var (
	ErrNotFound              = errors.New("记录不存在")
	ErrUnauthorized          = errors.New("无权执行该操作")
	ErrDenylisted            = errors.New("账户已被列入黑名单")
	ErrPaused                = errors.New("系统已暂停")
	ErrNotPaused             = errors.New("系统未暂停")
	ErrReentrantCall         = errors.New("禁止重入调用")
	ErrInvalidInput          = errors.New("参数不合法")
	ErrDuplicateCampaign     = errors.New("同名活动已存在")
	ErrCampaignEnded         = errors.New("活动已截止")
	ErrCampaignOngoing       = errors.New("活动尚未截止")
	ErrCampaignCancelled     = errors.New("活动已取消")
	ErrGoalNotReached        = errors.New("未达到募集目标")
	ErrGoalReached           = errors.New("已达到募集目标")
	ErrAlreadySettled        = errors.New("活动资金已结算")
	ErrNoContribution        = errors.New("没有可退还的出资")
	ErrNothingToWithdraw     = errors.New("没有可提取的资金")
	ErrTransferFailed        = errors.New("资金划转失败")
	ErrOverflow              = errors.New("金额超出可表示范围")
	ErrMilestoneCompleted    = errors.New("里程碑已完成")
	ErrMilestoneNotCompleted = errors.New("里程碑尚未完成")
	ErrAlreadyApproved       = errors.New("已审批过该里程碑")

	// ErrDirectTransfer 绕过 donate 直接向托管账户转账，由钱包拒绝
	ErrDirectTransfer = custody.ErrDirectTransfer
)

// 业务错误码，与 pkg/response 的通用错误码区间错开
const (
	CodeNotFound              = 2001
	CodeUnauthorized          = 2002
	CodeDenylisted            = 2003
	CodePaused                = 2004
	CodeNotPaused             = 2005
	CodeReentrantCall         = 2006
	CodeInvalidInput          = 2007
	CodeDuplicateCampaign     = 2008
	CodeCampaignEnded         = 2009
	CodeCampaignOngoing       = 2010
	CodeCampaignCancelled     = 2011
	CodeGoalNotReached        = 2012
	CodeGoalReached           = 2013
	CodeAlreadySettled        = 2014
	CodeNoContribution        = 2015
	CodeNothingToWithdraw     = 2016
	CodeTransferFailed        = 2017
	CodeOverflow              = 2018
	CodeDirectTransfer        = 2019
	CodeMilestoneCompleted    = 2020
	CodeMilestoneNotCompleted = 2021
	CodeAlreadyApproved       = 2022
)

var errorCodes = []struct {
	err  error
	code int
}{
	{ErrNotFound, CodeNotFound},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrDenylisted, CodeDenylisted},
	{ErrPaused, CodePaused},
	{ErrNotPaused, CodeNotPaused},
	{ErrReentrantCall, CodeReentrantCall},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrDuplicateCampaign, CodeDuplicateCampaign},
	{ErrCampaignEnded, CodeCampaignEnded},
	{ErrCampaignOngoing, CodeCampaignOngoing},
	{ErrCampaignCancelled, CodeCampaignCancelled},
	{ErrGoalNotReached, CodeGoalNotReached},
	{ErrGoalReached, CodeGoalReached},
	{ErrAlreadySettled, CodeAlreadySettled},
	{ErrNoContribution, CodeNoContribution},
	{ErrNothingToWithdraw, CodeNothingToWithdraw},
	{ErrTransferFailed, CodeTransferFailed},
	{ErrOverflow, CodeOverflow},
	{ErrDirectTransfer, CodeDirectTransfer},
	{ErrMilestoneCompleted, CodeMilestoneCompleted},
	{ErrMilestoneNotCompleted, CodeMilestoneNotCompleted},
	{ErrAlreadyApproved, CodeAlreadyApproved},
}

// Code 返回错误对应的业务错误码，非账本错误返回 0
func Code(err error) int {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return 0
}
