package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"crowdfund/internal/custody"
	"crowdfund/internal/infrastructure/database"
	"crowdfund/internal/ledger"
	"crowdfund/internal/model"
	"crowdfund/internal/outbox"
	"crowdfund/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const topic = "crowdfund-events"

func newLedger(t *testing.T, db *gorm.DB) (*ledger.Ledger, *custody.Wallet) {
	t.Helper()
	wallet := custody.NewWallet(db, nil)
	wallet.Reserve("custody")
	l := ledger.New(db, wallet, "custody", ledger.WithNotifier(outbox.NewNotifier(db, topic)))
	require.NoError(t, l.Init(context.Background(), "owner", ledger.DefaultFeePercent))
	return l, wallet
}

func messagesOfType(t *testing.T, db *gorm.DB, eventType string) []model.OutboxMessage {
	t.Helper()
	var messages []model.OutboxMessage
	require.NoError(t, db.Where("event_type = ?", eventType).Order("id ASC").Find(&messages).Error)
	return messages
}

func TestNotifyWritesPendingMessage(t *testing.T) {
	ctx := context.Background()
	db := database.NewTestDB(t)
	l, _ := newLedger(t, db)

	campaign, err := l.CreateCampaign(ctx, "alice", ledger.CreateCampaignRequest{
		Title:        "桌游",
		Description:  "一款合作类桌游",
		Goal:         1000,
		DurationDays: 30,
		Category:     model.CategoryGames,
	})
	require.NoError(t, err)

	repo := repository.NewOutboxRepository(db)
	messages, err := repo.GetPendingMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	msg := messages[0]
	require.Equal(t, ledger.EventCampaignCreated, msg.EventType)
	require.Equal(t, topic, msg.Topic)
	require.Equal(t, "campaign:0", msg.MessageKey)
	require.Equal(t, model.OutboxStatusPending, msg.Status)

	var envelope outbox.Envelope
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &envelope))
	require.NotEmpty(t, envelope.EventID)
	require.Equal(t, ledger.EventCampaignCreated, envelope.Event.Type)
	require.NotNil(t, envelope.Event.CampaignID)
	require.Equal(t, campaign.ID, *envelope.Event.CampaignID)
}

func TestNotifyLedgerWideKey(t *testing.T) {
	ctx := context.Background()
	db := database.NewTestDB(t)
	l, _ := newLedger(t, db)

	require.NoError(t, l.Pause(ctx, "owner"))

	messages := messagesOfType(t, db, ledger.EventPaused)
	require.Len(t, messages, 1)
	require.Equal(t, "ledger", messages[0].MessageKey)
}

func TestRolledBackOperationLeavesNoMessage(t *testing.T) {
	ctx := context.Background()
	db := database.NewTestDB(t)
	l, wallet := newLedger(t, db)

	_, err := l.CreateCampaign(ctx, "alice", ledger.CreateCampaignRequest{
		Title:        "相机",
		Description:  "胶片相机复刻",
		Goal:         500,
		DurationDays: 10,
		Category:     model.CategoryTechnology,
	})
	require.NoError(t, err)

	_, err = wallet.Deposit(ctx, "bob", 100)
	require.NoError(t, err)
	wallet.OnReceive("custody", func(context.Context, string, int64) error {
		return errors.New("拒收")
	})

	_, err = l.Donate(ctx, "bob", 0, 50)
	require.ErrorIs(t, err, ledger.ErrTransferFailed)

	require.Empty(t, messagesOfType(t, db, ledger.EventDonationReceived))
}
