package mq

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"
)

func TestKafkaProducerSend(t *testing.T) {
	mock := mocks.NewSyncProducer(t, sarama.NewConfig())
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"type":"DonationReceived"}` {
			return errors.New("unexpected payload")
		}
		return nil
	})
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := WrapSyncProducer(mock)
	require.NoError(t, p.Send(context.Background(), "ledger", "campaign:1", `{"type":"DonationReceived"}`))
	require.ErrorIs(t, p.Send(context.Background(), "ledger", "campaign:1", "{}"), sarama.ErrOutOfBrokers)
	require.NoError(t, p.Close())
}
