package lark

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/procurahq/procura/internal/application/port"
)

// textSender is the slice of the Lark client the messenger needs
type textSender interface {
	SendText(ctx context.Context, receiveIDType, receiveID, text string) (string, error)
}

// Messenger implements port.MessageChannel over Lark IM. Feed recipients
// are usernames or role names; the routing table in Config maps them to
// Lark receive ids. Recipients without a mapping are skipped, not failed:
// the notification is still in the feed, IM delivery is an extra.
type Messenger struct {
	sender        textSender
	receiveIDType string
	recipients    map[string]string
	logger        *zap.Logger
}

// NewMessenger creates a Lark message channel using the routing from cfg
func NewMessenger(client *Client, cfg Config, logger *zap.Logger) *Messenger {
	idType := cfg.ReceiveIDType
	if idType == "" {
		idType = "open_id"
	}
	return &Messenger{
		sender:        client,
		receiveIDType: idType,
		recipients:    cfg.Recipients,
		logger:        logger,
	}
}

// Name identifies the channel in logs
func (m *Messenger) Name() string {
	return "lark"
}

// Send delivers one notification as a Lark text message
func (m *Messenger) Send(ctx context.Context, msg port.Message) error {
	receiveID, ok := m.recipients[msg.Recipient]
	if !ok {
		m.logger.Debug("No Lark id mapped for recipient, skipping",
			zap.String("recipient", msg.Recipient),
			zap.String("request_id", msg.RequestID))
		return nil
	}

	text := msg.Title
	if msg.Body != "" {
		text = msg.Title + "\n" + msg.Body
	}

	messageID, err := m.sender.SendText(ctx, m.receiveIDType, receiveID, text)
	if err != nil {
		return fmt.Errorf("deliver to %s: %w", msg.Recipient, err)
	}

	m.logger.Info("Lark message sent",
		zap.String("recipient", msg.Recipient),
		zap.String("message_id", messageID),
		zap.String("request_id", msg.RequestID))
	return nil
}

var _ port.MessageChannel = (*Messenger)(nil)
