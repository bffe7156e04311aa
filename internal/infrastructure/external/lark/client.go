package lark

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// Config holds Lark app credentials and recipient routing
type Config struct {
	AppID         string
	AppSecret     string
	ReceiveIDType string            // open_id, user_id, email or chat_id
	Recipients    map[string]string // feed recipient (user or role) -> lark receive id
}

// Client wraps the Lark SDK client used for outbound messaging
type Client struct {
	client *lark.Client
	logger *zap.Logger
}

// NewClient creates a Lark client with token caching enabled
func NewClient(cfg Config, logger *zap.Logger) *Client {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelWarn),
		lark.WithEnableTokenCache(true),
	)

	return &Client{
		client: client,
		logger: logger,
	}
}

// SendText delivers a plain text message to one receive id and returns
// the Lark message id
func (c *Client) SendText(ctx context.Context, receiveIDType, receiveID, text string) (string, error) {
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("encode message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType("text").
			Content(string(content)).
			Build()).
		Build()

	resp, err := c.client.Im.Message.Create(ctx, req)
	if err != nil {
		c.logger.Error("Failed to send Lark message",
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return "", fmt.Errorf("send message: %w", err)
	}

	if !resp.Success() {
		c.logger.Error("Lark API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("lark api error: code=%d msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	return messageID, nil
}
