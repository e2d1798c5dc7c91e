package domain

import (
	"encoding/json"

	"marketplace/internal/pkg/errs"
)

// MetadataKind 订单附加信息的类型标签
type MetadataKind string

const (
	MetadataNone     MetadataKind = ""
	MetadataCheckout MetadataKind = "checkout"
	MetadataGift     MetadataKind = "gift"
	MetadataBot      MetadataKind = "bot"
)

// Metadata 是按 Kind 区分的带标签联合体，同一时刻只有与 Kind 对应的字段非空
type Metadata struct {
	Kind     MetadataKind     `json:"kind"`
	Checkout *CheckoutDetails `json:"checkout,omitempty"`
	Gift     *GiftDetails     `json:"gift,omitempty"`
	Bot      *BotDetails      `json:"bot,omitempty"`
}

type CheckoutDetails struct {
	Channel string `json:"channel"` // web | line | bot
	Note    string `json:"note,omitempty"`
}

type GiftDetails struct {
	RecipientID string `json:"recipientId"`
	Message     string `json:"message,omitempty"`
}

type BotDetails struct {
	BotID  string `json:"botId"`
	ChatID string `json:"chatId"`
}

func CheckoutMetadata(channel, note string) Metadata {
	return Metadata{Kind: MetadataCheckout, Checkout: &CheckoutDetails{Channel: channel, Note: note}}
}

func GiftMetadata(recipientID, message string) Metadata {
	return Metadata{Kind: MetadataGift, Gift: &GiftDetails{RecipientID: recipientID, Message: message}}
}

func BotMetadata(botID, chatID string) Metadata {
	return Metadata{Kind: MetadataBot, Bot: &BotDetails{BotID: botID, ChatID: chatID}}
}

// Validate 检查标签与载荷一致
func (m Metadata) Validate() error {
	set := 0
	for _, present := range []bool{m.Checkout != nil, m.Gift != nil, m.Bot != nil} {
		if present {
			set++
		}
	}

	switch m.Kind {
	case MetadataNone:
		if set != 0 {
			return errs.Validation("metadata payload without kind")
		}
		return nil
	case MetadataCheckout:
		if m.Checkout == nil || set != 1 || m.Checkout.Channel == "" {
			return errs.Validation("checkout metadata requires channel")
		}
	case MetadataGift:
		if m.Gift == nil || set != 1 || m.Gift.RecipientID == "" {
			return errs.Validation("gift metadata requires recipient")
		}
	case MetadataBot:
		if m.Bot == nil || set != 1 || m.Bot.BotID == "" || m.Bot.ChatID == "" {
			return errs.Validation("bot metadata requires bot and chat id")
		}
	default:
		return errs.Validation("unknown metadata kind %q", m.Kind)
	}
	return nil
}

// ParseMetadata 解析存储中的 JSON，空值视为无附加信息
func ParseMetadata(raw []byte) (Metadata, error) {
	var m Metadata
	if len(raw) == 0 || string(raw) == "null" {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, err
	}
	return m, m.Validate()
}
