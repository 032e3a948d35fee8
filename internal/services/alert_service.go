package services

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// AlertService pushes operator alerts to a Telegram chat. A nil receiver is
// valid and drops every alert, so wiring stays unconditional.
type AlertService struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewAlertService(botToken string, chatID int64) *AlertService {
	if botToken == "" || chatID == 0 {
		log.Printf("[alert][tg] disabled: token or chat id empty")
		return nil
	}
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		log.Printf("[alert][tg] init failed: %v", err)
		return nil
	}
	return &AlertService{bot: bot, chatID: chatID}
}

func (a *AlertService) NotifySuspicious(identifier string, failures int) {
	if a == nil || a.bot == nil {
		return
	}
	text := fmt.Sprintf("Suspicious activity: identifier=%s failed_logins=%d (last 24h)", identifier, failures)
	msg := tgbotapi.NewMessage(a.chatID, text)
	if _, err := a.bot.Send(msg); err != nil {
		log.Printf("[alert][tg] send failed: identifier=%s err=%v", identifier, err)
	}
}
