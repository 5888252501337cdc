package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nutriplan/internal/app"
	"nutriplan/internal/metrics"
	"nutriplan/internal/planner"
	"nutriplan/internal/profile"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot wraps the Telegram API around the application core.
type Bot struct {
	api      *tgbotapi.BotAPI
	app      *app.App
	sessions *SessionRepository
}

// NewBot initializes the Telegram API client and sets the webhook.
func NewBot(a *app.App) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(a.Config.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("init telegram api: %w", err)
	}
	a.Log.Infow("telegram bot authorized", "account", api.Self.UserName)

	wh, err := tgbotapi.NewWebhook(a.Config.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("build webhook config: %w", err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("set webhook to %s: %w", a.Config.TelegramWebhookURL, err)
	}
	a.Log.Infow("webhook set", "response", resp.Description)

	return &Bot{
		api:      api,
		app:      a,
		sessions: NewSessionRepository(a.DB.SQL),
	}, nil
}

// RegisterHandlers mounts the webhook and a liveness probe.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhook", b.handleWebhook)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		b.app.Log.Warnw("malformed telegram update", "error", err)
		return
	}

	if update.CallbackQuery != nil {
		go b.handleCallback(update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}
	go b.processMessage(update.Message)
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	session, err := b.sessions.GetActive(ctx, msg.From.ID, time.Now())
	if err != nil {
		b.app.Log.Warnw("session lookup failed", "telegram_id", msg.From.ID, "error", err)
		return
	}
	if session != nil {
		b.continueWizard(ctx, session, msg)
		return
	}

	b.send(msg.Chat.ID, "Не понимаю 🙈 Используйте /plan для меню или /profile для настроек.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg)
	case "plan":
		b.handlePlanRequest(ctx, msg)
	case "profile":
		b.handleProfile(ctx, msg)
	case "metrics":
		b.handleMetricsRequest(ctx, msg)
	default:
		b.send(msg.Chat.ID, "Неизвестная команда. Доступны /plan, /profile.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	if _, err := b.app.Profiles.GetOrCreate(ctx, msg.From.ID); err != nil {
		b.app.Log.Errorw("profile bootstrap failed", "telegram_id", msg.From.ID, "error", err)
		b.send(msg.Chat.ID, "⚠️ Что-то пошло не так, попробуйте ещё раз.")
		return
	}

	text := "Привет! Я составляю дневное меню под вашу цель.\n\n" +
		"• /plan — меню на сегодня\n" +
		"• /profile — параметры и цель"
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🍽 Составить меню", "plan|new"),
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Настроить профиль", "wizard|start"),
		),
	)
	b.api.Send(reply)
}

func (b *Bot) handlePlanRequest(ctx context.Context, msg *tgbotapi.Message) {
	status := tgbotapi.NewMessage(msg.Chat.ID, "🧑‍🍳 *Составляю меню...*")
	status.ParseMode = "Markdown"
	sent, err := b.api.Send(status)
	if err != nil {
		b.app.Log.Warnw("failed to send status message", "error", err)
		return
	}
	b.generateAndSendPlan(ctx, msg.From.ID, msg.Chat.ID, sent.MessageID)
}

func (b *Bot) generateAndSendPlan(ctx context.Context, telegramID, chatID int64, messageID int) {
	plan, err := b.app.GeneratePlan(ctx, telegramID, "")
	if err != nil {
		b.app.Log.Errorw("plan generation failed", "telegram_id", telegramID, "error", err)
		edit := tgbotapi.NewEditMessageText(chatID, messageID, "❌ Не получилось составить меню, попробуйте позже.")
		b.api.Send(edit)
		return
	}

	edit := tgbotapi.NewEditMessageText(chatID, messageID, formatPlanMessage(plan))
	edit.ParseMode = "Markdown"
	if len(plan.Meals) > 0 {
		keyboard := planKeyboard(plan.ID)
		edit.ReplyMarkup = &keyboard
	}
	b.api.Send(edit)
}

func planKeyboard(planID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(planID, 10)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Принять", "plan|accept|"+id),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отклонить", "plan|reject|"+id),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Заново", "plan|new"),
		),
	)
}

func (b *Bot) handleProfile(ctx context.Context, msg *tgbotapi.Message) {
	p, err := b.app.Profiles.GetOrCreate(ctx, msg.From.ID)
	if err != nil {
		b.app.Log.Errorw("profile load failed", "telegram_id", msg.From.ID, "error", err)
		b.send(msg.Chat.ID, "⚠️ Не удалось загрузить профиль.")
		return
	}
	m, err := b.app.ProfileMetrics(ctx, msg.From.ID)
	if err != nil {
		b.app.Log.Errorw("profile metrics failed", "telegram_id", msg.From.ID, "error", err)
		b.send(msg.Chat.ID, "⚠️ Не удалось загрузить профиль.")
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, formatProfileMessage(p, m))
	reply.ParseMode = "Markdown"
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ Изменить", "wizard|start"),
		),
	)
	b.api.Send(reply)
}

func (b *Bot) handleMetricsRequest(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From.ID != b.app.Config.AdminTelegramID {
		b.send(msg.Chat.ID, "⛔ Команда доступна только администратору.")
		return
	}

	usage, err := b.app.Metrics.GetDailyUsage(ctx, 7)
	if err != nil {
		b.app.Log.Errorw("metrics query failed", "error", err)
		b.send(msg.Chat.ID, "❌ Не удалось получить метрики.")
		return
	}
	health := metrics.GetSysHealth(b.app.Config.DatabasePath)

	reply := tgbotapi.NewMessage(msg.Chat.ID, formatUsageReport(usage, health))
	reply.ParseMode = "Markdown"
	b.api.Send(reply)
}

func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// Acknowledge first so the client drops the spinner.
	b.api.Request(tgbotapi.NewCallback(query.ID, ""))

	parts := strings.Split(query.Data, "|")
	if len(parts) < 2 || query.Message == nil {
		return
	}

	switch parts[0] {
	case "plan":
		b.handlePlanCallback(ctx, query, parts[1:])
	case "wizard":
		b.handleWizardCallback(ctx, query, parts[1:])
	}
}

func (b *Bot) handlePlanCallback(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) {
	chatID := query.Message.Chat.ID
	messageID := query.Message.MessageID

	if args[0] == "new" {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, "🧑‍🍳 *Составляю меню...*")
		edit.ParseMode = "Markdown"
		b.api.Send(edit)
		b.generateAndSendPlan(ctx, query.From.ID, chatID, messageID)
		return
	}

	if len(args) < 2 {
		return
	}
	planID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return
	}

	status := planner.StatusAccepted
	note := "✅ Меню принято. Приятного аппетита!"
	if args[0] == "reject" {
		status = planner.StatusRejected
		note = "Меню отклонено. Нажмите /plan, чтобы составить новое."
	}

	if _, err := b.app.UpdatePlanStatus(ctx, query.From.ID, planID, status); err != nil {
		b.app.Log.Warnw("plan status update failed", "plan_id", planID, "error", err)
		b.send(chatID, "⚠️ Не удалось обновить план.")
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID,
		tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Новое меню", "plan|new"),
		)))
	b.api.Send(edit)
	b.send(chatID, note)
}

// Profile wizard. Sex, activity and goal come from callback keyboards,
// height and weight are typed as plain messages while a session is open.

func (b *Bot) handleWizardCallback(ctx context.Context, query *tgbotapi.CallbackQuery, args []string) {
	chatID := query.Message.Chat.ID

	if args[0] == "start" {
		if _, err := b.sessions.Start(ctx, query.From.ID, StateAskSex, SessionData{}); err != nil {
			b.app.Log.Errorw("wizard session create failed", "error", err)
			return
		}
		reply := tgbotapi.NewMessage(chatID, "Укажите пол:")
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Мужской", "wizard|sex|m"),
				tgbotapi.NewInlineKeyboardButtonData("Женский", "wizard|sex|f"),
			),
		)
		b.api.Send(reply)
		return
	}

	session, err := b.sessions.GetActive(ctx, query.From.ID, time.Now())
	if err != nil || session == nil {
		b.send(chatID, "Сессия настройки истекла, начните заново: /profile")
		return
	}
	if len(args) < 2 {
		return
	}
	field, value := args[0], args[1]

	switch {
	case field == "sex" && session.State == StateAskSex:
		if err := b.applyProfileField(ctx, query.From.ID, profile.Update{Sex: &value}); err != nil {
			return
		}
		b.sessions.Advance(ctx, session.ID, StateAskHeight, session.Data)
		b.send(chatID, "Введите рост в сантиметрах (например, 178):")

	case field == "activity" && session.State == StateAskActivity:
		if err := b.applyProfileField(ctx, query.From.ID, profile.Update{ActivityLevel: &value}); err != nil {
			return
		}
		b.sessions.Advance(ctx, session.ID, StateAskGoal, session.Data)
		reply := tgbotapi.NewMessage(chatID, "Какая цель?")
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Похудение", "wizard|goal|lose"),
				tgbotapi.NewInlineKeyboardButtonData("Поддержание", "wizard|goal|maintain"),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Набор массы", "wizard|goal|gain"),
				tgbotapi.NewInlineKeyboardButtonData("Рекомпозиция", "wizard|goal|recomp"),
			),
		)
		b.api.Send(reply)

	case field == "goal" && session.State == StateAskGoal:
		if err := b.applyProfileField(ctx, query.From.ID, profile.Update{Goal: &value}); err != nil {
			return
		}
		b.sessions.Delete(ctx, session.ID)
		b.finishWizard(ctx, query.From.ID, chatID)
	}
}

func (b *Bot) continueWizard(ctx context.Context, session *Session, msg *tgbotapi.Message) {
	switch session.State {
	case StateAskHeight:
		height, err := parseHeight(msg.Text)
		if err != nil {
			b.send(msg.Chat.ID, "Нужно число от 100 до 250. Введите рост в сантиметрах:")
			return
		}
		if err := b.applyProfileField(ctx, msg.From.ID, profile.Update{HeightCm: &height}); err != nil {
			return
		}
		b.sessions.Advance(ctx, session.ID, StateAskWeight, session.Data)
		b.send(msg.Chat.ID, "Введите вес в килограммах (например, 72.5):")

	case StateAskWeight:
		weight, err := parseWeight(msg.Text)
		if err != nil {
			b.send(msg.Chat.ID, "Нужно число от 30 до 300. Введите вес в килограммах:")
			return
		}
		if err := b.applyProfileField(ctx, msg.From.ID, profile.Update{WeightKg: &weight}); err != nil {
			return
		}
		b.sessions.Advance(ctx, session.ID, StateAskActivity, session.Data)
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Насколько вы активны?")
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Сидячий", "wizard|activity|sedentary"),
				tgbotapi.NewInlineKeyboardButtonData("Лёгкая", "wizard|activity|light"),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Умеренная", "wizard|activity|moderate"),
				tgbotapi.NewInlineKeyboardButtonData("Высокая", "wizard|activity|high"),
			),
		)
		b.api.Send(reply)

	default:
		// Sex, activity and goal are keyboard-driven, a plain message
		// here means the user ignored the buttons.
		b.send(msg.Chat.ID, "Пожалуйста, используйте кнопки выше 🙏")
	}
}

func (b *Bot) finishWizard(ctx context.Context, telegramID, chatID int64) {
	p, err := b.app.Profiles.GetOrCreate(ctx, telegramID)
	if err != nil {
		b.app.Log.Errorw("profile reload failed", "telegram_id", telegramID, "error", err)
		return
	}
	m, err := b.app.ProfileMetrics(ctx, telegramID)
	if err != nil {
		b.app.Log.Errorw("profile metrics failed", "telegram_id", telegramID, "error", err)
		return
	}

	reply := tgbotapi.NewMessage(chatID, "Готово! "+formatProfileMessage(p, m))
	reply.ParseMode = "Markdown"
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🍽 Составить меню", "plan|new"),
		),
	)
	b.api.Send(reply)
}

func (b *Bot) applyProfileField(ctx context.Context, telegramID int64, upd profile.Update) error {
	if _, err := b.app.Profiles.Apply(ctx, telegramID, upd); err != nil {
		b.app.Log.Errorw("profile update failed", "telegram_id", telegramID, "error", err)
		return err
	}
	return nil
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.app.Log.Warnw("telegram send failed", "chat_id", chatID, "error", err)
	}
}
