package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"monitorbot/internal/domain"
	"monitorbot/internal/knowledge"
	"monitorbot/internal/resolver"
	"monitorbot/internal/session"
)

// entrySeparator splits a knowledge-entry submission into question and answer.
const entrySeparator = "|"

// Callback payload prefixes. Save offers carry an opaque PendingSave token;
// ratings carry no state at all.
const (
	payloadSavePrefix = "save:"
	payloadSkipPrefix = "skip:"
	payloadRateUp     = "rate:up"
	payloadRateDown   = "rate:down"
)

const (
	textHelp = `Доступные команды:
/start - начать работу с ботом
/help - показать это сообщение
/feedback - оставить обратную связь
/add_question - добавить новый вопрос и ответ (только для администраторов)
/show_db - показать содержимое базы знаний
/cancel - отменить текущее действие

Я отвечаю на вопросы по теме мониторинга онлайн-активности для оценки рисков безопасности.`

	textOffTopic = "Извините, я могу отвечать только на вопросы по теме мониторинга онлайн-активности " +
		"и оценки рисков безопасности. Пожалуйста, задайте вопрос по этой теме."
	textSearching      = "Ищу ответ..."
	textNoAnswer       = "Извините, не удалось получить ответ. Попробуйте позже."
	textAdminsOnly     = "Эта команда только для администраторов."
	textFeedbackAsk    = "Напишите ваши предложения по улучшению:"
	textFeedbackThanks = "Спасибо за обратную связь!"
	textEntryAsk       = "Введите вопрос и ответ через '|'.\n" +
		"Пример: Как работает анализ? | Анализ использует NLP для обработки текста."
	textEntryNoSep    = "Используйте '|' для разделения вопроса и ответа."
	textSaveOffer     = "Сохранить этот вопрос и ответ в базу знаний?"
	textSaved         = "Вопрос и ответ сохранены!"
	textNotSaved      = "Хорошо, не сохраняем."
	textRateOffer     = "Оцените ответ:"
	textRateThanks    = "Спасибо за оценку!"
	textCancelled     = "Отменено."
	textEmptyDump     = "📚 База знаний пуста"
	textCallbackError = "Ошибка обработки."
)

func textGreeting(firstName string) string {
	return fmt.Sprintf("Привет, %s! Я бот для анализа систем мониторинга онлайн-активности.\n"+
		"Я могу ответить на вопросы по темам:\n"+
		"- Мониторинг онлайн-активности сотрудников\n"+
		"- Оценка рисков безопасности\n"+
		"- Анализ угроз с помощью NLP\n"+
		"- Инструменты для разработки таких систем\n\n"+
		"Задайте ваш вопрос или введите /help для списка команд.", firstName)
}

func (d *Dispatcher) textCooldown() string {
	return fmt.Sprintf("Извините, вы можете отправлять сообщения не чаще 1 раза в %d секунд.",
		int(d.limiter.Cooldown().Seconds()))
}

func (d *Dispatcher) handle(ctx context.Context, ev domain.Event) {
	if ev.Kind == domain.EventCallback {
		d.handleCallback(ctx, ev)
		return
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}
	if strings.HasPrefix(text, "/") {
		d.handleCommand(ctx, ev, text)
		return
	}

	switch d.sessions.State(ev.Identity) {
	case session.AwaitingFeedback:
		d.handleFeedbackText(ctx, ev, text)
	case session.AwaitingKnowledgeEntry:
		d.handleEntryText(ctx, ev, text)
	default:
		d.handleQuestion(ctx, ev, text)
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev domain.Event, cmd string) {
	switch cmd {
	case "/start":
		d.send(ctx, ev.Chat, textGreeting(ev.FirstName))
	case "/help":
		d.send(ctx, ev.Chat, textHelp)
	case "/cancel":
		d.sessions.Reset(ev.Identity)
		d.send(ctx, ev.Chat, textCancelled)
	case "/feedback":
		if !d.limiter.Admit(ev.Identity, d.now()) {
			d.send(ctx, ev.Chat, d.textCooldown())
			return
		}
		d.sessions.SetState(ev.Identity, session.AwaitingFeedback)
		d.send(ctx, ev.Chat, textFeedbackAsk)
	case "/add_question":
		if !d.limiter.Admit(ev.Identity, d.now()) {
			d.send(ctx, ev.Chat, d.textCooldown())
			return
		}
		if !d.admins[ev.Identity] {
			d.log.Warn("non-admin attempted knowledge entry", "identity", ev.Identity)
			d.send(ctx, ev.Chat, textAdminsOnly)
			return
		}
		d.sessions.SetState(ev.Identity, session.AwaitingKnowledgeEntry)
		d.send(ctx, ev.Chat, textEntryAsk)
	case "/show_db":
		entries := d.store.Dump()
		if len(entries) == 0 {
			d.send(ctx, ev.Chat, textEmptyDump)
			return
		}
		d.send(ctx, ev.Chat, knowledge.Render(entries, dumpLimit))
	default:
		d.log.Debug("unknown command ignored", "identity", ev.Identity, "command", cmd)
	}
}

// handleFeedbackText consumes the free-form feedback reply. The text is only
// logged for the operators, never stored in the knowledge base.
func (d *Dispatcher) handleFeedbackText(ctx context.Context, ev domain.Event, text string) {
	d.log.Info("feedback received", "identity", ev.Identity, "feedback", text)
	d.sessions.Reset(ev.Identity)
	d.send(ctx, ev.Chat, textFeedbackThanks)
}

// handleEntryText consumes a knowledge-entry submission. Each submission is
// charged against the rate limiter, but a missing-separator re-prompt does
// not charge a second time.
func (d *Dispatcher) handleEntryText(ctx context.Context, ev domain.Event, text string) {
	if !d.limiter.Admit(ev.Identity, d.now()) {
		d.sessions.Reset(ev.Identity)
		d.send(ctx, ev.Chat, d.textCooldown())
		return
	}
	question, answer, found := strings.Cut(text, entrySeparator)
	if !found {
		d.send(ctx, ev.Chat, textEntryNoSep)
		return
	}
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if err := d.store.Add(question, answer); err != nil {
		d.log.Warn("knowledge entry not persisted", "identity", ev.Identity, "err", err)
	}
	d.sessions.Reset(ev.Identity)
	d.send(ctx, ev.Chat, fmt.Sprintf("Добавлено в базу знаний:\nВопрос: %s\nОтвет: %s", question, answer))
}

func (d *Dispatcher) handleQuestion(ctx context.Context, ev domain.Event, question string) {
	if !d.limiter.Admit(ev.Identity, d.now()) {
		d.send(ctx, ev.Chat, d.textCooldown())
		return
	}
	d.log.Info("question received", "identity", ev.Identity, "question", question)

	answer, err := d.resolver.Resolve(ctx, ev.Identity, question, func(ctx context.Context) {
		d.send(ctx, ev.Chat, textSearching)
	})
	if err != nil {
		var resErr *resolver.Error
		if errors.As(err, &resErr) && resErr.Code == resolver.ErrorOffTopic {
			d.send(ctx, ev.Chat, textOffTopic)
			return
		}
		d.send(ctx, ev.Chat, textNoAnswer)
		return
	}

	d.send(ctx, ev.Chat, answer.Text)

	// Remote-model answers are stored only after an administrator confirms.
	if answer.Source == domain.SourceRemoteModel && d.admins[ev.Identity] {
		token := d.sessions.OfferSave(ev.Identity, question, answer.Text)
		d.sendChoices(ctx, ev.Chat, textSaveOffer, []domain.Choice{
			{Label: "Сохранить", Payload: payloadSavePrefix + token},
			{Label: "Не сохранять", Payload: payloadSkipPrefix + token},
		})
	}

	d.sendChoices(ctx, ev.Chat, textRateOffer, []domain.Choice{
		{Label: "👍", Payload: payloadRateUp},
		{Label: "👎", Payload: payloadRateDown},
	})
}

func (d *Dispatcher) handleCallback(ctx context.Context, ev domain.Event) {
	if err := d.gw.AckCallback(ctx, ev.CallbackID); err != nil {
		d.log.Warn("callback ack failed", "identity", ev.Identity, "err", err)
	}

	switch {
	case ev.Payload == payloadRateUp || ev.Payload == payloadRateDown:
		d.log.Info("answer rated", "identity", ev.Identity, "rating", ev.Payload)
		d.edit(ctx, ev.Chat, ev.MessageID, textRateThanks)
	case strings.HasPrefix(ev.Payload, payloadSavePrefix):
		token := strings.TrimPrefix(ev.Payload, payloadSavePrefix)
		ps, ok := d.sessions.TakeSave(token, ev.Identity)
		if !ok {
			d.log.Warn("save callback without pending offer", "identity", ev.Identity)
			d.edit(ctx, ev.Chat, ev.MessageID, textCallbackError)
			return
		}
		if err := d.store.Add(ps.Question, ps.Answer); err != nil {
			d.log.Warn("confirmed answer not persisted", "identity", ev.Identity, "err", err)
		}
		d.edit(ctx, ev.Chat, ev.MessageID, textSaved)
	case strings.HasPrefix(ev.Payload, payloadSkipPrefix):
		token := strings.TrimPrefix(ev.Payload, payloadSkipPrefix)
		d.sessions.TakeSave(token, ev.Identity)
		d.edit(ctx, ev.Chat, ev.MessageID, textNotSaved)
	default:
		d.log.Warn("malformed callback payload", "identity", ev.Identity, "payload", ev.Payload)
		d.edit(ctx, ev.Chat, ev.MessageID, textCallbackError)
	}
}
