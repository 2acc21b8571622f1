package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/pechorka/lostfound/internal/api"
	"github.com/pechorka/lostfound/internal/session"
	"github.com/pechorka/lostfound/pkg/i18n"
	"github.com/pechorka/lostfound/pkg/queue"
)

// Bot notifies the item owner on Telegram about contacts arriving on
// their items and lets them act on items from the chat. It runs under a
// single stored session (the owner's), so every admin chat sees the same
// account.
type Bot struct {
	manager   *session.Manager
	api       *api.Client
	bot       *tgbotapi.BotAPI
	i18n      *i18n.Localies
	queue     *queue.NotifyQueue
	admins    map[int64]struct{}
	lang      string
	pollEvery time.Duration

	announced         map[int64]struct{} // contact ids already sent to the chats
	announcedComments map[int64]struct{}
	commentsPrimed    bool // first poll only records history, no spam on startup
	stopCh            chan struct{}
}

type Config struct {
	Token     string
	Manager   *session.Manager
	I18n      *i18n.Localies
	Queue     *queue.NotifyQueue
	Admins    []int64
	Lang      string
	PollEvery time.Duration
	Debug     bool
}

func NewBot(cfg Config) (*Bot, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	botAPI, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	log.Printf("Authorized on account %s", botAPI.Self.UserName)
	botAPI.Debug = cfg.Debug

	admins := make(map[int64]struct{}, len(cfg.Admins))
	for _, id := range cfg.Admins {
		admins[id] = struct{}{}
	}
	return &Bot{
		manager:           cfg.Manager,
		api:               cfg.Manager.API(),
		bot:               botAPI,
		i18n:              cfg.I18n,
		queue:             cfg.Queue,
		admins:            admins,
		lang:              cfg.Lang,
		pollEvery:         cfg.PollEvery,
		announced:         make(map[int64]struct{}),
		announcedComments: make(map[int64]struct{}),
		stopCh:            make(chan struct{}),
	}, nil
}

func validateConfig(cfg Config) error {
	if cfg.Token == "" {
		return fmt.Errorf("token is empty")
	}
	if cfg.Manager == nil {
		return fmt.Errorf("manager is nil")
	}
	if cfg.I18n == nil {
		return fmt.Errorf("i18n is nil")
	}
	if cfg.Queue == nil {
		return fmt.Errorf("queue is nil")
	}
	if len(cfg.Admins) == 0 {
		return fmt.Errorf("admins are empty")
	}
	return nil
}

func (b *Bot) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	b.queue.Run(b.deliver)
	go b.poll()
	go b.watchSession()

	updates := b.bot.GetUpdatesChan(u)
	for {
		select {
		case <-b.stopCh:
			return
		case update := <-updates:
			msg := update.Message
			if msg == nil {
				continue
			}
			if _, ok := b.admins[msg.Chat.ID]; !ok {
				continue
			}
			if err := b.handleCommand(msg); err != nil {
				log.Println(errors.Wrap(err, "handling command"))
				b.send(msg.Chat.ID, b.msg("error"))
			}
		}
	}
}

func (b *Bot) Stop() {
	close(b.stopCh)
	b.bot.StopReceivingUpdates()
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) error {
	ctx := context.Background()
	cmd, arg, _ := strings.Cut(strings.TrimSpace(msg.Text), " ")
	switch cmd {
	case "/itens", "/items":
		page, err := b.api.MyItems(ctx)
		if err != nil {
			return err
		}
		b.send(msg.Chat.ID, b.renderItems(page.Results))
		return nil
	case "/contatos", "/contacts":
		page, err := b.api.ReceivedContacts(ctx)
		if err != nil {
			return err
		}
		b.send(msg.Chat.ID, b.renderContacts(page.Results))
		return nil
	case "/resolver", "/resolve":
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil {
			b.send(msg.Chat.ID, b.msg("resolve_usage"))
			return nil
		}
		item, err := b.api.MarkResolved(ctx, id)
		if err != nil {
			return err
		}
		b.send(msg.Chat.ID, b.msgWithArgs("resolved", map[string]string{
			"title": item.Title,
		}))
		return nil
	case "/start", "/ajuda", "/help":
		b.send(msg.Chat.ID, b.msg("help"))
		return nil
	default:
		b.send(msg.Chat.ID, b.msg("help"))
		return nil
	}
}

// poll looks for contacts and comments the chats have not seen yet and
// queues one notification per event. The queue batches bursts per chat.
func (b *Bot) poll() {
	ticker := time.NewTicker(b.pollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			if err := b.announceNews(); err != nil {
				if errors.Is(err, api.ErrSessionExpired) {
					// watchSession tells the chats; just stop polling.
					return
				}
				log.Println(errors.Wrap(err, "polling for news"))
			}
		}
	}
}

func (b *Bot) announceNews() error {
	if err := b.announceNewContacts(); err != nil {
		return err
	}
	return b.announceNewComments()
}

func (b *Bot) announceNewContacts() error {
	page, err := b.api.ReceivedContacts(context.Background())
	if err != nil {
		return err
	}
	for _, contact := range page.Results {
		if contact.Seen {
			continue
		}
		if _, ok := b.announced[contact.ID]; ok {
			continue
		}
		b.announced[contact.ID] = struct{}{}
		text := b.msgWithArgs("new_contact", map[string]string{
			"from":    contact.UserName,
			"item":    strconv.FormatInt(contact.ItemID, 10),
			"message": contact.Message,
		})
		for chatID := range b.admins {
			b.queue.Add(chatID, text)
		}
	}
	return nil
}

// announceNewComments walks the owner's items and queues a notification
// for every comment left by someone else. Comments carry no seen flag,
// so the first poll only primes the known set.
func (b *Bot) announceNewComments() error {
	ctx := context.Background()
	me := b.manager.Current().User
	page, err := b.api.MyItems(ctx)
	if err != nil {
		return err
	}
	for _, item := range page.Results {
		comments, err := b.api.Comments(ctx, item.ID)
		if err != nil {
			return err
		}
		for _, comment := range comments {
			if me != nil && comment.UserID == me.ID {
				continue
			}
			if _, ok := b.announcedComments[comment.ID]; ok {
				continue
			}
			b.announcedComments[comment.ID] = struct{}{}
			if !b.commentsPrimed {
				continue
			}
			text := b.msgWithArgs("new_comment", map[string]string{
				"from": comment.UserName,
				"item": item.Title,
				"text": comment.Text,
			})
			for chatID := range b.admins {
				b.queue.Add(chatID, text)
			}
		}
	}
	b.commentsPrimed = true
	return nil
}

// watchSession notifies the chats when the session dies (refresh failed
// somewhere and the pipeline logged us out).
func (b *Bot) watchSession() {
	sessions, cancel := b.manager.Subscribe()
	defer cancel()
	for {
		select {
		case <-b.stopCh:
			return
		case s, ok := <-sessions:
			if !ok {
				return
			}
			if !s.Active() {
				for chatID := range b.admins {
					b.send(chatID, b.msg("session_expired"))
				}
			}
		}
	}
}

func (b *Bot) deliver(chatID int64, text string) {
	b.send(chatID, text)
}

func (b *Bot) send(chatID int64, text string) {
	if text == "" {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.bot.Send(msg); err != nil {
		log.Println(errors.Wrap(err, "sending message"))
	}
}
