// Package bot maps Telegram updates onto Readeck API calls: command
// dispatch, per-user token lookup, and reply formatting.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jmfederico/readeckbot/internal/logger"
	"github.com/jmfederico/readeckbot/internal/readeck"
	"github.com/jmfederico/readeckbot/internal/summary"
	"github.com/jmfederico/readeckbot/internal/telegraph"
	"github.com/jmfederico/readeckbot/internal/tokenstore"
)

// Sender is the outbound half of the Telegram API, split out so tests
// can record replies instead of hitting the network.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Options struct {
	Store      tokenstore.Store
	Readeck    *readeck.Client
	Publisher  *telegraph.Publisher
	Summarizer summary.Summarizer // nil disables the summary feature
	Log        logger.Logger

	ChunkLimit   int
	PageLimit    int
	SummaryMax   int
	ReadeckCfg   string // -config path for the readeck CLI
	ReadeckData  string // working dir for the readeck CLI
}

type Bot struct {
	tg   *tgbotapi.BotAPI
	send Sender

	store      tokenstore.Store
	readeck    *readeck.Client
	publisher  *telegraph.Publisher
	summarizer summary.Summarizer
	bindings   *Bindings
	log        logger.Logger

	chunkLimit  int
	pageLimit   int
	summaryMax  int
	readeckCfg  string
	readeckData string
}

func New(tg *tgbotapi.BotAPI, opts Options) *Bot {
	chunkLimit := opts.ChunkLimit
	if chunkLimit <= 0 {
		chunkLimit = 4096
	}
	summaryMax := opts.SummaryMax
	if summaryMax <= 0 {
		summaryMax = 2500
	}
	b := &Bot{
		tg:          tg,
		store:       opts.Store,
		readeck:     opts.Readeck,
		publisher:   opts.Publisher,
		summarizer:  opts.Summarizer,
		bindings:    NewBindings(),
		log:         opts.Log,
		chunkLimit:  chunkLimit,
		pageLimit:   opts.PageLimit,
		summaryMax:  summaryMax,
		readeckCfg:  opts.ReadeckCfg,
		readeckData: opts.ReadeckData,
	}
	if tg != nil {
		b.send = tg
	}
	return b
}

// Run long-polls for updates until ctx is canceled. Each update is
// handled in its own goroutine: one conversation never blocks another,
// and chunked replies within one handler stay ordered.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)

	b.log.Infof("bot authorized as @%s", b.tg.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorf("panic while handling update: %v", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.handleText(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	b.log.Info("command",
		logger.String("command", cmd),
		logger.Int64("user_id", msg.From.ID))

	switch {
	case cmd == "start" || cmd == "help":
		b.handleHelp(msg)
	case cmd == "register":
		b.handleRegister(ctx, msg)
	case cmd == "token":
		b.handleToken(ctx, msg)
	case cmd == "list":
		b.handleList(ctx, msg)
	case cmd == "search":
		b.handleSearch(ctx, msg)
	case cmd == "epub":
		b.handleEpubAll(ctx, msg)
	case strings.HasPrefix(cmd, "md_"):
		b.handleMarkdownCommand(ctx, msg, strings.TrimPrefix(cmd, "md_"))
	case strings.HasPrefix(cmd, "b_"):
		b.handleDetailsCommand(ctx, msg, strings.TrimPrefix(cmd, "b_"))
	default:
		b.reply(msg.Chat.ID,
			"I don't recognize this command.\n"+
				"Send /help for usage, or /md_<id> to read a saved article.")
	}
}

// handleText covers non-command messages: a URL saves a bookmark,
// anything else gets guidance.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	bookmarkURL, title, labels := extractURLTitleLabels(strings.TrimSpace(msg.Text))
	if bookmarkURL == "" {
		b.reply(msg.Chat.ID,
			"I don't recognize this input.\n"+
				"Send me a URL to save it, optionally followed by a title and +labels.")
		return
	}

	token, ok := b.userToken(msg.From.ID)
	if !ok {
		b.replyNoToken(msg.Chat.ID)
		return
	}
	b.saveBookmark(ctx, msg, token, bookmarkURL, title, labels)
}

func (b *Bot) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// Acknowledge first so the client stops the spinner.
	if _, err := b.send.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.log.Warnf("answer callback: %v", err)
	}

	action, suffix, found := strings.Cut(query.Data, "_")
	if !found || query.Message == nil {
		return
	}
	chatID := query.Message.Chat.ID
	userID := query.From.ID

	b.log.Info("callback",
		logger.String("action", action),
		logger.Int64("user_id", userID))

	token, ok := b.userToken(userID)
	if !ok {
		b.replyNoToken(chatID)
		return
	}

	switch action {
	case "read":
		b.handleReadCallback(ctx, chatID, token, suffix)
	case "pub":
		b.handlePublishCallback(ctx, chatID, query.From, token, suffix)
	case "epub":
		b.handleEpubCallback(ctx, chatID, token, suffix)
	case "archive":
		b.handleArchiveCallback(ctx, chatID, token, suffix)
	case "summarize":
		b.handleSummarizeCallback(ctx, chatID, token, suffix)
	}
}

func (b *Bot) userToken(userID int64) (string, bool) {
	if b.store == nil {
		return "", false
	}
	return b.store.Get(userID)
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.send.Send(msg); err != nil {
		b.log.Errorf("send reply: %v", err)
	}
}

func (b *Bot) replyNoToken(chatID int64) {
	b.reply(chatID,
		"I don't have your Readeck token.\n"+
			"Set it with /token <YOUR_TOKEN> or /register <password>.")
}
