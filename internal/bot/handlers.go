package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jmfederico/readeckbot/internal/logger"
	"github.com/jmfederico/readeckbot/internal/markdown"
	"github.com/jmfederico/readeckbot/internal/readeck"
	"github.com/jmfederico/readeckbot/internal/utils"
)

func (b *Bot) handleHelp(msg *tgbotapi.Message) {
	b.reply(msg.Chat.ID,
		"Hi! Send me a URL to save it on Readeck.\n\n"+
			"You can add a title and +labels, like:\n"+
			"https://example.com Interesting Article +news +tech\n\n"+
			"Commands:\n"+
			"/list [label] - unread bookmarks\n"+
			"/search <query> - search bookmarks\n"+
			"/epub - all unread bookmarks as one epub\n"+
			"/md_<id> - read an article here\n"+
			"/b_<id> - bookmark details and actions\n\n"+
			"To configure your Readeck credentials use one of:\n"+
			"/token <YOUR_READECK_TOKEN>\n"+
			"/register <password>  (your Telegram user ID is used as username)")
}

// /register <password> or /register <user> <password>. Tries to create
// the account through the local readeck CLI first, then fetches a
// token over the API either way.
func (b *Bot) handleRegister(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())

	var username, password string
	switch len(args) {
	case 1:
		username = strconv.FormatInt(msg.From.ID, 10)
		password = args[0]
	case 2:
		username = args[0]
		password = args[1]
	default:
		b.reply(msg.Chat.ID,
			"Usage: /register <user> <password>\n"+
				"or /register <password> (your Telegram user ID will be used as username).")
		return
	}

	if err := readeck.CreateUserCLI(ctx, b.readeckCfg, b.readeckData, username, password); err != nil {
		// The account may already exist, or the CLI may not be
		// installed next to the bot; authentication below decides.
		b.log.Warnf("readeck CLI registration: %v", err)
	}

	token, err := b.readeck.Authenticate(ctx, username, password)
	if err != nil {
		var authErr *readeck.AuthError
		if errors.As(err, &authErr) {
			b.reply(msg.Chat.ID,
				"Registration failed: Readeck rejected these credentials.\n"+
					"If the account does not exist yet, create it on the Readeck server first.")
			return
		}
		b.replyError(msg.Chat.ID, err)
		return
	}

	if err := b.store.Set(msg.From.ID, token); err != nil {
		b.log.Errorf("store token: %v", err)
		b.reply(msg.Chat.ID, "Could not save your token, please try again.")
		return
	}
	b.reply(msg.Chat.ID, "Registration successful! Your token has been saved.")
}

// /token <value>: validate against the profile endpoint, then store.
func (b *Bot) handleToken(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 1 {
		b.reply(msg.Chat.ID, "Usage: /token <YOUR_READECK_TOKEN>")
		return
	}
	token := args[0]

	username, err := b.readeck.VerifyToken(ctx, token)
	if err != nil {
		var authErr *readeck.AuthError
		if errors.As(err, &authErr) {
			b.reply(msg.Chat.ID, "Readeck rejected this token. Double-check it and try again.")
			return
		}
		b.replyError(msg.Chat.ID, err)
		return
	}

	if err := b.store.Set(msg.From.ID, token); err != nil {
		b.log.Errorf("store token: %v", err)
		b.reply(msg.Chat.ID, "Could not save your token, please try again.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("Your Readeck token has been saved (account: %s).", username))
}

func (b *Bot) saveBookmark(ctx context.Context, msg *tgbotapi.Message, token, bookmarkURL, title string, labels []string) {
	id, err := b.readeck.CreateBookmark(ctx, token, bookmarkURL, title, labels)
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	b.log.Info("bookmark saved", logger.String("bookmark_id", id))

	short := b.bindings.Bind(id)

	bm, err := b.readeck.GetBookmark(ctx, token, id)
	if err != nil {
		// Saved but details unavailable; still hand out the command.
		b.reply(msg.Chat.ID, fmt.Sprintf("Saved. Use /md_%s to read it here.", short))
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, formatSaved(bm, short))
	reply.ParseMode = tgbotapi.ModeMarkdownV2
	reply.DisableWebPagePreview = true
	reply.ReplyMarkup = b.actionKeyboard(id)
	if _, err := b.send.Send(reply); err != nil {
		b.log.Errorf("send save reply: %v", err)
	}
}

// /list [label]
func (b *Bot) handleList(ctx context.Context, msg *tgbotapi.Message) {
	token, ok := b.userToken(msg.From.ID)
	if !ok {
		b.replyNoToken(msg.Chat.ID)
		return
	}

	opts := readeck.ListOptions{Unarchived: true, Cap: b.pageLimit}
	if label := strings.TrimSpace(msg.CommandArguments()); label != "" {
		opts.Label = label
	}

	bookmarks, err := b.readeck.ListBookmarks(ctx, token, opts)
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	if len(bookmarks) == 0 {
		b.reply(msg.Chat.ID, "No unread bookmarks found.")
		return
	}
	b.replyMarkdownV2(msg.Chat.ID, formatBookmarkList(bookmarks, b.bindings))
}

// /search <query>
func (b *Bot) handleSearch(ctx context.Context, msg *tgbotapi.Message) {
	query := strings.TrimSpace(msg.CommandArguments())
	if query == "" {
		b.reply(msg.Chat.ID, "Please provide a search query.")
		return
	}

	token, ok := b.userToken(msg.From.ID)
	if !ok {
		b.replyNoToken(msg.Chat.ID)
		return
	}

	bookmarks, err := b.readeck.ListBookmarks(ctx, token, readeck.ListOptions{Search: query, Cap: b.pageLimit})
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	if len(bookmarks) == 0 {
		b.reply(msg.Chat.ID, "No bookmarks found.")
		return
	}
	b.replyMarkdownV2(msg.Chat.ID, formatBookmarkList(bookmarks, b.bindings))
}

// /md_<id>: the whole article, chunked, in order.
func (b *Bot) handleMarkdownCommand(ctx context.Context, msg *tgbotapi.Message, suffix string) {
	token, ok := b.userToken(msg.From.ID)
	if !ok {
		b.replyNoToken(msg.Chat.ID)
		return
	}

	chunks, err := b.articleChunks(ctx, token, suffix)
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}

	err = markdown.Deliver(chunks, func(i int, chunk string) error {
		reply := tgbotapi.NewMessage(msg.Chat.ID, chunk)
		reply.ParseMode = tgbotapi.ModeMarkdownV2
		_, sendErr := b.send.Send(reply)
		return sendErr
	})
	if err != nil {
		var pde *markdown.PartialDeliveryError
		if errors.As(err, &pde) {
			b.reply(msg.Chat.ID, fmt.Sprintf(
				"Sorry, only %d of %d parts went through. Retry with the same command.", pde.Sent, pde.Total))
			return
		}
		b.replyError(msg.Chat.ID, err)
	}
}

// /b_<id>: details plus the action keyboard.
func (b *Bot) handleDetailsCommand(ctx context.Context, msg *tgbotapi.Message, suffix string) {
	token, ok := b.userToken(msg.From.ID)
	if !ok {
		b.replyNoToken(msg.Chat.ID)
		return
	}

	id := b.bindings.Resolve(suffix)
	bm, err := b.readeck.GetBookmark(ctx, token, id)
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}

	text := fmt.Sprintf("[%s](%s)", markdown.EscapeV2(bm.DisplayTitle()), escapeLinkURL(bm.Link()))
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ParseMode = tgbotapi.ModeMarkdownV2
	reply.ReplyMarkup = b.actionKeyboard(id)
	if _, err := b.send.Send(reply); err != nil {
		b.log.Errorf("send details: %v", err)
	}
}

// /epub: everything unread as one file, then archive it all.
func (b *Bot) handleEpubAll(ctx context.Context, msg *tgbotapi.Message) {
	token, ok := b.userToken(msg.From.ID)
	if !ok {
		b.replyNoToken(msg.Chat.ID)
		return
	}

	bookmarks, err := b.readeck.ListBookmarks(ctx, token, readeck.ListOptions{Unarchived: true, Cap: b.pageLimit})
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	if len(bookmarks) == 0 {
		b.reply(msg.Chat.ID, "There are no unread bookmarks.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("Found %d unread bookmarks. Downloading epub.", len(bookmarks)))

	stream, err := b.readeck.ExportUnreadEPUB(ctx, token)
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	defer utils.Close(stream)

	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileReader{Name: "bookmarks.epub", Reader: stream})
	doc.Caption = "Here is your epub file."
	if _, err := b.send.Send(doc); err != nil {
		b.log.Errorf("send epub: %v", err)
		b.reply(msg.Chat.ID, "Could not deliver the epub file, please try again.")
		return
	}

	for _, bm := range bookmarks {
		if err := b.readeck.Archive(ctx, token, bm.ID); err != nil {
			b.log.Warnf("archive %s after export: %v", bm.ID, err)
		}
	}
}

// read_<id> or read_<id>_<n>: paged reading via inline buttons.
func (b *Bot) handleReadCallback(ctx context.Context, chatID int64, token, suffix string) {
	id := suffix
	page := 0
	if i := strings.LastIndex(suffix, "_"); i > 0 {
		if n, err := strconv.Atoi(suffix[i+1:]); err == nil {
			id = suffix[:i]
			page = n
		}
	}

	chunks, err := b.articleChunks(ctx, token, id)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	if page < 0 || page >= len(chunks) {
		b.reply(chatID, "That part of the article no longer exists.")
		return
	}

	reply := tgbotapi.NewMessage(chatID, chunks[page])
	reply.ParseMode = tgbotapi.ModeMarkdownV2
	if page < len(chunks)-1 {
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Next", fmt.Sprintf("read_%s_%d", id, page+1)),
			),
		)
	} else {
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Archive", "archive_"+id),
			),
		)
	}
	if _, err := b.send.Send(reply); err != nil {
		b.log.Errorf("send read page: %v", err)
	}
}

// pub_<id>: publish to Telegraph; fall back to chunked markdown when
// publishing fails so the user still gets the article.
func (b *Bot) handlePublishCallback(ctx context.Context, chatID int64, from *tgbotapi.User, token, id string) {
	md, err := b.readeck.ArticleMarkdown(ctx, token, b.bindings.Resolve(id))
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	bm, err := b.readeck.GetBookmark(ctx, token, b.bindings.Resolve(id))
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	userName := from.UserName
	if userName == "" {
		userName = strconv.FormatInt(from.ID, 10)
	}

	pageURL, err := b.publisher.Publish(ctx, from.ID, userName, bm.DisplayTitle(), bm.Link(), md)
	if err != nil {
		b.log.Errorf("telegraph publish: %v", err)
		b.reply(chatID, "Could not publish the article; sending it here instead.")
		b.deliverChunked(chatID, md)
		return
	}
	b.reply(chatID, "Your article is live at: "+pageURL)
}

// epub_<id>: one article as a file.
func (b *Bot) handleEpubCallback(ctx context.Context, chatID int64, token, id string) {
	id = b.bindings.Resolve(id)
	stream, err := b.readeck.ExportEPUB(ctx, token, id)
	if err != nil {
		b.replyError(chatID, err)
		return
	}
	defer utils.Close(stream)

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileReader{Name: id + ".epub", Reader: stream})
	doc.Caption = "Here is your epub file."
	if _, err := b.send.Send(doc); err != nil {
		b.log.Errorf("send epub: %v", err)
		b.reply(chatID, "Could not deliver the epub file, please try again.")
	}
}

func (b *Bot) handleArchiveCallback(ctx context.Context, chatID int64, token, id string) {
	if err := b.readeck.Archive(ctx, token, b.bindings.Resolve(id)); err != nil {
		b.replyError(chatID, err)
		return
	}
	b.reply(chatID, "This bookmark has been archived.")
}

func (b *Bot) handleSummarizeCallback(ctx context.Context, chatID int64, token, id string) {
	if b.summarizer == nil {
		b.reply(chatID, "Summaries are not enabled on this bot.")
		return
	}

	md, err := b.readeck.ArticleMarkdown(ctx, token, b.bindings.Resolve(id))
	if err != nil {
		b.replyError(chatID, err)
		return
	}

	text, err := b.summarizer.Summarize(ctx, md, b.summaryMax)
	if err != nil {
		b.log.Errorf("summarize: %v", err)
		b.reply(chatID, "Could not summarize the article.")
		return
	}
	b.reply(chatID, text)
}

// articleChunks fetches an article and prepares its ordered chunk
// sequence. Every chunk is fully escaped MarkdownV2, so each one is
// valid formatted text on its own.
func (b *Bot) articleChunks(ctx context.Context, token, suffix string) ([]string, error) {
	id := b.bindings.Resolve(suffix)
	md, err := b.readeck.ArticleMarkdown(ctx, token, id)
	if err != nil {
		return nil, err
	}
	return markdown.Split(markdown.EscapeV2(md), b.chunkLimit), nil
}

func (b *Bot) deliverChunked(chatID int64, md string) {
	chunks := markdown.Split(markdown.EscapeV2(md), b.chunkLimit)
	err := markdown.Deliver(chunks, func(i int, chunk string) error {
		reply := tgbotapi.NewMessage(chatID, chunk)
		reply.ParseMode = tgbotapi.ModeMarkdownV2
		_, sendErr := b.send.Send(reply)
		return sendErr
	})
	if err != nil {
		b.log.Errorf("deliver chunks: %v", err)
	}
}

// actionKeyboard builds the inline actions for one bookmark; the
// Summarize button only appears when the feature is configured.
func (b *Bot) actionKeyboard(id string) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Read", "read_"+id),
			tgbotapi.NewInlineKeyboardButtonData("Publish", "pub_"+id),
		),
	}
	second := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Epub", "epub_"+id),
	)
	if b.summarizer != nil {
		second = append(second, tgbotapi.NewInlineKeyboardButtonData("Summarize", "summarize_"+id))
	}
	rows = append(rows, second)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// replyMarkdownV2 sends formatted text without a keyboard.
func (b *Bot) replyMarkdownV2(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true
	if _, err := b.send.Send(msg); err != nil {
		b.log.Errorf("send reply: %v", err)
	}
}

// replyError turns a taxonomy error into a plain-language reply; the
// conversation turn is always answered.
func (b *Bot) replyError(chatID int64, err error) {
	var (
		authErr       *readeck.AuthError
		validationErr *readeck.ValidationError
		notFoundErr   *readeck.NotFoundError
		upstreamErr   *readeck.UpstreamError
	)
	switch {
	case errors.As(err, &authErr):
		b.reply(chatID,
			"Readeck rejected your token.\n"+
				"Set a new one with /token <YOUR_TOKEN> or /register <password>.")
	case errors.As(err, &notFoundErr):
		b.reply(chatID, "I couldn't find that bookmark on your account.")
	case errors.As(err, &validationErr):
		b.reply(chatID, "Readeck refused that request: "+validationErr.Msg)
	case errors.As(err, &upstreamErr):
		b.reply(chatID, "Readeck seems to be having trouble right now, please try again later.")
	default:
		b.log.Errorf("unclassified error: %v", err)
		b.reply(chatID, "Having troubles now... try later.")
	}
}
