package worker

import (
	"context"
	"fmt"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/mailer"

	"go.uber.org/zap"
)

type SubscriberStore interface {
	ListActive(ctx context.Context) ([]model.Subscription, error)
	MarkSent(ctx context.Context, ids []int64, at time.Time) error
}

type UnsubscribeLinker interface {
	UnsubscribeURL(email string) (string, error)
}

// 新刊を購読者にメールで知らせる
type NewBookNotifier struct {
	queue   chan model.Book
	subs    SubscriberStore
	mail    mailer.Client
	links   UnsubscribeLinker
	siteURL string
	log     *zap.Logger
	now     func() time.Time
}

func NewNewBookNotifier(subs SubscriberStore, mail mailer.Client, links UnsubscribeLinker, siteURL string, buffer int, log *zap.Logger) *NewBookNotifier {
	if buffer <= 0 {
		buffer = 16
	}
	return &NewBookNotifier{
		queue:   make(chan model.Book, buffer),
		subs:    subs,
		mail:    mail,
		links:   links,
		siteURL: siteURL,
		log:     log,
		now:     time.Now,
	}
}

// いっぱいなら捨ててfalse。リクエストは待たせない
func (n *NewBookNotifier) Enqueue(book model.Book) bool {
	select {
	case n.queue <- book:
		return true
	default:
		n.log.Warn("new book notification dropped", zap.Int64("book_id", book.ID))
		return false
	}
}

func (n *NewBookNotifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case book := <-n.queue:
			if err := n.Notify(ctx, book); err != nil && ctx.Err() == nil {
				n.log.Error("new book notification failed", zap.Int64("book_id", book.ID), zap.Error(err))
			}
		}
	}
}

// 有効な購読者全員に送る。送れた分だけ last_sent を更新
func (n *NewBookNotifier) Notify(ctx context.Context, book model.Book) error {
	subs, err := n.subs.ListActive(ctx)
	if err != nil {
		return err
	}

	sent := make([]int64, 0, len(subs))
	for _, s := range subs {
		link, err := n.links.UnsubscribeURL(s.Email)
		if err != nil {
			return err
		}

		msg := mailer.Message{
			To:      s.Email,
			Subject: fmt.Sprintf("New book: %s", book.Title),
			Body: fmt.Sprintf("%s by %s is now available.\n%s/books/%s\n\nUnsubscribe: %s\n",
				book.Title, book.Author, n.siteURL, book.Slug, link),
		}
		if err := n.mail.Send(ctx, msg); err != nil {
			if ctx.Err() != nil {
				break
			}
			n.log.Warn("notify subscriber failed", zap.Int64("subscription_id", s.ID), zap.Error(err))
			continue
		}
		sent = append(sent, s.ID)
	}

	return n.subs.MarkSent(ctx, sent, n.now())
}
