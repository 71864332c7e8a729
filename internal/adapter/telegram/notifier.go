package telegram

import (
	"context"
	"fmt"
	"time"

	"camsync/internal/domain"
	"camsync/internal/pkg/retry"

	"github.com/dustin/go-humanize"
	"github.com/gotd/td/telegram/message/styling"
)

var _ domain.Notifier = (*Notifier)(nil)

// Notifier posts update notifications into a forum topic.
type Notifier struct {
	client  *Client
	groupID int64
	topicID int64
	now     func() time.Time
}

// NewNotifier returns a Notifier for a started Client. The group must have
// been resolved with ResolveGroup first.
func NewNotifier(client *Client, groupID, topicID int64) *Notifier {
	return &Notifier{client: client, groupID: groupID, topicID: topicID, now: time.Now}
}

// NotifyUpdate implements domain.Notifier.
func (n *Notifier) NotifyUpdate(ctx context.Context, u domain.UpdateNotification) error {
	title, lines := formatUpdate(u, n.now())
	body := []styling.StyledTextOption{styling.Bold(title)}
	for _, l := range lines {
		body = append(body, styling.Plain("\n"+l.label+": "), styling.Code(l.value))
	}

	peer := n.client.inputPeer(n.groupID)
	return retry.WithRetry(ctx, "post update notification", func() error {
		n.client.mu.RLock()
		sender := n.client.sender
		n.client.mu.RUnlock()
		if sender == nil {
			return retry.Permanent(fmt.Errorf("telegram client not started"))
		}
		var err error
		if n.topicID != 0 {
			_, err = sender.To(peer).Reply(int(n.topicID)).StyledText(ctx, body...)
		} else {
			_, err = sender.To(peer).StyledText(ctx, body...)
		}
		return err
	}, 3, time.Second)
}

type line struct {
	label string
	value string
}

func formatUpdate(u domain.UpdateNotification, now time.Time) (string, []line) {
	title := "Server file updated"
	if u.DiffDays > 0 {
		title = fmt.Sprintf("Server file updated (%d days newer)", u.DiffDays)
	}
	local := "never synced"
	if !u.LocalModified.IsZero() {
		local = humanize.RelTime(u.LocalModified, now, "ago", "from now")
	}
	return title, []line{
		{"Server", u.ServerPath},
		{"Local", u.LocalPath},
		{"Server modified", humanize.RelTime(u.ServerModified, now, "ago", "from now")},
		{"Local modified", local},
		{"Notification", u.ID},
	}
}
