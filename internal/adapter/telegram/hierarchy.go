package telegram

import (
	"context"
	"fmt"

	"camsync/internal/domain"

	"github.com/gotd/td/tg"
)

// ListGroups returns the supergroups in the account's recent dialogs.
func (c *Client) ListGroups(ctx context.Context) ([]domain.Group, error) {
	dialogs, err := c.api.MessagesGetDialogs(ctx, &tg.MessagesGetDialogsRequest{
		Limit:      100,
		OffsetPeer: &tg.InputPeerEmpty{},
	})
	if err != nil {
		return nil, err
	}

	var chats []tg.ChatClass
	switch d := dialogs.(type) {
	case *tg.MessagesDialogs:
		chats = d.Chats
	case *tg.MessagesDialogsSlice:
		chats = d.Chats
	}

	var groups []domain.Group
	for _, chat := range chats {
		if ch, ok := chat.(*tg.Channel); ok && ch.Megagroup {
			c.setAccessHash(ch.ID, ch.AccessHash)
			groups = append(groups, domain.Group{ID: ch.ID, Title: ch.Title})
		}
	}
	return groups, nil
}

// ResolveGroup ensures the AccessHash for the given groupID is cached.
func (c *Client) ResolveGroup(ctx context.Context, groupID int64) error {
	if _, ok := c.getAccessHash(groupID); ok {
		return nil
	}
	if _, err := c.ListGroups(ctx); err != nil {
		return err
	}
	if _, ok := c.getAccessHash(groupID); ok {
		return nil
	}
	return fmt.Errorf("group %d not found in recent dialogs", groupID)
}

// ListTopics returns the forum topics of a supergroup.
func (c *Client) ListTopics(ctx context.Context, groupID int64) ([]domain.Topic, error) {
	res, err := c.api.MessagesGetForumTopics(ctx, &tg.MessagesGetForumTopicsRequest{
		Peer:  c.inputPeer(groupID),
		Limit: 100,
	})
	if err != nil {
		return nil, err
	}

	var topics []domain.Topic
	for _, topic := range res.Topics {
		if ft, ok := topic.(*tg.ForumTopic); ok {
			topics = append(topics, domain.Topic{ID: int64(ft.ID), Title: ft.Title})
		}
	}
	return topics, nil
}
