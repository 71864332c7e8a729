package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"camsync/internal/pkg/logging"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// Client is a connected Telegram user session used to post notifications.
type Client struct {
	client *telegram.Client
	api    *tg.Client
	sender *message.Sender
	log    *zap.Logger

	peerCache map[int64]int64 // map[ChannelID]AccessHash
	mu        sync.RWMutex
}

// AuthInput defines an interface for interactive authentication input.
type AuthInput interface {
	GetPhoneNumber() (string, error)
	GetCode() (string, error)
	GetPassword() (string, error)
}

func NewClient(appID int, appHash string, sessionFile string, log *zap.Logger) (*Client, error) {
	if err := os.MkdirAll(filepath.Dir(sessionFile), 0700); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}

	log = logging.OrGlobal(log).Named("telegram")
	client := telegram.NewClient(appID, appHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionFile},
		Logger:         log.Named("gotd").WithOptions(zap.IncreaseLevel(zap.WarnLevel)),
	})

	return &Client{
		client:    client,
		log:       log,
		peerCache: make(map[int64]int64),
	}, nil
}

// Start connects and authenticates the client. The connection stays open
// until ctx is cancelled. input may be nil, in which case an unauthorized
// session fails with ErrAuthRequired.
func (c *Client) Start(ctx context.Context, input AuthInput) error {
	ready := make(chan error, 1)

	go func() {
		c.log.Debug("starting client run loop")
		err := c.client.Run(ctx, func(ctx context.Context) error {
			status, err := c.client.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("auth status check failed: %w", err)
			}

			if !status.Authorized {
				c.log.Info("not authorized, starting auth flow")
				flow := auth.NewFlow(termAuth{input: input}, auth.SendCodeOptions{})
				if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
					return fmt.Errorf("auth flow failed: %w", err)
				}
				c.log.Info("authorization successful")
			}

			c.mu.Lock()
			c.api = c.client.API()
			c.sender = message.NewSender(c.api)
			c.mu.Unlock()

			select {
			case ready <- nil:
			default:
			}

			c.log.Debug("client connected")
			<-ctx.Done()
			return ctx.Err()
		})
		if err != nil && ctx.Err() == nil {
			c.log.Warn("client run loop exited", zap.Error(err))
		}
		select {
		case ready <- err:
		default:
		}
	}()

	select {
	case err := <-ready:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) getAccessHash(id int64) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.peerCache[id]
	return h, ok
}

func (c *Client) setAccessHash(id int64, hash int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.peerCache[id] = hash
}

func (c *Client) inputPeer(groupID int64) *tg.InputPeerChannel {
	accessHash, _ := c.getAccessHash(groupID)
	return &tg.InputPeerChannel{ChannelID: groupID, AccessHash: accessHash}
}
