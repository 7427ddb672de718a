package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/rubiojr/dcwatch/internal/appfs"
)

var ErrNotRegistered = errors.New("not registered with WhatsApp. Please run 'dcwatch register' first to authenticate")

// Client is the WhatsApp session used to deliver notifications.
type Client struct {
	whatsmeowClient *whatsmeow.Client
}

var (
	clientInstance *Client
	once           sync.Once
	initError      error
)

// GetClient connects the registered session once per process.
func GetClient(ctx context.Context) (*Client, error) {
	once.Do(func() {
		clientInstance, initError = initClient(ctx)
	})
	return clientInstance, initError
}

func initClient(ctx context.Context) (*Client, error) {
	dbFile := appfs.SessionPath()

	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		return nil, ErrNotRegistered
	}

	container, err := sqlstore.New(ctx, "sqlite3", dsn(dbFile), nil)
	if err != nil {
		return nil, ErrNotRegistered
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	whatsmeowClient := whatsmeow.NewClient(deviceStore, nil)

	if whatsmeowClient.Store.ID == nil {
		return nil, ErrNotRegistered
	}

	if err := whatsmeowClient.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	return &Client{whatsmeowClient: whatsmeowClient}, nil
}

// NewClientForRegistration opens the session database, creating it when
// missing, without requiring a paired device.
func NewClientForRegistration(ctx context.Context) (*Client, error) {
	dbFile := appfs.SessionPath()

	if err := appfs.EnsureParent(dbFile); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite3", dsn(dbFile), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return &Client{whatsmeowClient: whatsmeow.NewClient(deviceStore, nil)}, nil
}

// IsRegistered reports whether a paired session exists on disk.
func IsRegistered(ctx context.Context) (bool, error) {
	dbFile := appfs.SessionPath()

	if _, err := os.Stat(dbFile); os.IsNotExist(err) {
		return false, nil
	}

	container, err := sqlstore.New(ctx, "sqlite3", dsn(dbFile), nil)
	if err != nil {
		return false, err
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return false, err
	}

	return deviceStore.ID != nil, nil
}

func (c *Client) Disconnect() {
	if c.whatsmeowClient != nil {
		c.whatsmeowClient.Disconnect()
	}
}

// ParseRecipient accepts a full JID (group or user) or a bare phone number.
func ParseRecipient(recipient string) (types.JID, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return types.JID{}, errors.New("empty recipient")
	}
	if strings.Contains(recipient, "@") {
		return types.ParseJID(recipient)
	}
	return types.NewJID(strings.TrimPrefix(recipient, "+"), types.DefaultUserServer), nil
}

func (c *Client) SendText(ctx context.Context, recipientJID types.JID, message string) error {
	msg := &waE2E.Message{
		Conversation: proto.String(message),
	}

	_, err := c.whatsmeowClient.SendMessage(ctx, recipientJID, msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

func (c *Client) Register(ctx context.Context) error {
	if c.whatsmeowClient.Store.ID != nil {
		return fmt.Errorf("already registered, session exists")
	}

	fmt.Println("Starting WhatsApp registration...")
	qrChan, _ := c.whatsmeowClient.GetQRChannel(ctx)
	err := c.whatsmeowClient.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	for evt := range qrChan {
		if evt.Event == "code" {
			fmt.Println("Scan the QR code below with WhatsApp:")
			config := qrterminal.Config{
				HalfBlocks: true,
				Level:      qrterminal.M,
				Writer:     os.Stdout,
			}
			qrterminal.GenerateWithConfig(evt.Code, config)
		} else {
			fmt.Printf("Login event: %s\n", evt.Event)
			if evt.Event == "success" {
				fmt.Println("Successfully registered with WhatsApp!")
				return nil
			}
		}
	}

	return fmt.Errorf("registration failed")
}

func dsn(dbFile string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on", dbFile)
}
