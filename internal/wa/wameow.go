package wa

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/leadstack/wa-gateway/internal/creds"
	"github.com/leadstack/wa-gateway/internal/utils"

	_ "github.com/mattn/go-sqlite3"
)

// MeowDialer opens whatsmeow-backed protocol clients with one sqlite
// credential container per connection id.
type MeowDialer struct {
	creds  creds.Store
	logger *log.Logger
}

func NewMeowDialer(credStore creds.Store, logger *log.Logger) *MeowDialer {
	return &MeowDialer{creds: credStore, logger: logger}
}

func (d *MeowDialer) Dial(ctx context.Context, id string) (Client, error) {
	dbPath := d.creds.Path(id)
	dbLogger := waLog.Stdout("Database-"+id, "ERROR", true)

	container, err := sqlstore.New(ctx, "sqlite3", "file:"+dbPath+"?_foreign_keys=on", dbLogger)
	if err != nil {
		return nil, fmt.Errorf("database error: %v", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("device error: %v", err)
	}

	store.SetOSInfo("Linux", store.GetWAVersion())
	store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()

	clientLogger := waLog.Stdout("WhatsApp-"+id, "ERROR", true)
	cli := whatsmeow.NewClient(deviceStore, clientLogger)

	return &meowClient{id: id, cli: cli, container: container, logger: d.logger}, nil
}

// meowClient adapts one whatsmeow client to the Client interface.
type meowClient struct {
	id        string
	cli       *whatsmeow.Client
	container *sqlstore.Container
	logger    *log.Logger
}

func (c *meowClient) HasCredential() bool {
	return c.cli.Store.ID != nil
}

func (c *meowClient) Connect(ctx context.Context, onEvent func(ProtoEvent)) error {
	c.cli.AddEventHandler(func(evt interface{}) {
		switch e := evt.(type) {
		case *events.Connected:
			phone := ""
			if c.cli.Store.ID != nil {
				phone = c.cli.Store.ID.User
			}
			onEvent(ProtoEvent{Kind: ProtoConnected, Phone: phone})
		case *events.LoggedOut:
			onEvent(ProtoEvent{Kind: ProtoLoggedOut})
		case *events.Disconnected:
			onEvent(ProtoEvent{Kind: ProtoDisconnected})
		case *events.StreamError:
			onEvent(ProtoEvent{Kind: ProtoStreamError, Err: fmt.Errorf("stream error: %v", e)})
		}
	})

	// The QR channel must be requested before Connect. It keeps delivering
	// fresh codes as the previous ones expire, which is what drives the
	// qr_pending rotation.
	if !c.HasCredential() {
		qrChan, err := c.cli.GetQRChannel(ctx)
		if err != nil {
			return fmt.Errorf("failed to create QR channel: %v", err)
		}
		go func() {
			for item := range qrChan {
				switch item.Event {
				case "code":
					onEvent(ProtoEvent{Kind: ProtoQR, Code: item.Code})
				case "timeout":
					onEvent(ProtoEvent{Kind: ProtoStreamError, Err: errors.New("pairing timed out")})
				}
			}
		}()
	}

	return c.cli.Connect()
}

func (c *meowClient) Disconnect() {
	if c.cli.IsConnected() {
		c.cli.Disconnect()
	}
}

func (c *meowClient) Logout(ctx context.Context) error {
	return c.cli.Logout(ctx)
}

func (c *meowClient) Send(ctx context.Context, recipient string, p Payload) (string, error) {
	recipientJID := types.JID{
		User:   recipient,
		Server: "s.whatsapp.net",
	}

	// Reject numbers that are not on WhatsApp before uploading anything.
	resp, err := c.cli.IsOnWhatsApp([]string{recipient})
	if err != nil {
		return "", fmt.Errorf("failed to check number: %v", err)
	}
	if len(resp) == 0 || !resp[0].IsIn {
		return "", fmt.Errorf("recipient %s is not registered on WhatsApp", recipient)
	}

	msg, err := c.buildMessage(ctx, p)
	if err != nil {
		return "", err
	}

	opts := whatsmeow.SendRequestExtra{
		ID: whatsmeow.GenerateMessageID(),
	}

	if _, err := c.cli.SendMessage(ctx, recipientJID, msg, opts); err != nil {
		return "", fmt.Errorf("failed to send message: %v", err)
	}
	return string(opts.ID), nil
}

func (c *meowClient) buildMessage(ctx context.Context, p Payload) (*waE2E.Message, error) {
	if p.Kind == MediaNone {
		return &waE2E.Message{Conversation: proto.String(p.Text)}, nil
	}

	var waMediaType whatsmeow.MediaType
	switch p.Kind {
	case MediaImage:
		waMediaType = whatsmeow.MediaImage
	case MediaVideo:
		waMediaType = whatsmeow.MediaVideo
	case MediaDocument:
		waMediaType = whatsmeow.MediaDocument
	default:
		return nil, fmt.Errorf("invalid media type: %s", p.Kind)
	}

	uploaded, err := c.cli.Upload(ctx, p.Media, waMediaType)
	if err != nil {
		return nil, fmt.Errorf("failed to upload media: %v", err)
	}

	mimeType := http.DetectContentType(p.Media)

	switch p.Kind {
	case MediaImage:
		return &waE2E.Message{
			ImageMessage: &waE2E.ImageMessage{
				Caption:       proto.String(p.Caption),
				URL:           proto.String(uploaded.URL),
				DirectPath:    proto.String(uploaded.DirectPath),
				MediaKey:      uploaded.MediaKey,
				Mimetype:      proto.String(mimeType),
				FileEncSHA256: uploaded.FileEncSHA256,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    proto.Uint64(uint64(len(p.Media))),
			},
		}, nil
	case MediaVideo:
		videoMsg := &waE2E.VideoMessage{
			Caption:       proto.String(p.Caption),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			Mimetype:      proto.String(mimeType),
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uint64(len(p.Media))),
		}
		// Thumbnail is cosmetic; a failed ffmpeg run must not block the send.
		if thumb, err := utils.VideoThumbnail(p.Media, 0, 72); err == nil {
			videoMsg.JPEGThumbnail = thumb
		} else {
			c.logger.Printf("Client %s failed to generate video thumbnail: %v", c.id, err)
		}
		return &waE2E.Message{VideoMessage: videoMsg}, nil
	default:
		return &waE2E.Message{
			DocumentMessage: &waE2E.DocumentMessage{
				Caption:       proto.String(p.Caption),
				URL:           proto.String(uploaded.URL),
				DirectPath:    proto.String(uploaded.DirectPath),
				MediaKey:      uploaded.MediaKey,
				Mimetype:      proto.String(mimeType),
				FileEncSHA256: uploaded.FileEncSHA256,
				FileSHA256:    uploaded.FileSHA256,
				FileLength:    proto.Uint64(uint64(len(p.Media))),
				FileName:      proto.String(p.FileName),
			},
		}, nil
	}
}

func (c *meowClient) Close() error {
	if c.container != nil {
		c.container.Close()
	}
	return nil
}
