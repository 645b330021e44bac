package Models

import (
	"io"

	"github.com/slack-go/slack"
)

// FileRef is one attached file inside an inbound event. Slack sends a lot
// more fields here but the id is the only one we act on.
type FileRef struct {
	ID string `json:"id"`
}

// InnerEvent is the event object inside an Events API callback. The three
// upload shapes (app_mention, file_shared, message/file_share) expose the
// same facts under different field names, so this struct is the union of
// all of them and ExtractUploadEvent normalizes it.
type InnerEvent struct {
	Type      string    `json:"type"`
	SubType   string    `json:"subtype,omitempty"`
	User      string    `json:"user,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	BotID     string    `json:"bot_id,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	ChannelID string    `json:"channel_id,omitempty"`
	Text      string    `json:"text,omitempty"`
	Ts        string    `json:"ts,omitempty"`
	ThreadTs  string    `json:"thread_ts,omitempty"`
	EventTs   string    `json:"event_ts,omitempty"`
	FileID    string    `json:"file_id,omitempty"`
	Files     []FileRef `json:"files,omitempty"`
	Upload    bool      `json:"upload,omitempty"`
}

type Authorization struct {
	UserID string `json:"user_id"`
	IsBot  bool   `json:"is_bot"`
}

// EventEnvelope is the Events API callback as delivered over socket mode.
// It exists only for the duration of one dispatch call.
type EventEnvelope struct {
	EventID        string          `json:"event_id"`
	Type           string          `json:"type"`
	Event          InnerEvent      `json:"event"`
	Authorizations []Authorization `json:"authorizations,omitempty"`
}

// EventKind tags the canonical shape a raw envelope normalized into.
type EventKind int

const (
	KindUnknown EventKind = iota
	// KindMention is an app_mention event, with or without attached files.
	KindMention
	// KindFileShared is the standalone file_shared event.
	KindFileShared
	// KindMessage is any message event, including the file_share subtype
	// that duplicates a file_shared event.
	KindMessage
)

// UploadEvent is the canonical view of one inbound event after shape
// normalization. The resolver and the router only ever see this struct.
type UploadEvent struct {
	Kind      EventKind
	EventID   string
	UserID    string
	BotID     string
	ChannelID string
	Text      string
	SubType   string
	// MessageTs is the message-level timestamp, set only for
	// message-shaped events (mentions and messages).
	MessageTs string
	// ThreadTs is the parent thread timestamp when the message was
	// already inside a thread.
	ThreadTs string
	// EventTs is the event-level timestamp, present on most shapes.
	EventTs string
	// FileID is the first attached file, if any.
	FileID string
}

// ReplyContext is where a reply for one logical upload goes. An empty
// ThreadAnchor means an unthreaded channel message.
type ReplyContext struct {
	ChannelID    string
	ThreadAnchor string
}

// ExampleRecord is one reference example used to ground a review: the
// annotation text from the dataset plus the actual image bytes.
type ExampleRecord struct {
	Filename        string
	PerformanceInfo string
	ImageBytes      []byte
	MimeType        string
}

// SubjectImage is the uploaded image under review.
type SubjectImage struct {
	FileID   string
	Name     string
	MimeType string
	Bytes    []byte
}

// SlackGateway is the slice of the Slack Web API the bot uses.
// *slack.Client satisfies it; tests substitute fakes.
type SlackGateway interface {
	GetFileInfo(fileID string, count, page int) (*slack.File, []slack.Comment, *slack.Paging, error)
	GetFile(downloadURL string, writer io.Writer) error
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// ExtractUploadEvent normalizes one raw envelope into the canonical
// UploadEvent, one branch per upstream shape.
func ExtractUploadEvent(envelope EventEnvelope) UploadEvent {
	inner := envelope.Event

	upload := UploadEvent{
		EventID: envelope.EventID,
		BotID:   inner.BotID,
		Text:    inner.Text,
		SubType: inner.SubType,
		EventTs: inner.EventTs,
	}

	switch inner.Type {
	case "app_mention":
		upload.Kind = KindMention
		upload.UserID = inner.User
		upload.ChannelID = inner.Channel
		upload.MessageTs = inner.Ts
		upload.ThreadTs = inner.ThreadTs
		if len(inner.Files) > 0 {
			upload.FileID = inner.Files[0].ID
		}
	case "file_shared":
		upload.Kind = KindFileShared
		upload.UserID = inner.UserID
		upload.ChannelID = inner.ChannelID
		upload.FileID = inner.FileID
	case "message":
		upload.Kind = KindMessage
		upload.UserID = inner.User
		upload.ChannelID = inner.Channel
		upload.MessageTs = inner.Ts
		upload.ThreadTs = inner.ThreadTs
		if len(inner.Files) > 0 {
			upload.FileID = inner.Files[0].ID
		}
	default:
		upload.Kind = KindUnknown
		upload.UserID = inner.User
		if upload.UserID == "" {
			upload.UserID = inner.UserID
		}
		upload.ChannelID = inner.Channel
		if upload.ChannelID == "" {
			upload.ChannelID = inner.ChannelID
		}
	}

	return upload
}
