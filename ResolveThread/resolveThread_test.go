package ResolveThread

import (
	"errors"
	"io"
	"testing"

	"slack-image-reviewer/Models"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSlack serves canned file info; the resolver never posts or downloads.
type fakeSlack struct {
	file         *slack.File
	fileInfoErr  error
	fileInfoHits int
}

func (f *fakeSlack) GetFileInfo(fileID string, count, page int) (*slack.File, []slack.Comment, *slack.Paging, error) {
	f.fileInfoHits++
	if f.fileInfoErr != nil {
		return nil, nil, nil, f.fileInfoErr
	}
	return f.file, nil, nil, nil
}

func (f *fakeSlack) GetFile(downloadURL string, writer io.Writer) error {
	return errors.New("not used by the resolver")
}

func (f *fakeSlack) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	return "", "", errors.New("not used by the resolver")
}

func TestMessageTimestampAnchorsThread(t *testing.T) {
	slackApi := &fakeSlack{}

	upload := Models.UploadEvent{
		Kind:      Models.KindMention,
		ChannelID: "C001",
		MessageTs: "100.1",
		EventTs:   "999.9",
	}

	replyContext, resolveError := ResolveReplyContext(slackApi, upload)
	require.NoError(t, resolveError)
	assert.Equal(t, "C001", replyContext.ChannelID)
	assert.Equal(t, "100.1", replyContext.ThreadAnchor, "message-level ts wins over event-level ts")
	assert.Zero(t, slackApi.fileInfoHits, "no file lookup when an inline ts exists")
}

func TestThreadTsWinsInsideAnExistingThread(t *testing.T) {
	upload := Models.UploadEvent{
		Kind:      Models.KindMention,
		ChannelID: "C001",
		MessageTs: "100.2",
		ThreadTs:  "100.1",
	}

	replyContext, resolveError := ResolveReplyContext(&fakeSlack{}, upload)
	require.NoError(t, resolveError)
	assert.Equal(t, "100.1", replyContext.ThreadAnchor, "reply joins the parent thread instead of forking one")
}

func TestShareRecordFallbackAnchorsThread(t *testing.T) {
	slackApi := &fakeSlack{
		file: &slack.File{
			ID: "F001",
			Shares: slack.Share{
				Public: map[string][]slack.ShareFileInfo{
					"C001": {{Ts: "200.2"}, {Ts: "201.0"}},
				},
			},
		},
	}

	// upload event with no inline timestamp at all
	upload := Models.UploadEvent{
		Kind:      Models.KindFileShared,
		ChannelID: "C001",
		FileID:    "F001",
	}

	replyContext, resolveError := ResolveReplyContext(slackApi, upload)
	require.NoError(t, resolveError)
	assert.Equal(t, "200.2", replyContext.ThreadAnchor, "first recorded share is the anchor")
}

func TestUnthreadedFallbackWhenNothingResolves(t *testing.T) {
	slackApi := &fakeSlack{fileInfoErr: errors.New("file_not_found")}

	upload := Models.UploadEvent{
		Kind:      Models.KindFileShared,
		ChannelID: "C001",
		UserID:    "U001",
		FileID:    "F001",
	}

	replyContext, resolveError := ResolveReplyContext(slackApi, upload)
	require.NoError(t, resolveError)
	assert.Equal(t, "C001", replyContext.ChannelID)
	assert.Empty(t, replyContext.ThreadAnchor, "unthreaded reply when no anchor resolves")
}

func TestUnresolvableChannelAbandonsReply(t *testing.T) {
	upload := Models.UploadEvent{Kind: Models.KindUnknown, EventID: "Ev001"}

	_, resolveError := ResolveReplyContext(&fakeSlack{}, upload)
	assert.Error(t, resolveError)
}
