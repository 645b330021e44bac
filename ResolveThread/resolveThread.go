package ResolveThread

import (
	"fmt"
	"log"

	"slack-image-reviewer/Models"
)

type UploadEvent = Models.UploadEvent
type ReplyContext = Models.ReplyContext

// ResolveReplyContext derives the one stable (channel, thread anchor) pair
// for a logical upload, whichever of the three event shapes delivered it.
//
// Resolution order:
//  1. message-level timestamp, for message-shaped events (a mention that
//     happened inside a thread anchors on the parent thread instead of
//     forking a new one)
//  2. event-level timestamp
//  3. file share records from files.info, for upload events that carry no
//     inline timestamp at all
//  4. channel known but no anchor -> unthreaded reply
//  5. channel unknown -> no reply is possible
func ResolveReplyContext(slackApi Models.SlackGateway, upload UploadEvent) (ReplyContext, error) {
	if upload.ChannelID == "" {
		return ReplyContext{}, fmt.Errorf("no channel on event %q, cannot reply", upload.EventID)
	}

	replyContext := ReplyContext{ChannelID: upload.ChannelID}

	if upload.Kind == Models.KindMention || upload.Kind == Models.KindMessage {
		if upload.ThreadTs != "" {
			replyContext.ThreadAnchor = upload.ThreadTs
			return replyContext, nil
		}
		if upload.MessageTs != "" {
			replyContext.ThreadAnchor = upload.MessageTs
			return replyContext, nil
		}
	}

	if upload.EventTs != "" {
		replyContext.ThreadAnchor = upload.EventTs
		return replyContext, nil
	}

	if upload.FileID != "" {
		shareTs := lookupShareTimestamp(slackApi, upload.FileID, upload.ChannelID)
		if shareTs != "" {
			replyContext.ThreadAnchor = shareTs
			return replyContext, nil
		}
	}

	// no anchor anywhere; reply unthreaded rather than not at all
	log.Printf("ResolveThread:ResolveReplyContext#no thread anchor for event %q in channel %s, replying unthreaded", upload.EventID, upload.ChannelID)
	return replyContext, nil
}

// lookupShareTimestamp asks files.info for the share records of fileId and
// returns the timestamp of the first recorded share in channelId, or "".
func lookupShareTimestamp(slackApi Models.SlackGateway, fileId string, channelId string) string {
	file, _, _, getFileInfoError := slackApi.GetFileInfo(fileId, 0, 0)

	if getFileInfoError != nil {
		log.Printf("ResolveThread:lookupShareTimestamp#Error fetching file info for %s: %s", fileId, getFileInfoError.Error())
		return ""
	}

	if shares, ok := file.Shares.Public[channelId]; ok && len(shares) > 0 {
		return shares[0].Ts
	}
	if shares, ok := file.Shares.Private[channelId]; ok && len(shares) > 0 {
		return shares[0].Ts
	}
	return ""
}
