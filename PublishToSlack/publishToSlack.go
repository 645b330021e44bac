package PublishToSlack

import (
	"fmt"
	"log"

	"slack-image-reviewer/Models"

	"github.com/slack-go/slack"
)

type ReplyContext = Models.ReplyContext

// PostReply posts text into the resolved conversation, threaded under the
// anchor when one was resolved. Link previews are disabled so review
// replies stay compact.
func PostReply(slackApi Models.SlackGateway, replyContext ReplyContext, text string) error {

	messageOptions := []slack.MsgOption{
		slack.MsgOptionText(text, false),
		slack.MsgOptionPostMessageParameters(slack.PostMessageParameters{
			UnfurlLinks: false,
			UnfurlMedia: false,
		}),
	}
	if replyContext.ThreadAnchor != "" {
		messageOptions = append(messageOptions, slack.MsgOptionTS(replyContext.ThreadAnchor))
	}

	_, _, postMessageError := slackApi.PostMessage(replyContext.ChannelID, messageOptions...)

	if postMessageError != nil {
		log.Printf("PublishToSlack:PostReply#Error posting to %s: %s", replyContext.ChannelID, postMessageError.Error())
		return postMessageError
	}
	return nil
}

// GreetingText is the static reply for a mention that carries no file.
func GreetingText(userId string) string {
	return fmt.Sprintf("Hi <@%s>! Share an image and mention me in the same message, and I'll review it for you.", userId)
}

// GuidanceText is the lightweight reply for a standalone upload nobody
// claimed: point the user at the mention pathway instead of reviewing.
func GuidanceText(userId string) string {
	return fmt.Sprintf("Thanks for the image, <@%s>! Mention me together with the file if you'd like a full review.", userId)
}

// ApologyText is the generic failure reply for anything that broke before
// the model could be asked.
func ApologyText(userId string) string {
	return fmt.Sprintf("Sorry <@%s>, something went wrong while handling your image. Please try again.", userId)
}
