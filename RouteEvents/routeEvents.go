package RouteEvents

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"slack-image-reviewer/AssembleContext"
	"slack-image-reviewer/Ledger"
	"slack-image-reviewer/Models"
	"slack-image-reviewer/PublishToSlack"
	"slack-image-reviewer/Repo"
	"slack-image-reviewer/ResolveThread"
	"slack-image-reviewer/ReviewImage"
	"slack-image-reviewer/SlackFiles"

	"github.com/jackc/pgx/v5/pgxpool"
)

type UploadEvent = Models.UploadEvent
type EventEnvelope = Models.EventEnvelope

// Router classifies each inbound envelope and sequences the ledgers, the
// thread resolver, the context assembler and the review pipeline. It owns
// the only mutable state in the process (the ledger service).
type Router struct {
	SlackApi    Models.SlackGateway
	VisionModel ReviewImage.VisionModel
	ModelName   string
	Ledgers     *Ledger.Service

	// BotUserID is our own identity, used by the self-origin guard.
	BotUserID string

	DatasetPath string
	ImageDir    string

	// DbPool is optional; nil disables review-history logging.
	DbPool *pgxpool.Pool
}

func NewRouter(
	slackApi Models.SlackGateway,
	visionModel ReviewImage.VisionModel,
	modelName string,
	botUserId string,
	datasetPath string,
	imageDir string) *Router {

	return &Router{
		SlackApi:    slackApi,
		VisionModel: visionModel,
		ModelName:   modelName,
		Ledgers:     Ledger.NewService(),
		BotUserID:   botUserId,
		DatasetPath: datasetPath,
		ImageDir:    imageDir,
	}
}

// DispatchRaw parses one socket-mode events_api payload and dispatches it.
// A payload that doesn't parse is dropped with a log line; there is nobody
// to reply to.
func (r *Router) DispatchRaw(ctx context.Context, payload []byte) {
	var envelope EventEnvelope
	if unmarshalError := json.Unmarshal(payload, &envelope); unmarshalError != nil {
		log.Printf("RouteEvents:DispatchRaw#Error parsing event payload: %s", unmarshalError.Error())
		return
	}
	r.Dispatch(ctx, envelope)
}

// Dispatch handles exactly one envelope to completion. Priority order:
// dedup, self-origin guard, then the per-shape rules. Every path either
// posts at most one reply or logs why it stayed silent.
func (r *Router) Dispatch(ctx context.Context, envelope EventEnvelope) {
	now := time.Now()

	// transport-level dedup comes first: an ack that arrived too late
	// makes Slack redeliver the identical envelope, whatever its shape
	if r.Ledgers.SeenOrRecord(envelope.EventID, now) {
		log.Printf("RouteEvents:Dispatch#duplicate event %s dropped", envelope.EventID)
		return
	}

	upload := Models.ExtractUploadEvent(envelope)

	// self-origin guard: never react to ourselves, or reply loops follow
	if upload.BotID != "" || (upload.UserID != "" && upload.UserID == r.BotUserID) {
		log.Printf("RouteEvents:Dispatch#ignoring self-origin event %s", upload.EventID)
		return
	}

	switch upload.Kind {
	case Models.KindMention:
		if upload.FileID != "" {
			r.handleMentionWithFile(ctx, upload, now)
		} else {
			r.handleBareMention(upload)
		}
	case Models.KindFileShared:
		r.handleStandaloneUpload(upload, now)
	case Models.KindMessage:
		if upload.SubType == "file_share" {
			// redundant copy of the file_shared event; the mention
			// pathway supersedes it
			log.Printf("RouteEvents:Dispatch#ignoring file_share message duplicate for file %s", upload.FileID)
			return
		}
		log.Printf("RouteEvents:Dispatch#ignoring message event %s (subtype %q)", upload.EventID, upload.SubType)
	default:
		log.Printf("RouteEvents:Dispatch#ignoring event %s of unknown shape", upload.EventID)
	}
}

// handleMentionWithFile is the review pathway: claim the file so the
// standalone upload event stands down, then resolve, assemble, review and
// reply.
func (r *Router) handleMentionWithFile(ctx context.Context, upload UploadEvent, now time.Time) {
	r.Ledgers.Claim(upload.FileID, now)

	replyContext, resolveError := ResolveThread.ResolveReplyContext(r.SlackApi, upload)
	if resolveError != nil {
		log.Printf("RouteEvents:handleMentionWithFile#Error resolving reply context for event %s: %s", upload.EventID, resolveError.Error())
		return
	}

	subject, fetchError := SlackFiles.FetchSubjectImage(r.SlackApi, upload.FileID)
	if fetchError != nil {
		log.Printf("RouteEvents:handleMentionWithFile#Error fetching file %s: %s", upload.FileID, fetchError.Error())
		r.post(replyContext, PublishToSlack.ApologyText(upload.UserID))
		return
	}

	examples := AssembleContext.LoadExamples(r.DatasetPath, r.ImageDir, AssembleContext.ExampleSampleSize)

	reviewReply := ReviewImage.ReviewSubjectImage(ctx, r.VisionModel, r.ModelName, subject, examples, upload.UserID)
	r.post(replyContext, reviewReply)

	r.saveReviewHistory(upload)
}

// handleBareMention posts the static greeting; no model call.
func (r *Router) handleBareMention(upload UploadEvent) {
	replyContext, resolveError := ResolveThread.ResolveReplyContext(r.SlackApi, upload)
	if resolveError != nil {
		log.Printf("RouteEvents:handleBareMention#Error resolving reply context for event %s: %s", upload.EventID, resolveError.Error())
		return
	}
	r.post(replyContext, PublishToSlack.GreetingText(upload.UserID))
}

// handleStandaloneUpload replies with guidance for an upload nobody
// mentioned us about, unless the mention pathway already claimed the file.
func (r *Router) handleStandaloneUpload(upload UploadEvent, now time.Time) {
	if upload.FileID == "" {
		log.Printf("RouteEvents:handleStandaloneUpload#file_shared event %s without file_id", upload.EventID)
		return
	}

	if r.Ledgers.IsClaimed(upload.FileID, now) {
		// mention pathway owns this upload; stand down silently
		log.Printf("RouteEvents:handleStandaloneUpload#file %s already claimed, standing down", upload.FileID)
		return
	}

	replyContext, resolveError := ResolveThread.ResolveReplyContext(r.SlackApi, upload)
	if resolveError != nil {
		log.Printf("RouteEvents:handleStandaloneUpload#Error resolving reply context for event %s: %s", upload.EventID, resolveError.Error())
		return
	}
	r.post(replyContext, PublishToSlack.GuidanceText(upload.UserID))
}

func (r *Router) post(replyContext Models.ReplyContext, text string) {
	if postError := PublishToSlack.PostReply(r.SlackApi, replyContext, text); postError != nil {
		// nothing further to do; the event is considered handled
		log.Printf("RouteEvents:post#Error posting reply to %s: %s", replyContext.ChannelID, postError.Error())
	}
}

// saveReviewHistory records a completed review when a database is
// configured. Failures only log; history is strictly an audit trail.
func (r *Router) saveReviewHistory(upload UploadEvent) {
	if r.DbPool == nil {
		return
	}

	saveError := Repo.SaveReviewToDb(r.DbPool, upload.EventID, upload.FileID, upload.UserID, upload.ChannelID, r.ModelName)
	if saveError != nil {
		log.Printf("RouteEvents:saveReviewHistory#Error saving review for file %s: %s", upload.FileID, saveError.Error())
		return
	}

	if reviewCount, countError := Repo.CountReviewsForUser(r.DbPool, upload.UserID); countError == nil {
		log.Printf("RouteEvents:saveReviewHistory#user %s has %d reviews on record", upload.UserID, reviewCount)
	}
}
