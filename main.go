package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"slack-image-reviewer/Repo"
	"slack-image-reviewer/RouteEvents"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"google.golang.org/genai"
)

var dbPool *pgxpool.Pool

func main() {

	if dotenvError := godotenv.Load(); dotenvError != nil {
		log.Println("No .env file found, using process environment")
	}

	slackBotToken := mustEnv("SLACK_BOT_TOKEN")
	slackAppToken := mustEnv("SLACK_APP_TOKEN") // Socket Mode needs the app-level token
	geminiApiKey := mustEnv("GEMINI_API_KEY")
	modelName := envOr("GEMINI_MODEL", "gemini-3-pro-preview")
	datasetPath := envOr("REFERENCE_DATA_CSV", "reference_data.csv")
	imageDir := envOr("REFERENCE_IMAGE_DIR", "reference_images")
	port := envOr("PORT", "8080")

	ctx := context.Background()

	slackApi := slack.New(slackBotToken, slack.OptionAppLevelToken(slackAppToken))

	// our own user id feeds the self-origin guard
	authTestResponse, authTestError := slackApi.AuthTest()
	if authTestError != nil {
		log.Fatal("Slack auth test failed:", authTestError)
	}

	// Gemini setup
	genAiClient, genAiError := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  geminiApiKey,
		Backend: genai.BackendGeminiAPI,
	})

	if genAiError != nil {
		log.Fatal(genAiError)
	}

	router := RouteEvents.NewRouter(slackApi, genAiClient.Models, modelName, authTestResponse.UserID, datasetPath, imageDir)

	// review history is optional; the bot runs fine without a database
	if databaseUrl := os.Getenv("DATABASE_URL"); databaseUrl != "" {
		dbInitialisationError := Repo.InitDbPool(&dbPool, databaseUrl)

		if dbInitialisationError != nil {
			log.Fatal("Failed to initialise DB:", dbInitialisationError)
		}
		router.DbPool = dbPool
	}

	// ledger sweep runs on its own schedule, decoupled from dispatch
	sweeper := cron.New()
	if _, sweepScheduleError := sweeper.AddFunc("@every 1m", func() {
		router.Ledgers.Purge(time.Now())
	}); sweepScheduleError != nil {
		log.Fatal("Failed to schedule ledger sweep:", sweepScheduleError)
	}
	sweeper.Start()

	// Health endpoint
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		seenEvents, fileClaims := router.Ledgers.Sizes()
		fmt.Fprintf(w, "Service running (%d seen events, %d live claims)", seenEvents, fileClaims)
	})

	go func() {
		log.Fatal(http.ListenAndServe(":"+port, nil))
	}()

	socketClient := socketmode.New(slackApi)

	// single dispatch goroutine: one envelope at a time, a handler runs
	// to completion before the next event is taken off the channel
	go func() {
		for socketEvent := range socketClient.Events {
			switch socketEvent.Type {
			case socketmode.EventTypeEventsAPI:
				if socketEvent.Request == nil {
					continue
				}
				// ack first; a handler slower than Slack's ack window
				// means redelivery, which the dedup ledger absorbs
				socketClient.Ack(*socketEvent.Request)
				router.DispatchRaw(ctx, socketEvent.Request.Payload)
			case socketmode.EventTypeConnectionError:
				log.Println("Socket mode connection error:", socketEvent.Data)
			}
		}
	}()

	log.Printf("starting image reviewer as %s (%s)...", authTestResponse.User, authTestResponse.UserID)
	log.Fatal(socketClient.Run())
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("missing required env: %s", key)
	}
	return v
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
