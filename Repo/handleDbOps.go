package Repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The review history table is an audit log of completed reviews, not
// arbitration state: dedup and ownership stay in-process and die with it.

const reviewsSchema = `
CREATE TABLE IF NOT EXISTS reviews (
	id          BIGSERIAL PRIMARY KEY,
	event_id    TEXT NOT NULL,
	file_id     TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	channel_id  TEXT NOT NULL,
	model       TEXT NOT NULL,
	reviewed_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

func InitDbPool(dbPool **pgxpool.Pool, databaseUrl string) error {
	var dbConnectionError error
	*dbPool, dbConnectionError = pgxpool.New(context.Background(), databaseUrl)
	if dbConnectionError != nil {
		return dbConnectionError
	}

	_, ensureSchemaError := (*dbPool).Exec(context.Background(), reviewsSchema)
	if ensureSchemaError != nil {
		return ensureSchemaError
	}
	return nil
}

func SaveReviewToDb(dbPool *pgxpool.Pool, eventId, fileId, userId, channelId, model string) error {

	if dbPool == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	query := `
		INSERT INTO reviews (event_id, file_id, user_id, channel_id, model)
		VALUES ($1, $2, $3, $4, $5)`

	_, saveReviewError := dbPool.Exec(context.Background(), query, eventId, fileId, userId, channelId, model)
	if saveReviewError != nil {
		return saveReviewError
	}

	return nil
}

func CountReviewsForUser(dbPool *pgxpool.Pool, userId string) (int, error) {

	if dbPool == nil {
		return 0, fmt.Errorf("database pool is not initialized")
	}

	query := `
		SELECT COUNT(*) FROM reviews WHERE user_id = $1`

	var count int
	dbQueryError := dbPool.QueryRow(context.Background(), query, userId).Scan(&count)
	if dbQueryError != nil {
		return 0, dbQueryError
	}

	return count, nil
}
