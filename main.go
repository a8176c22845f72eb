package main

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/teamboard/teamboard/api"
	"github.com/teamboard/teamboard/cache/redis"
	"github.com/teamboard/teamboard/mq/sqsmq"
	"github.com/teamboard/teamboard/store/dynamo"
)

const (
	DynamoDBTable      = "Teamboard"
	SQSBoardClearQueue = "BoardClearQueue"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	ctx := context.Background()
	devMode := os.Getenv("DEV_MODE") == "true"

	teamboardStore, err := dynamo.NewDynamoTeamboardStore(ctx, devMode, os.Getenv("DYNAMODB_ENDPOINT"), DynamoDBTable)
	if err != nil {
		log.Fatalf("Failed to create dynamodb store: %v", err)
	}

	boardClearQueue, err := sqsmq.NewSQSMessageQueue(ctx, devMode, os.Getenv("SQS_ENDPOINT"), SQSBoardClearQueue)
	if err != nil {
		log.Fatalf("Failed to create SQS MQ: %v", err)
	}

	teamboardCache, err := redis.NewRedisTeamboardCache(ctx, devMode, os.Getenv("REDIS_ENDPOINT"))
	if err != nil {
		log.Fatalf("Failed to create redis cache: %v", err)
	}

	jwtSecret, err := base64.StdEncoding.DecodeString(os.Getenv("JWT_SECRET"))
	if err != nil {
		log.Fatalf("Failed to decode base64 jwtSecret: %v", err)
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	teamboardApi, err := api.NewTeamboardAPI(teamboardStore, boardClearQueue, teamboardCache, jwtSecret, shutdownCtx)
	if err != nil {
		log.Fatalf("Failed to create teamboard api: %v", err)
	}

	mux := http.NewServeMux()
	teamboardApi.RegisterRoutes(mux, os.Getenv("FRONTEND_ORIGIN"))

	hostPort := "8080"
	if p := os.Getenv("HOST_PORT"); p != "" {
		hostPort = p
	}
	log.Printf("Starting server on host port: %s\n", hostPort)
	log.Fatal(http.ListenAndServe(":"+hostPort, mux))
}
