package main

import (
	"context"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/thereayou/chatline/internal/database"
	"github.com/thereayou/chatline/internal/handlers"
	"github.com/thereayou/chatline/internal/presence"
	"github.com/thereayou/chatline/internal/storage"
	ws "github.com/thereayou/chatline/internal/websocket"
	"log"
	"os"
	"strconv"
)

type Server struct {
	Router *gin.Engine
	DB     *database.Database
	Redis  *redis.Client
	Hub    *ws.Hub
	Store  *storage.Store
}

func NewServer() *Server {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println(".env not found, using environment variables")
		}
	}

	dbConn := &database.Database{}
	if err := dbConn.Connect(); err != nil {
		log.Fatalf("Postgres connect failed: %v", err)
	}

	redisOpts, err := redis.ParseURL(os.Getenv("REDIS_URL"))
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Redis connect failed: %v", err)
	}

	uploadDir := os.Getenv("UPLOAD_DIR")
	if uploadDir == "" {
		uploadDir = "./uploads"
	}

	var maxAudioSize int64
	if v := os.Getenv("AUDIO_MAX_BYTES"); v != "" {
		maxAudioSize, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Fatalf("invalid AUDIO_MAX_BYTES: %v", err)
		}
	}

	store, err := storage.NewStore(uploadDir, maxAudioSize)
	if err != nil {
		log.Fatalf("Upload store init failed: %v", err)
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	pres := presence.New(rdb)

	hub := ws.NewHub(pres)
	go hub.Run()

	messageH := handlers.NewMessageHandler(hub)
	wsH := handlers.NewWebSocketHandler(hub, messageH)
	uploadH := handlers.NewUploadHandler(store, dbConn, baseURL)
	presenceH := handlers.NewPresenceHandler(pres)

	router := gin.Default()
	APIEndpoints(router, wsH, uploadH, presenceH, store)

	return &Server{
		Router: router,
		DB:     dbConn,
		Redis:  rdb,
		Hub:    hub,
		Store:  store,
	}
}

func (s *Server) Run() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Server starting on port %s", port)
	if err := s.Router.Run(":" + port); err != nil {
		log.Fatalf("Server run error: %v", err)
	}
}
