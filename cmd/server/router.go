package main

import (
	"github.com/gin-gonic/gin"
	"github.com/thereayou/chatline/internal/handlers"
	"github.com/thereayou/chatline/internal/middleware"
	"github.com/thereayou/chatline/internal/storage"
)

func APIEndpoints(r *gin.Engine, wsH *handlers.WebSocketHandler, uploadH *handlers.UploadHandler, presenceH *handlers.PresenceHandler, store *storage.Store) {
	// Realtime канал
	r.GET("/ws", middleware.IdentityMiddleware(), wsH.HandleWebSocket)

	// Chat endpoints
	chat := r.Group("/chat")
	{
		chat.POST("/upload-audio", uploadH.UploadAudio)
		chat.POST("/upload-file", uploadH.UploadFile)
		chat.GET("/uploads", uploadH.ListUploads)
		chat.GET("/uploads/:storedName", uploadH.GetUpload)
		chat.GET("/rooms/:roomID/presence", presenceH.GetRoomPresence)
	}

	// Статическая раздача вложений, маршруты совпадают с разделами
	// хранилища
	r.Static("/audio", store.AudioDir())
	r.Static("/files", store.FilesDir())
}
