package handlers

import (
	"errors"
	"fmt"
	"log"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/chatline/internal/database"
	"github.com/thereayou/chatline/internal/handlers/dto"
	"github.com/thereayou/chatline/internal/models"
	"github.com/thereayou/chatline/internal/storage"
	"gorm.io/gorm"
)

// UploadHandler принимает вложения, отдаёт их хранилищу и возвращает
// ссылки для статической раздачи
type UploadHandler struct {
	store   *storage.Store
	db      *database.Database
	baseURL string
}

func NewUploadHandler(store *storage.Store, db *database.Database, baseURL string) *UploadHandler {
	return &UploadHandler{
		store:   store,
		db:      db,
		baseURL: baseURL,
	}
}

// UploadAudio обрабатывает POST /chat/upload-audio
func (h *UploadHandler) UploadAudio(c *gin.Context) {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio uploaded"})
		return
	}

	stored, ok := h.save(c, storage.CategoryAudio, fileHeader)
	if !ok {
		return
	}

	log.Printf("Audio uploaded: %s", stored.StoredName)

	c.JSON(http.StatusOK, dto.UploadAudioResponse{
		AudioURL: h.baseURL + stored.Locator,
	})
}

// UploadFile обрабатывает POST /chat/upload-file
func (h *UploadHandler) UploadFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	stored, ok := h.save(c, storage.CategoryDocument, fileHeader)
	if !ok {
		return
	}

	log.Printf("File uploaded: %s -> %s", stored.OriginalName, stored.StoredName)

	c.JSON(http.StatusOK, dto.UploadFileResponse{
		FileURL:    h.baseURL + stored.Locator,
		FileName:   stored.OriginalName,
		FileSize:   FormatFileSize(stored.SizeBytes),
		FileType:   stored.MimeType,
		UploadedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// GetUpload обрабатывает GET /chat/uploads/:storedName
func (h *UploadHandler) GetUpload(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
		return
	}

	record, err := h.db.GetAttachment(c.Param("storedName"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load upload"})
		return
	}

	c.JSON(http.StatusOK, record)
}

// ListUploads обрабатывает GET /chat/uploads
func (h *UploadHandler) ListUploads(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		limit = 50
	}

	uploads := make([]models.Attachment, 0)
	if h.db != nil {
		uploads, err = h.db.ListAttachments(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list uploads"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"uploads": uploads})
}

// save валидирует и сохраняет вложение, отображая ошибки хранилища
// в HTTP статусы. Ответ уже записан, если ok == false.
func (h *UploadHandler) save(c *gin.Context, category storage.Category, fileHeader *multipart.FileHeader) (*storage.StoredFile, bool) {
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read upload"})
		return nil, false
	}
	defer file.Close()

	stored, err := h.store.Save(
		category,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		fileHeader.Size,
		file,
	)
	if err != nil {
		var validationErr *storage.ValidationError
		if errors.As(err, &validationErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason})
		} else {
			log.Printf("Failed to store upload %q: %v", fileHeader.Filename, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store upload"})
		}
		return nil, false
	}

	h.saveRecord(stored)

	return stored, true
}

// saveRecord пишет метаданные вложения в базу. Файл уже сохранён,
// поэтому сбой записи метаданных загрузку не отменяет.
func (h *UploadHandler) saveRecord(stored *storage.StoredFile) {
	if h.db == nil {
		return
	}

	record := &models.Attachment{
		StoredName:   stored.StoredName,
		OriginalName: stored.OriginalName,
		MimeType:     stored.MimeType,
		SizeBytes:    stored.SizeBytes,
		Category:     string(stored.Category),
		URL:          h.baseURL + stored.Locator,
		CreatedAt:    time.Now(),
	}

	if err := h.db.SaveAttachment(record); err != nil {
		log.Printf("Failed to save attachment record %s: %v", stored.StoredName, err)
	}
}

// FormatFileSize форматирует размер в двоичных единицах с двумя
// знаками после запятой, хвостовые нули отбрасываются
func FormatFileSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}

	sizes := []string{"Bytes", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}

	value := math.Round(float64(bytes)/math.Pow(1024, float64(i))*100) / 100

	return fmt.Sprintf("%s %s", strconv.FormatFloat(value, 'f', -1, 64), sizes[i])
}
