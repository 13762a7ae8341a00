package models

import (
	"github.com/google/uuid"
	"time"
)

// Attachment — запись о сохранённом на диск вложении
type Attachment struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	StoredName   string    `gorm:"uniqueIndex;not null"`
	OriginalName string    `gorm:"not null"`
	MimeType     string
	SizeBytes    int64  `gorm:"not null"`
	Category     string `gorm:"not null;check:category IN ('audio','document')"`
	URL          string `gorm:"not null"`
	CreatedAt    time.Time
}
