package database

import (
	"github.com/thereayou/chatline/internal/models"
)

func (d *Database) SaveAttachment(attachment *models.Attachment) error {
	return d.db.Create(attachment).Error
}

func (d *Database) GetAttachment(storedName string) (*models.Attachment, error) {
	var attachment models.Attachment
	if err := d.db.First(&attachment, "stored_name = ?", storedName).Error; err != nil {
		return nil, err
	}
	return &attachment, nil
}

// ListAttachments возвращает последние записи о загрузках
func (d *Database) ListAttachments(limit int) ([]models.Attachment, error) {
	var attachments []models.Attachment

	err := d.db.
		Order("created_at DESC").
		Limit(limit).
		Find(&attachments).Error

	if err != nil {
		return nil, err
	}

	return attachments, nil
}
