package dto

// UploadAudioResponse — ответ на загрузку голосового сообщения
type UploadAudioResponse struct {
	AudioURL string `json:"audioUrl"`
}

// UploadFileResponse — ответ на загрузку документа
type UploadFileResponse struct {
	FileURL    string `json:"fileUrl"`
	FileName   string `json:"fileName"`
	FileSize   string `json:"fileSize"`
	FileType   string `json:"fileType"`
	UploadedAt string `json:"uploadedAt"`
}

// PresenceResponse — текущий состав комнаты
type PresenceResponse struct {
	ChatID string   `json:"chatId"`
	Users  []string `json:"users"`
}
