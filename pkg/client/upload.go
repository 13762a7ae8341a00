package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

type uploadFileResult struct {
	FileURL    string `json:"fileUrl"`
	FileName   string `json:"fileName"`
	FileSize   string `json:"fileSize"`
	FileType   string `json:"fileType"`
	UploadedAt string `json:"uploadedAt"`
}

type uploadAudioResult struct {
	AudioURL string `json:"audioUrl"`
}

func (s *Session) uploadFile(fileName, mimeType string, r io.Reader) (*uploadFileResult, error) {
	body, err := s.postMultipart("/chat/upload-file", "file", fileName, mimeType, r)
	if err != nil {
		return nil, err
	}

	var result uploadFileResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &result, nil
}

func (s *Session) uploadAudio(r io.Reader) (string, error) {
	body, err := s.postMultipart("/chat/upload-audio", "audio", "blob", "audio/webm", r)
	if err != nil {
		return "", err
	}

	var result uploadAudioResult
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	return result.AudioURL, nil
}

// postMultipart отправляет один файл на gateway и возвращает тело
// успешного ответа. Не-2xx ответ превращается в ошибку с причиной
// от сервера, сообщение в таком случае не публикуется.
func (s *Session) postMultipart(path, field, fileName, mimeType string, r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, fileName))
	if mimeType != "" {
		header.Set("Content-Type", mimeType)
	}

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read upload payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, s.serverURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		reason := strings.TrimSpace(string(body))
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			reason = apiErr.Error
		}
		return nil, fmt.Errorf("upload failed (%d): %s", resp.StatusCode, reason)
	}

	return body, nil
}
