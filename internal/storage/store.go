package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category определяет раздел хранилища и набор правил валидации
type Category string

const (
	CategoryAudio    Category = "audio"
	CategoryDocument Category = "document"
)

const (
	// Потолок размера документа
	MaxDocumentSize = 50 * 1024 * 1024 // 50 MiB

	// Потолок размера аудио по умолчанию
	DefaultMaxAudioSize = 25 * 1024 * 1024 // 25 MiB

	audioDir = "audio"
	filesDir = "files"
)

// Разрешённые типы документов: Excel, Word, PDF.
// MIME от клиентов ненадёжен, поэтому достаточно совпадения
// либо по MIME, либо по расширению.
var allowedDocumentMimeTypes = map[string]bool{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       true, // .xlsx
	"application/vnd.ms-excel":                                                true, // .xls
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true, // .docx
	"application/msword": true, // .doc
	"application/pdf":    true, // .pdf
}

var allowedDocumentExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".docx": true,
	".doc":  true,
	".pdf":  true,
}

// StoredFile описывает успешно сохранённое вложение
type StoredFile struct {
	StoredName   string
	OriginalName string
	MimeType     string
	SizeBytes    int64
	Category     Category

	// Путь для статической раздачи: /audio/... или /files/...
	Locator string
}

// Store сохраняет вложения на диск, раскладывая их по разделам категорий
type Store struct {
	root         string
	maxAudioSize int64
}

func NewStore(root string, maxAudioSize int64) (*Store, error) {
	if maxAudioSize <= 0 {
		maxAudioSize = DefaultMaxAudioSize
	}

	for _, dir := range []string{audioDir, filesDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, &StorageError{Op: "mkdir", Err: err}
		}
	}

	return &Store{root: root, maxAudioSize: maxAudioSize}, nil
}

// Root возвращает корень хранилища
func (s *Store) Root() string {
	return s.root
}

// AudioDir возвращает каталог аудиовложений
func (s *Store) AudioDir() string {
	return filepath.Join(s.root, audioDir)
}

// FilesDir возвращает каталог документов
func (s *Store) FilesDir() string {
	return filepath.Join(s.root, filesDir)
}

// Save валидирует и записывает вложение. Валидация выполняется до
// записи первого байта; при любой ошибке на диске не остаётся
// частично записанных файлов.
func (s *Store) Save(category Category, originalName, mimeType string, declaredSize int64, r io.Reader) (*StoredFile, error) {
	var dir, storedName string
	var limit int64

	switch category {
	case CategoryDocument:
		if err := validateDocument(originalName, mimeType, declaredSize); err != nil {
			return nil, err
		}
		dir = filesDir
		limit = MaxDocumentSize
		storedName = fmt.Sprintf("file-%d-%s-%s", time.Now().UnixMilli(), salt(), SanitizeFilename(originalName))

	case CategoryAudio:
		if declaredSize > s.maxAudioSize {
			return nil, &ValidationError{Reason: fmt.Sprintf("audio exceeds %d bytes limit", s.maxAudioSize)}
		}
		dir = audioDir
		limit = s.maxAudioSize
		ext := strings.ToLower(filepath.Ext(SanitizeFilename(originalName)))
		storedName = fmt.Sprintf("audio-%d-%s%s", time.Now().UnixMilli(), salt(), ext)

	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown category %q", category)}
	}

	size, err := s.write(filepath.Join(s.root, dir), storedName, r, limit)
	if err != nil {
		return nil, err
	}

	return &StoredFile{
		StoredName:   storedName,
		OriginalName: originalName,
		MimeType:     mimeType,
		SizeBytes:    size,
		Category:     category,
		Locator:      "/" + dir + "/" + storedName,
	}, nil
}

// write пишет во временный файл и переименовывает при успехе,
// чтобы раздел не видел частично записанных вложений
func (s *Store) write(dir, storedName string, r io.Reader, limit int64) (int64, error) {
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return 0, &StorageError{Op: "create", Err: err}
	}

	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	// limit+1, чтобы отличить ровно limit байт от превышения
	size, err := io.Copy(tmp, io.LimitReader(r, limit+1))
	if err != nil {
		cleanup()
		return 0, &StorageError{Op: "write", Err: err}
	}
	if size > limit {
		cleanup()
		return 0, &ValidationError{Reason: fmt.Sprintf("payload exceeds %d bytes limit", limit)}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, &StorageError{Op: "close", Err: err}
	}

	if err := os.Rename(tmp.Name(), filepath.Join(dir, storedName)); err != nil {
		os.Remove(tmp.Name())
		return 0, &StorageError{Op: "rename", Err: err}
	}

	return size, nil
}

func validateDocument(originalName, mimeType string, declaredSize int64) error {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedDocumentMimeTypes[mimeType] && !allowedDocumentExtensions[ext] {
		return &ValidationError{Reason: "Only Excel, Word, and PDF files are allowed"}
	}

	if declaredSize > MaxDocumentSize {
		return &ValidationError{Reason: fmt.Sprintf("file exceeds %d bytes limit", MaxDocumentSize)}
	}

	return nil
}

// SanitizeFilename заменяет всё вне [a-zA-Z0-9.-] на дефис.
// Имя от клиента никогда не попадает в файловую систему сырым.
func SanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return '-'
		}
	}, name)
}

// salt возвращает 8 hex-символов случайного UUID. Вместе с
// миллисекундной меткой времени в имени этого достаточно, чтобы
// две одновременные загрузки получили разные имена.
func salt() string {
	return uuid.New().String()[:8]
}
