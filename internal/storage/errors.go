package storage

import "fmt"

// ValidationError — отклонённая загрузка: запрещённый тип или
// превышенный размер. Отображается пользователю как 4xx.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// StorageError — сбой записи на диск. Для запроса фатален, повторных
// попыток нет.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
