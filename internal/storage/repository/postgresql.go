// Package repository реализует хранилище данных на основе PostgreSQL
// для профилей подписок, счётчиков использования функций, бесед,
// сообщений и системной конфигурации. Атомарные операции
// check-and-increment выполняются хранимыми функциями на стороне базы.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Ошибки уровня хранилища.
var (
	// ErrProfileNotFound возвращается, если профиль пользователя отсутствует.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrConversationNotFound возвращается, если беседа не найдена.
	ErrConversationNotFound = errors.New("conversation not found")
	// ErrConfigNotFound возвращается, если ключ системной конфигурации отсутствует.
	ErrConfigNotFound = errors.New("system config key not found")
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB *sql.DB
}

// New создаёт подключение к PostgreSQL.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		DB: db,
	}, nil
}

// CheckDatabaseReady проверяет готовность базы данных.
func CheckDatabaseReady(storage *Storage) error {
	var exists bool
	err := storage.DB.QueryRow(`SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'feature_usage'
    )`).Scan(&exists)
	if err != nil || !exists {
		return fmt.Errorf("required table feature_usage missing or query error: %w", err)
	}
	return nil
}
