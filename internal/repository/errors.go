package repository

import (
	"errors"
	"fmt"
	"strings"

	"SportsNations/internal/model"

	"gorm.io/gorm"
)

var (
	fkMessages = []string{
		"FOREIGN KEY constraint failed",   // sqlite
		"violates foreign key constraint", // postgres
		"SQLSTATE 23503",
	}
	uniqueMessages = []string{
		"UNIQUE constraint failed",
		"PRIMARY KEY constraint failed",
		"duplicate key value violates unique constraint",
		"SQLSTATE 23505",
	}
)

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// classifyError 把驱动错误归类为外键/唯一约束错误
func classifyError(table string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrForeignKeyViolation) || errors.Is(err, model.ErrUniqueConstraintViolation) ||
		errors.Is(err, model.ErrSlugCollision) || errors.Is(err, model.ErrInvalidInput) {
		return err
	}
	msg := err.Error()
	switch {
	case errors.Is(err, gorm.ErrForeignKeyViolated) || containsAny(msg, fkMessages):
		return fmt.Errorf("%w: 写入%s: %w", model.ErrForeignKeyViolation, table, err)
	case errors.Is(err, gorm.ErrDuplicatedKey) || containsAny(msg, uniqueMessages):
		return fmt.Errorf("%w: 写入%s: %w", model.ErrUniqueConstraintViolation, table, err)
	}
	return fmt.Errorf("写入%s失败: %w", table, err)
}
