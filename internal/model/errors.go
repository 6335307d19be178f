package model

import "errors"

// 错误分类，调用方用 errors.Is 判断
var (
	ErrInvalidInput              = errors.New("invalid input")
	ErrUnknownConnector          = errors.New("unknown connector")
	ErrMissingCredential         = errors.New("missing credential")
	ErrSourceUnreachable         = errors.New("source unreachable")
	ErrParse                     = errors.New("parse error")
	ErrForeignKeyViolation       = errors.New("foreign key violation")
	ErrUniqueConstraintViolation = errors.New("unique constraint violation")
	ErrValidationFailure         = errors.New("validation failure")
	ErrSlugCollision             = errors.New("slug collision")
	ErrAmbiguousPublication      = errors.New("ambiguous publication")
)
