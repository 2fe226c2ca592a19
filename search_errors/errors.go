package search_errors

import "errors"

// Error categories for migration operations
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeAlreadyRolledBack = "ALREADY_ROLLED_BACK"
	CodeNoBackupAvailable = "NO_BACKUP_AVAILABLE"
	CodeBackupFailed      = "BACKUP_FAILED"
	CodeClusterIO         = "CLUSTER_IO_ERROR"
	CodeMigrationLocked   = "MIGRATION_LOCKED"
)

type MigrationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"` // Optional field for additional error details
}

func (e *MigrationError) Error() string {
	return e.Message
}

func NewMigrationError(code string, message string, details ...any) *MigrationError {
	if len(details) > 0 {
		return &MigrationError{
			Code:    code,
			Message: message,
			Details: details[0], // Take the first detail if provided
		}
	}

	return &MigrationError{
		Code:    code,
		Message: message,
	}
}

func ValidationError(message string, details ...any) *MigrationError {
	return NewMigrationError(CodeValidation, message, details...)
}

func NotFoundError(message string, details ...any) *MigrationError {
	return NewMigrationError(CodeNotFound, message, details...)
}

func AlreadyRolledBackError(message string, details ...any) *MigrationError {
	return NewMigrationError(CodeAlreadyRolledBack, message, details...)
}

func NoBackupAvailableError(message string, details ...any) *MigrationError {
	return NewMigrationError(CodeNoBackupAvailable, message, details...)
}

func BackupFailedError(message string, details ...any) *MigrationError {
	return NewMigrationError(CodeBackupFailed, message, details...)
}

func ClusterIOError(message string, details ...any) *MigrationError {
	return NewMigrationError(CodeClusterIO, message, details...)
}

func MigrationLockedError(message string, details ...any) *MigrationError {
	return NewMigrationError(CodeMigrationLocked, message, details...)
}

// HasCode reports whether err is a MigrationError with the given code.
func HasCode(err error, code string) bool {
	var me *MigrationError
	if errors.As(err, &me) {
		return me.Code == code
	}
	return false
}
