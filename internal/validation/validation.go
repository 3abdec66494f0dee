package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxOptionLength      = 200
	MaxOptions           = 50
	MinPasswordLength    = 8
)

// ValidateRequired valida que un campo no esté vacío
func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(fieldName + " required")
	}
	return nil
}

// ValidateMinLength valida la longitud mínima de un string
func ValidateMinLength(value string, minLength int, fieldName string) error {
	if utf8.RuneCountInString(value) < minLength {
		return errors.New(fieldName + " must be at least " + strconv.Itoa(minLength) + " characters long")
	}
	return nil
}

// ValidateMaxLength valida la longitud máxima de un string
func ValidateMaxLength(value string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(value) > maxLength {
		return errors.New(fieldName + " must be at most " + strconv.Itoa(maxLength) + " characters long")
	}
	return nil
}

// ValidateUUID valida que un string sea un UUID válido
func ValidateUUID(value, fieldName string) (uuid.UUID, error) {
	if strings.TrimSpace(value) == "" {
		return uuid.Nil, errors.New(fieldName + " required")
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, errors.New(fieldName + " must be a valid UUID")
	}
	return id, nil
}

// ValidateEmail valida formato básico de email
func ValidateEmail(email string) error {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return errors.New("email must have a valid format")
	}
	return nil
}

// PollValidation contiene validaciones específicas para encuestas
type PollValidation struct{}

// ValidateTitle checks the trimmed poll title
func (v PollValidation) ValidateTitle(title string) error {
	if err := ValidateRequired(title, "title"); err != nil {
		return err
	}
	return ValidateMaxLength(title, MaxTitleLength, "title")
}

func (v PollValidation) ValidateDescription(description string) error {
	return ValidateMaxLength(description, MaxDescriptionLength, "description")
}

// NormalizeOptions trims every option and drops the empty ones. It fails when
// fewer than two options remain.
func (v PollValidation) NormalizeOptions(options []string) ([]string, error) {
	out := make([]string, 0, len(options))
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			if err := ValidateMaxLength(o, MaxOptionLength, "option"); err != nil {
				return nil, err
			}
			out = append(out, o)
		}
	}

	if len(out) < 2 {
		return nil, errors.New("at least two options required")
	}
	if len(out) > MaxOptions {
		return nil, errors.New("at most " + strconv.Itoa(MaxOptions) + " options allowed")
	}
	return out, nil
}

// UserValidation contiene validaciones específicas para usuarios
type UserValidation struct{}

// ValidateUserName valida el nombre de un usuario
func (v UserValidation) ValidateUserName(name string) error {
	if err := ValidateRequired(name, "name"); err != nil {
		return err
	}
	if err := ValidateMinLength(strings.TrimSpace(name), 2, "name"); err != nil {
		return err
	}
	return ValidateMaxLength(name, 50, "name")
}

// ValidateUserEmail valida el email de un usuario
func (v UserValidation) ValidateUserEmail(email string) error {
	if err := ValidateRequired(email, "email"); err != nil {
		return err
	}
	return ValidateEmail(strings.TrimSpace(email))
}

func (v UserValidation) ValidatePassword(password string) error {
	if err := ValidateMinLength(password, MinPasswordLength, "password"); err != nil {
		return err
	}
	// bcrypt ignores anything past 72 bytes
	if len(password) > 72 {
		return errors.New("password must be at most 72 bytes long")
	}
	return nil
}
