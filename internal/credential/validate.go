package credential

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/hitoshi/inkpost/internal/model"
)

// bcryptは72バイトを超える入力を受け付けない。
const maxPasswordBytes = 72

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// Django互換のエラーメッセージ
const (
	msgRequired        = "This field is required."
	msgInvalidEmail    = "Enter a valid email address."
	msgInvalidUsername = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	msgPasswordShort   = "This password is too short. It must contain at least 8 characters."
	msgPasswordLong    = "This password is too long."
	msgUsernameTaken   = "A user with that username already exists."
	msgEmailTaken      = "user with this email already exists."
)

// RegisterInput は新規登録時の入力値。
type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Validate は入力値を検証する。すべてのフィールドエラーを集約して返す。
func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username,
			validation.Required.Error(msgRequired),
			validation.Length(1, 20).Error("Ensure this field has no more than 20 characters."),
			validation.Match(usernamePattern).Error(msgInvalidUsername),
		),
		validation.Field(&in.Email,
			validation.Required.Error(msgRequired),
			validation.Length(1, 254).Error("Ensure this field has no more than 254 characters."),
			is.Email.Error(msgInvalidEmail),
		),
		validation.Field(&in.Password, passwordRules(true)...),
		validation.Field(&in.FirstName, validation.Length(0, 150).Error("Ensure this field has no more than 150 characters.")),
		validation.Field(&in.LastName, validation.Length(0, 150).Error("Ensure this field has no more than 150 characters.")),
	)
}

// passwordRules はパスワードの検証ルールを返す。
// requiredがfalseの場合、空文字は検証をスキップする（部分更新用）。
func passwordRules(required bool) []validation.Rule {
	rules := []validation.Rule{}
	if required {
		rules = append(rules, validation.Required.Error(msgRequired))
	}
	return append(rules,
		validation.RuneLength(8, 0).Error(msgPasswordShort),
		validation.By(func(value interface{}) error {
			s, _ := value.(string)
			if len(s) > maxPasswordBytes {
				return errors.New(msgPasswordLong)
			}
			return nil
		}),
	)
}

// ValidatePassword はパスワード単体を検証し、エラーメッセージを返す。問題なければ空文字。
func ValidatePassword(password string) string {
	if err := validation.Validate(password, passwordRules(true)...); err != nil {
		return err.Error()
	}
	return ""
}

// NormalizeEmail はメールアドレスのドメイン部を小文字化する。
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at] + "@" + strings.ToLower(email[at+1:])
}

// ToAPIError はozzo-validationのエラーをフィールド単位のAPIErrorに変換する。
// 変換できないエラーはnilを返す。
func ToAPIError(err error) *model.APIError {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return nil
	}
	fields := make(map[string]string, len(errs))
	for field, fieldErr := range errs {
		if fieldErr != nil {
			fields[field] = fieldErr.Error()
		}
	}
	return model.NewValidationError(fields)
}
