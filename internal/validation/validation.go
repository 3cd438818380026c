// Package validation содержит проверки входных значений.
package validation

import (
	"regexp"
	"strings"
)

var emailRegexp = regexp.MustCompile(`^[\w.+-]+@[\w-]+(\.[\w-]+)+$`)

// IsValidEmail проверяет, что строка является адресом электронной почты.
func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" || len(email) > 254 {
		return false
	}
	return emailRegexp.MatchString(email)
}

// IsValidID проверяет формат непрозрачного идентификатора (заказа или
// токена): ровно 32 шестнадцатеричных символа в нижнем регистре.
func IsValidID(id string) bool {
	if len(id) != 32 {
		return false
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// IsValidQuantity проверяет, что количество является положительным числом.
func IsValidQuantity(quantity int) bool {
	return quantity > 0
}

// IsNonEmptyString проверяет, что строка не пуста после обрезки пробелов.
func IsNonEmptyString(s string) bool {
	return strings.TrimSpace(s) != ""
}
