// Package validation содержит проверки пользовательского ввода.
package validation

import "strings"

// NormalizeVehicleNumber приводит номер к каноническому виду:
// без пробелов по краям и дефисов, в верхнем регистре.
func NormalizeVehicleNumber(number string) string {
	n := strings.ToUpper(strings.TrimSpace(number))
	n = strings.ReplaceAll(n, " ", "")
	n = strings.ReplaceAll(n, "-", "")
	return n
}

// IsValidVehicleNumber проверяет регистрационный номер после нормализации:
// от 4 до 12 символов, только латинские буквы и цифры, хотя бы одна цифра.
func IsValidVehicleNumber(number string) bool {
	n := NormalizeVehicleNumber(number)
	if len(n) < 4 || len(n) > 12 {
		return false
	}

	hasDigit := false
	for _, r := range n {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return hasDigit
}
