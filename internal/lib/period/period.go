// Package period вычисляет расчётные периоды учёта использования функций.
// Период — календарный месяц в формате "YYYY-MM" (UTC), совпадающий
// с периодом биллинга внешней платформы.
package period

import (
	"fmt"
	"regexp"
	"time"
)

var periodRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Current возвращает текущий период в формате "YYYY-MM" по UTC.
func Current() string {
	return For(time.Now().UTC())
}

// For возвращает период, в который попадает момент t (по UTC).
func For(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// Validate проверяет, что строка является корректным периодом "YYYY-MM".
func Validate(p string) error {
	if !periodRe.MatchString(p) {
		return fmt.Errorf("invalid period %q, want YYYY-MM", p)
	}
	return nil
}
