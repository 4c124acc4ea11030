// Package apperror defines the failure taxonomy for sheet-backed lookups.
package apperror

import "errors"

var (
	// ErrNotConfigured — требуемый URL листа не задан в конфиге.
	ErrNotConfigured = errors.New("sheet source is not configured")
	// ErrNetworkUnavailable — fetch упал или вернул не-2xx.
	ErrNetworkUnavailable = errors.New("sheet source is unreachable")
	// ErrSourceDenied — вместо CSV пришла HTML-страница (логин/ошибка доступа).
	ErrSourceDenied = errors.New("sheet source returned an error page")
	// ErrNotFound — лист прочитан целиком, совпадений нет.
	ErrNotFound = errors.New("no matching row")
)

// Сообщения для пользователя — как в исходном приложении (узбекский).
var userMessages = map[error]string{
	ErrNotConfigured:      "Tizim sozlanmagan.",
	ErrNetworkUnavailable: "Tarmoq xatosi",
	ErrSourceDenied:       "Baza bilan aloqa xatoligi (Access Denied).",
	ErrNotFound:           "Bunday ID topilmadi yoki telefon raqam mos emas.",
}

// UserMessage maps a taxonomy error to its user-facing text.
// Unknown errors get a generic message instead of leaking internals.
func UserMessage(err error) string {
	for sentinel, msg := range userMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return "Xatolik."
}
