package attachment

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// DefaultInlineBlocklist — известные хосты и пути служебной графики
// (подписи, логотипы рассылок), которую не имеет смысла сохранять
var DefaultInlineBlocklist = []string{
	"italac.com.br/assinatura-italac",
	"cdn.omie.com.br/publish/email",
	"portaldecomprasscala.com/configuracao/scala/logo_interno.jpg",
	"static1.squarespace.com",
}

var (
	unsafeCharsRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

	signatureRe = regexp.MustCompile(`(?i)(logo|assinatura|signature|rodape|footer|image0+\d|facebook|instagram|linkedin|twitter|whatsapp|tracking|pixel)`)

	inlineImageRe = regexp.MustCompile(`https?://[^\s'"]+\.(?:png|jpe?g|gif|webp|bmp)(?:\?[^\s'"]*)?`)
)

// allowedDocTypes — типы документов, которые сохраняются помимо
// изображений, аудио и видео
var allowedDocTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         {},
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": {},
	"application/vnd.ms-excel":        {},
	"application/vnd.ms-powerpoint":   {},
	"application/zip":                 {},
	"application/x-zip-compressed":    {},
	"application/vnd.rar":             {},
	"application/x-7z-compressed":     {},
	"text/plain":                      {},
}

// SafeFilename заменяет недопустимые для файловой системы символы
// и ограничивает длину имени 180 символами
func SafeFilename(name string) string {
	out := unsafeCharsRe.ReplaceAllString(strings.TrimSpace(name), "_")
	if out == "" {
		out = "file"
	}
	if len(out) > 180 {
		out = out[:180]
	}
	return out
}

// IsSignatureLike распознаёт графику подписей и трекинговые пиксели
// по имени файла или по ссылке
func IsSignatureLike(name, rawURL string) bool {
	return signatureRe.MatchString(name) || signatureRe.MatchString(rawURL)
}

// ContentTypeAllowed пропускает изображения, аудио, видео и известные
// типы документов. Пустой content-type не отбраковывает вложение.
func ContentTypeAllowed(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "" {
		return true
	}
	for _, prefix := range []string{"image/", "audio/", "video/"} {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	_, ok := allowedDocTypes[ct]
	return ok
}

// ExtractInlineImageURLs собирает ссылки на картинки из HTML-тела,
// сохраняя порядок первого вхождения
func ExtractInlineImageURLs(html string) []string {
	matches := inlineImageRe.FindAllString(html, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// BlockedByPattern проверяет ссылку по блок-листу подстрок
func BlockedByPattern(rawURL string, blocklist []string) (string, bool) {
	for _, pattern := range blocklist {
		if strings.Contains(rawURL, pattern) {
			return pattern, true
		}
	}
	return "", false
}

// FilenameFromURL вычисляет имя файла из пути ссылки без query-части
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "inline"
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "inline"
	}
	return SafeFilename(name)
}

// Hostname возвращает хост ссылки для контекста в журнале аномалий
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
