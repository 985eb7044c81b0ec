package telegram

import (
	"fmt"
	"html"
	"sort"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// entitiesToHTML rebuilds the HTML rendering of a formatted message from its
// plain text and entity list, so rich bodies keep their formatting on the
// CMS. Entity offsets are in UTF-16 code units. Nested entities are flattened
// to the outermost one.
func entitiesToHTML(text string, entities []tgbotapi.MessageEntity) string {
	units := utf16.Encode([]rune(text))

	sorted := make([]tgbotapi.MessageEntity, len(entities))
	copy(sorted, entities)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })

	var out string
	cursor := 0
	for _, ent := range sorted {
		if ent.Offset < cursor || ent.Offset+ent.Length > len(units) {
			continue
		}
		out += html.EscapeString(decode(units[cursor:ent.Offset]))
		segment := html.EscapeString(decode(units[ent.Offset : ent.Offset+ent.Length]))

		switch ent.Type {
		case "bold":
			out += "<b>" + segment + "</b>"
		case "italic":
			out += "<i>" + segment + "</i>"
		case "underline":
			out += "<u>" + segment + "</u>"
		case "strikethrough":
			out += "<s>" + segment + "</s>"
		case "code":
			out += "<code>" + segment + "</code>"
		case "pre":
			out += "<pre>" + segment + "</pre>"
		case "text_link":
			out += fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(ent.URL), segment)
		default:
			out += segment
		}
		cursor = ent.Offset + ent.Length
	}
	out += html.EscapeString(decode(units[cursor:]))
	return out
}

func decode(units []uint16) string {
	return string(utf16.Decode(units))
}
