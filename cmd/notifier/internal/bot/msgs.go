package bot

import (
	"log"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/pechorka/lostfound/internal/api"
)

func (b *Bot) msg(id string) string {
	text, err := b.i18n.Get(b.lang, id)
	if err != nil {
		log.Println(errors.Wrapf(err, "getting message %q", id))
		return ""
	}
	return text
}

func (b *Bot) msgWithArgs(id string, args map[string]string) string {
	text, err := b.i18n.GetWithArgs(b.lang, id, args)
	if err != nil {
		log.Println(errors.Wrapf(err, "getting message %q", id))
		return ""
	}
	return text
}

func (b *Bot) renderItems(items []api.Item) string {
	if len(items) == 0 {
		return b.msg("no_items")
	}
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString("#")
		sb.WriteString(itoa(item.ID))
		sb.WriteString(" [")
		sb.WriteString(item.StatusDisplay)
		sb.WriteString("] ")
		sb.WriteString(item.Title)
		sb.WriteString(" - ")
		sb.WriteString(item.BlockDisplay)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (b *Bot) renderContacts(contacts []api.Contact) string {
	if len(contacts) == 0 {
		return b.msg("no_contacts")
	}
	var sb strings.Builder
	for _, c := range contacts {
		if !c.Seen {
			sb.WriteString("* ")
		}
		sb.WriteString(c.UserName)
		sb.WriteString(" (item ")
		sb.WriteString(itoa(c.ItemID))
		sb.WriteString("): ")
		sb.WriteString(c.Message)
		sb.WriteString("\n")
	}
	return sb.String()
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
