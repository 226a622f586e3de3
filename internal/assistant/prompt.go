package assistant

import (
	"fmt"
	"strings"

	"github.com/hyperjump/biznesinfo/internal/generate"
	"github.com/hyperjump/biznesinfo/internal/models"
	"github.com/hyperjump/biznesinfo/pkg/utils"
)

const systemIntro = `Ты помощник бизнес-справочника Biznesinfo. Помогай находить поставщиков товаров и услуг в Беларуси.
Рекомендуй только компании из списка кандидатов ниже и указывай ссылку на карточку. Если подходящих нет, так и скажи и предложи уточнить запрос.`

const maxDescriptionRunes = 160

// buildSystemPrompt lists the candidate companies, one "- " line each.
func buildSystemPrompt(candidates []*models.Company, city string) string {
	var b strings.Builder
	b.WriteString(systemIntro)
	if city != "" {
		fmt.Fprintf(&b, "\nГород пользователя: %s.", city)
	}
	if len(candidates) == 0 {
		b.WriteString("\nКандидатов не найдено.")
		return b.String()
	}
	b.WriteString("\nКандидаты:")
	for _, c := range candidates {
		b.WriteString("\n- ")
		b.WriteString(c.Name)
		if c.City != "" {
			fmt.Fprintf(&b, " (%s)", c.City)
		}
		fmt.Fprintf(&b, " /company/%s", c.Slug)
		if c.Description != "" {
			b.WriteString(": ")
			b.WriteString(utils.Truncate(utils.NormSpace(c.Description), maxDescriptionRunes))
		}
	}
	return b.String()
}

// buildMessages replays history as alternating user/assistant messages and
// appends the new user message. Turns without a reply contribute only the user side.
func buildMessages(history []*models.Turn, message string) []generate.Message {
	msgs := make([]generate.Message, 0, 2*len(history)+1)
	for _, t := range history {
		msgs = append(msgs, generate.Message{Role: generate.RoleUser, Content: t.UserMessage})
		if t.AssistantMessage != nil && *t.AssistantMessage != "" {
			msgs = append(msgs, generate.Message{Role: generate.RoleAssistant, Content: *t.AssistantMessage})
		}
	}
	return append(msgs, generate.Message{Role: generate.RoleUser, Content: message})
}

func slugs(companies []*models.Company) []string {
	out := make([]string, len(companies))
	for i, c := range companies {
		out[i] = c.Slug
	}
	return out
}
