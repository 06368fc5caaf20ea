package service

import (
	"fmt"
	"strings"

	"github.com/oliveiraadan/equibid/internal/domain"
	"github.com/oliveiraadan/equibid/internal/provider"
)

const savedSearchesURL = "https://equibid.com.br/minhas-buscas"

// Message is a rendered outbound message ready for a channel provider.
type Message struct {
	Text    string
	Actions []provider.Action
}

// Interactive reports whether the message carries buttons.
func (m Message) Interactive() bool {
	return len(m.Actions) > 0
}

// RenderMatchFound builds the initial notification: a lot matched one of the
// user's saved searches. Both callback buttons embed the correlation id so
// the platform can hand it back on click.
func RenderMatchFound(bc domain.BusinessContext, correlationID string) Message {
	text := fmt.Sprintf(
		"👋 Olá, *%s*!\n\nEncontramos um lote que pode te interessar:\n🐴 _%s_\n\nDeseja receber mais detalhes?",
		bc.UserName, bc.Lot.Name,
	)

	return Message{
		Text: text,
		Actions: []provider.Action{
			{Label: "Sim, por favor", Token: domain.ActionToken(domain.ActionShowDetails, correlationID)},
			{Label: "Não, obrigado", Token: domain.ActionToken(domain.ActionNoThanks, correlationID)},
		},
	}
}

// RenderLotDetails builds the follow-up for a show_details click.
func RenderLotDetails(bc domain.BusinessContext) Message {
	lot := bc.Lot

	var b strings.Builder
	fmt.Fprintf(&b, "🐴 *Detalhes do Lote: %s*\n\n", lot.Name)
	fmt.Fprintf(&b, "Leilão: *%s*\n", lot.Auction)
	fmt.Fprintf(&b, "Leiloeira: *%s*\n", lot.Auctioneer)
	if lot.BornAt != nil {
		fmt.Fprintf(&b, "Nascimento: *%s*\n", lot.BornAt.Format("2006-01-02"))
	}
	if lot.Breed != "" {
		fmt.Fprintf(&b, "Raça: *%s*\n", lot.Breed)
	}
	if lot.Sex != "" {
		fmt.Fprintf(&b, "Sexo: *%s*\n", lot.Sex)
	}
	if lot.Sire != "" {
		fmt.Fprintf(&b, "Pai: *%s*\n", lot.Sire)
	}
	if lot.Dam != "" {
		fmt.Fprintf(&b, "Mãe: *%s*", lot.Dam)
	}

	return Message{
		Text: strings.TrimRight(b.String(), "\n"),
		Actions: []provider.Action{
			{Label: "➡️ Abrir no site da Equibid", URL: lot.PageURL},
		},
	}
}

// RenderNoThanks builds the follow-up for a no_thanks click, offering to
// refine the saved search. The close_convo button re-embeds the same
// correlation id so one more interaction round can resolve against the job.
func RenderNoThanks(correlationID string) Message {
	return Message{
		Text: "Entendido. Você gostaria de ajustar os critérios desta busca para receber notificações mais precisas no futuro?",
		Actions: []provider.Action{
			{Label: "🔧 Sim, revisar busca", URL: savedSearchesURL},
			{Label: "👍 Deixar para depois", Token: domain.ActionToken(domain.ActionCloseConvo, correlationID)},
		},
	}
}

// RenderCloseConvo builds the conversation-closing message.
func RenderCloseConvo() Message {
	return Message{Text: "Tudo bem! Continuaremos de olho para você. 😉"}
}
