package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/terra-payments-ledger/internal/domain/payment"
	"github.com/terra-payments-ledger/internal/domain/shared"
)

const senderSignature = "Terra Canada"

type templateText struct {
	greeting    string
	intro       string
	closing     string
	client      string
	code        string
	amount      string
	description string
}

var templates = map[shared.Language]templateText{
	shared.LanguageSpanish: {
		greeting:    "Estimado/a %s,",
		intro:       "Le notificamos los siguientes pagos realizados:",
		closing:     "Atentamente,",
		client:      "Cliente",
		code:        "Código de reserva",
		amount:      "Monto",
		description: "Descripción",
	},
	shared.LanguageFrench: {
		greeting:    "Cher/Chère %s,",
		intro:       "Nous vous informons des paiements suivants effectués:",
		closing:     "Cordialement,",
		client:      "Client",
		code:        "Code de réservation",
		amount:      "Montant",
		description: "Description",
	},
	shared.LanguageEnglish: {
		greeting:    "Dear %s,",
		intro:       "We inform you about the following payments made:",
		closing:     "Best regards,",
		client:      "Client",
		code:        "Reservation code",
		amount:      "Amount",
		description: "Description",
	},
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// composeSubject renders e.g. "Notificación de Pagos - Hotel Maya - 2 pago(s) - 15 de enero de 2025"
func composeSubject(providerName string, count int, at time.Time) string {
	date := fmt.Sprintf("%d de %s de %d", at.Day(), spanishMonths[at.Month()-1], at.Year())
	return fmt.Sprintf("Notificación de Pagos - %s - %d pago(s) - %s", providerName, count, date)
}

// composeBody renders the localized notification text. Totals are listed per
// currency in order of first appearance.
func composeBody(lang shared.Language, providerName string, views []*payment.View) string {
	text, ok := templates[lang]
	if !ok {
		text = templates[shared.LanguageSpanish]
	}

	var b strings.Builder
	fmt.Fprintf(&b, text.greeting, providerName)
	b.WriteString("\n\n")
	b.WriteString(text.intro)
	b.WriteString("\n\n")

	totals := map[shared.Currency]decimal.Decimal{}
	var currencies []shared.Currency
	for _, v := range views {
		client := "N/A"
		if len(v.ClientNames) > 0 {
			client = strings.Join(v.ClientNames, ", ")
		}
		fmt.Fprintf(&b, "• %s: %s\n", text.client, client)
		fmt.Fprintf(&b, "  %s: %s\n", text.code, v.ReservationCode)
		fmt.Fprintf(&b, "  %s: $%s %s\n", text.amount, v.Amount.StringFixed(2), v.Currency)
		if v.Description != nil && *v.Description != "" {
			fmt.Fprintf(&b, "  %s: %s\n", text.description, *v.Description)
		}
		b.WriteString("\n")

		if _, seen := totals[v.Currency]; !seen {
			currencies = append(currencies, v.Currency)
			totals[v.Currency] = decimal.Zero
		}
		totals[v.Currency] = totals[v.Currency].Add(v.Amount)
	}

	b.WriteString("---\n")
	for _, cur := range currencies {
		fmt.Fprintf(&b, "Total: $%s %s\n", totals[cur].StringFixed(2), cur)
	}

	b.WriteString("\n")
	b.WriteString(text.closing)
	b.WriteString("\n")
	b.WriteString(senderSignature)
	return b.String()
}

func sumAmounts(views []*payment.View) decimal.Decimal {
	total := decimal.Zero
	for _, v := range views {
		total = total.Add(v.Amount)
	}
	return total
}
