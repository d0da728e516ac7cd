package notify

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Compose renders the emails for a receipt: always the thank-you message,
// plus the pending-verification notice when the creator has not completed
// payout checks. The notice makes explicit that the donation still counts
// toward the campaign goal.
func Compose(r Receipt) []Email {
	amount := formatAmount(r.AmountInt, r.Currency)

	thanks := Email{
		To:      r.DonorEmail,
		Subject: fmt.Sprintf("Thank you for supporting %s", r.CampaignTitle),
		Text: strings.Join([]string{
			fmt.Sprintf("Your donation of %s to %q was received.", amount, r.CampaignTitle),
			fmt.Sprintf("Campaign creator: %s", r.CreatorName),
			fmt.Sprintf("Payment method: %s ending in %s", r.CardBrand, r.CardLastFour),
			fmt.Sprintf("Transaction id: %s", r.TransactionID),
			fmt.Sprintf("Date: %s", r.CompletedAt.UTC().Format("2 Jan 2006 15:04 UTC")),
		}, "\n"),
	}
	if r.CreatorVerified {
		return []Email{thanks}
	}

	pending := Email{
		To:      r.DonorEmail,
		Subject: fmt.Sprintf("About your donation to %s", r.CampaignTitle),
		Text: strings.Join([]string{
			fmt.Sprintf("The creator of %q has not yet completed financial verification.", r.CampaignTitle),
			"Funds will be paid out once verification is complete.",
			fmt.Sprintf("Your donation of %s already counts toward the campaign goal.", amount),
		}, "\n"),
	}
	return []Email{thanks, pending}
}

// formatAmount renders minor units as a localized currency string, e.g.
// 500 USD -> "$ 5.00" but 500 JPY -> "¥ 500"; the fraction-digit count comes
// from the currency itself. Unknown codes fall back to a plain two-decimal
// "<code> <units>" rendering rather than failing the receipt.
func formatAmount(minor int64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return fmt.Sprintf("%s %d.%02d", code, minor/100, minor%100)
	}
	scale, _ := currency.Standard.Rounding(unit)
	divisor := 1.0
	for i := 0; i < scale; i++ {
		divisor *= 10
	}
	p := message.NewPrinter(language.English)
	return p.Sprintf("%v", currency.Symbol(unit.Amount(float64(minor)/divisor)))
}
