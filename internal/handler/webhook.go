package handler

import (
	"encoding/xml"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mfcastro/cobranca-assistant-go/internal/domain"
)

// twimlResponse is the minimal TwiML document Twilio expects back from a
// messaging webhook.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

const webhookApology = "Desculpe, ocorreu um erro ao processar sua mensagem."

// twilioWebhookHandler answers inbound WhatsApp messages relayed by Twilio.
// Only the configured debtor phone is served; anyone else gets a polite
// refusal. Twilio retries non-2xx responses, so errors are answered with an
// apology inside a 200 instead of an error status.
func twilioWebhookHandler(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /webhook/twilio")
		defer span.End()

		if err := r.ParseForm(); err != nil {
			writeTwiML(w, webhookApology)
			return
		}

		body := strings.TrimSpace(r.PostFormValue("Body"))
		from := strings.TrimPrefix(r.PostFormValue("From"), "whatsapp:")

		d.Logger.Info("webhook message received",
			zap.String("from", from),
			zap.Int("body_len", len(body)),
		)

		if !sameSubscriber(from, d.DebtorPhone) {
			err := &domain.ErrUnknownSender{From: from}
			d.Logger.Warn("message from unauthorized number", zap.Error(err))
			writeTwiML(w, "Desculpe, este número não está autorizado a usar este serviço.")
			return
		}

		// The phone number doubles as the conversation key so follow-up
		// messages share history.
		resp, err := d.Assistant.Answer(ctx, domain.ChatRequest{
			Query:          body,
			ConversationID: from,
		})
		if err != nil {
			d.Logger.Error("webhook chat failed", zap.Error(err))
			writeTwiML(w, webhookApology)
			return
		}

		writeTwiML(w, resp.Answer)
	}
}

func writeTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	xml.NewEncoder(w).Encode(twimlResponse{Message: message})
}

// sameSubscriber compares two phone numbers on digits only, tolerating
// formatting differences; one being a suffix of the other counts as a match.
func sameSubscriber(a, b string) bool {
	da, db := digits(a), digits(b)
	if da == "" || db == "" {
		return false
	}
	return strings.HasSuffix(da, db) || strings.HasSuffix(db, da)
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
