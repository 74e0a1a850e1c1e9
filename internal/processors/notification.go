package processors

import (
	"context"
	"maps"

	"benefitclaims/internal/external"
	"benefitclaims/internal/messaging"
	"benefitclaims/internal/types"
)

// SendEmailHandler emails the claimant.
type SendEmailHandler struct {
	*base
	messaging.NoCompensation
}

func (h *SendEmailHandler) SupportsType() types.MessageType {
	return types.MessageTypeSendEmail
}

func (h *SendEmailHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.EmailPayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	claim, err := h.loader.Claim(ctx, p.ClaimID)
	if err != nil {
		return messaging.StatusError, err
	}
	template := lookup(h.Templates.Email, string(p.EmailType))

	to := claim.Claimant.EmailAddress
	if to == "" {
		h.Logger.InfoContext(ctx, "claimant has no email address, skipping email",
			"claim_id", claim.ID,
			"email_type", string(p.EmailType),
		)
		return messaging.StatusCompleted, nil
	}

	id, err := h.Email.Send(ctx, external.EmailInput{
		To:           to,
		TemplateName: template,
		TemplateData: personalise(claim, p.Personalisation),
		ReferenceID:  msg.ID,
	})
	if err != nil {
		return messaging.StatusError, &NotificationError{Channel: ChannelEmail, Template: template, ClaimID: claim.ID, Err: err}
	}

	h.Logger.InfoContext(ctx, "email sent",
		"claim_id", claim.ID,
		"email_type", string(p.EmailType),
		"to", redactEmail(to),
		"provider_message_id", id,
	)
	return messaging.StatusCompleted, nil
}

// SendTextHandler texts the claimant.
type SendTextHandler struct {
	*base
	messaging.NoCompensation
}

func (h *SendTextHandler) SupportsType() types.MessageType {
	return types.MessageTypeSendText
}

func (h *SendTextHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.TextPayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	claim, err := h.loader.Claim(ctx, p.ClaimID)
	if err != nil {
		return messaging.StatusError, err
	}
	template := lookup(h.Templates.Text, string(p.TextType))

	phone := claim.Claimant.PhoneNumber
	if phone == "" {
		h.Logger.InfoContext(ctx, "claimant has no phone number, skipping text",
			"claim_id", claim.ID,
			"text_type", string(p.TextType),
		)
		return messaging.StatusCompleted, nil
	}

	id, err := h.Notifier.SendText(ctx, external.TextRequest{
		PhoneNumber:     phone,
		TemplateID:      template,
		Personalisation: personalise(claim, p.Personalisation),
		Reference:       msg.ID,
	})
	if err != nil {
		return messaging.StatusError, &NotificationError{Channel: ChannelText, Template: template, ClaimID: claim.ID, Err: err}
	}

	h.Logger.InfoContext(ctx, "text sent",
		"claim_id", claim.ID,
		"text_type", string(p.TextType),
		"to", redactPhone(phone),
		"provider_message_id", id,
	)
	return messaging.StatusCompleted, nil
}

// SendLetterHandler posts a letter to the claimant's address.
type SendLetterHandler struct {
	*base
	messaging.NoCompensation
}

func (h *SendLetterHandler) SupportsType() types.MessageType {
	return types.MessageTypeSendLetter
}

func (h *SendLetterHandler) Process(ctx context.Context, msg *types.Message) (messaging.Status, error) {
	p, err := messaging.Decode[types.LetterPayload](msg)
	if err != nil {
		return messaging.StatusError, err
	}
	claim, err := h.loader.Claim(ctx, p.ClaimID)
	if err != nil {
		return messaging.StatusError, err
	}
	template := lookup(h.Templates.Letter, string(p.LetterType))

	c := claim.Claimant
	fields := personalise(claim, p.Personalisation)
	fields["address_line_1"] = c.FullName()
	fields["address_line_2"] = c.AddressLine1
	fields["address_line_3"] = c.AddressLine2
	fields["address_line_4"] = c.TownOrCity
	fields["postcode"] = c.Postcode

	id, err := h.Notifier.SendLetter(ctx, external.LetterRequest{
		TemplateID:      template,
		Personalisation: fields,
		Reference:       msg.ID,
	})
	if err != nil {
		return messaging.StatusError, &NotificationError{Channel: ChannelLetter, Template: template, ClaimID: claim.ID, Err: err}
	}

	h.Logger.InfoContext(ctx, "letter sent",
		"claim_id", claim.ID,
		"letter_type", string(p.LetterType),
		"provider_message_id", id,
	)
	return messaging.StatusCompleted, nil
}

// personalise merges the claimant's name with the payload's fields. The
// payload wins on conflicts.
func personalise(claim *types.Claim, extra map[string]string) map[string]string {
	out := map[string]string{
		"first_name": claim.Claimant.FirstName,
		"last_name":  claim.Claimant.LastName,
	}
	maps.Copy(out, extra)
	return out
}
