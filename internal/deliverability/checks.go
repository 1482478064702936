package deliverability

import (
	"context"
	"fmt"
	"strings"

	"github.com/lewisgerrard/divafitness-backend/internal/mail"
	"github.com/lewisgerrard/divafitness-backend/internal/model"
)

// guard runs one check. A returned error or a panic becomes a critical
// "could not verify" entry so the report can always be produced.
func guard(checkType string, fn func() (model.DeliverabilityCheck, error)) (check model.DeliverabilityCheck) {
	defer func() {
		if r := recover(); r != nil {
			check = unverifiable(checkType, fmt.Errorf("panic: %v", r))
		}
	}()
	check, err := fn()
	if err != nil {
		return unverifiable(checkType, err)
	}
	return check
}

func unverifiable(checkType string, err error) model.DeliverabilityCheck {
	return model.DeliverabilityCheck{
		Type:    checkType,
		Status:  model.StatusCritical,
		Details: "Could not verify " + checkType,
		Impact:  "Unable to confirm this record; mailbox providers may treat the domain as unauthenticated",
		Fix:     "Check DNS configuration for " + checkType,
		Value:   err.Error(),
	}
}

func firstWithPrefix(records []string, prefix string) string {
	for _, rec := range records {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(rec)), strings.ToLower(prefix)) {
			return strings.TrimSpace(rec)
		}
	}
	return ""
}

func (a *Analyzer) checkSPF(ctx context.Context) (model.DeliverabilityCheck, error) {
	records, err := a.Resolver.LookupTXT(ctx, a.Domain)
	if err != nil {
		return model.DeliverabilityCheck{}, err
	}
	spf := firstWithPrefix(records, "v=spf1")
	switch {
	case spf == "":
		return model.DeliverabilityCheck{
			Type:    model.CheckSPF,
			Status:  model.StatusCritical,
			Details: "No SPF record found for " + a.Domain,
			Impact:  "Receivers cannot tell which servers may send for the domain; mail is likely to land in spam",
			Fix:     fmt.Sprintf("Add TXT record on %s: v=spf1 include:%s ~all", a.Domain, a.SPFInclude),
		}, nil
	case a.SPFInclude != "" && !strings.Contains(strings.ToLower(spf), "include:"+strings.ToLower(a.SPFInclude)):
		return model.DeliverabilityCheck{
			Type:    model.CheckSPF,
			Status:  model.StatusWarning,
			Details: "SPF record does not authorize the email provider",
			Impact:  "Mail sent through the provider fails SPF alignment",
			Fix:     fmt.Sprintf("Add include:%s to the existing SPF record", a.SPFInclude),
			Value:   spf,
		}, nil
	}
	return model.DeliverabilityCheck{
		Type:    model.CheckSPF,
		Status:  model.StatusGood,
		Details: "SPF record authorizes the email provider",
		Impact:  "Receivers can verify the sending servers",
		Fix:     "No action needed",
		Value:   spf,
	}, nil
}

func (a *Analyzer) checkDKIM(ctx context.Context) (model.DeliverabilityCheck, error) {
	name := a.DKIMSelector + "._domainkey." + a.Domain
	records, err := a.Resolver.LookupTXT(ctx, name)
	if err != nil {
		return model.DeliverabilityCheck{}, err
	}
	for _, rec := range records {
		if strings.Contains(rec, "p=") && !strings.Contains(rec, "p=;") && !strings.HasSuffix(strings.TrimSpace(rec), "p=") {
			return model.DeliverabilityCheck{
				Type:    model.CheckDKIM,
				Status:  model.StatusGood,
				Details: "DKIM public key published at " + name,
				Impact:  "Messages can be signed and verified",
				Fix:     "No action needed",
				Value:   truncate(rec, 60),
			}, nil
		}
	}
	return model.DeliverabilityCheck{
		Type:    model.CheckDKIM,
		Status:  model.StatusCritical,
		Details: "No DKIM public key found at " + name,
		Impact:  "Messages cannot be verified as untampered; many providers will reject or junk them",
		Fix:     "Publish the DKIM TXT record provided by the email provider at " + name,
	}, nil
}

func (a *Analyzer) checkDMARC(ctx context.Context) (model.DeliverabilityCheck, error) {
	name := "_dmarc." + a.Domain
	records, err := a.Resolver.LookupTXT(ctx, name)
	if err != nil {
		return model.DeliverabilityCheck{}, err
	}
	dmarc := firstWithPrefix(records, "v=DMARC1")
	if dmarc == "" {
		return model.DeliverabilityCheck{
			Type:    model.CheckDMARC,
			Status:  model.StatusCritical,
			Details: "No DMARC policy found at " + name,
			Impact:  "Gmail and Yahoo require DMARC for bulk senders; spoofing is not prevented",
			Fix:     fmt.Sprintf("Add TXT record on %s: v=DMARC1; p=quarantine; rua=mailto:dmarc@%s", name, a.Domain),
		}, nil
	}
	if strings.EqualFold(dmarcTag(dmarc, "p"), "none") {
		return model.DeliverabilityCheck{
			Type:    model.CheckDMARC,
			Status:  model.StatusWarning,
			Details: "DMARC policy is monitor-only (p=none)",
			Impact:  "Failing mail is still delivered; spoofed mail is not blocked",
			Fix:     "Move the DMARC policy to p=quarantine once reports look clean",
			Value:   dmarc,
		}, nil
	}
	return model.DeliverabilityCheck{
		Type:    model.CheckDMARC,
		Status:  model.StatusGood,
		Details: "DMARC policy is enforced",
		Impact:  "Receivers know how to handle unauthenticated mail",
		Fix:     "No action needed",
		Value:   dmarc,
	}, nil
}

// contentCheck is static: templates are fixed and carry no known trigger phrases.
func contentCheck() model.DeliverabilityCheck {
	return model.DeliverabilityCheck{
		Type:    model.CheckContent,
		Status:  model.StatusGood,
		Details: "Templates avoid common spam trigger phrases and include a plain-text part",
		Impact:  "Content filters are unlikely to penalize messages",
		Fix:     "Keep subject lines descriptive and avoid all-caps or excessive punctuation",
	}
}

func (a *Analyzer) authHeadersCheck() model.DeliverabilityCheck {
	var missing []string
	if mail.AddressDomain(a.FromAddress) != strings.ToLower(a.Domain) {
		missing = append(missing, "From address on "+a.Domain)
	}
	for _, h := range []string{"Reply-To", "List-Unsubscribe"} {
		if !containsFold(a.SenderHeaders, h) {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return model.DeliverabilityCheck{
			Type:    model.CheckAuthHeaders,
			Status:  model.StatusWarning,
			Details: "Outgoing mail is missing: " + strings.Join(missing, ", "),
			Impact:  "Misaligned or incomplete headers lower sender reputation",
			Fix:     "Send from an address on the verified domain and set Reply-To and List-Unsubscribe",
		}
	}
	return model.DeliverabilityCheck{
		Type:    model.CheckAuthHeaders,
		Status:  model.StatusGood,
		Details: "From is aligned with the domain and Reply-To and List-Unsubscribe are set",
		Impact:  "Headers meet mailbox provider sender requirements",
		Fix:     "No action needed",
	}
}

// domainVerificationCheck is advisory; the provider's verification API is not queried.
func (a *Analyzer) domainVerificationCheck() model.DeliverabilityCheck {
	return model.DeliverabilityCheck{
		Type:    model.CheckDomainVerification,
		Status:  model.StatusWarning,
		Details: "Provider domain verification status for " + a.Domain + " is not checked automatically",
		Impact:  "Unverified domains are sent from a shared domain and often land in spam",
		Fix:     "Confirm " + a.Domain + " shows as verified in the email provider dashboard",
	}
}

// dmarcTag returns the value of one tag from a "v=DMARC1; p=...; sp=..." record.
func dmarcTag(record, name string) string {
	for _, part := range strings.Split(record, ";") {
		k, v, ok := strings.Cut(part, "=")
		if ok && strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
