// Package deliverability scores how likely mail from the sending domain is to reach the inbox.
package deliverability

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lewisgerrard/divafitness-backend/internal/logging"
	"github.com/lewisgerrard/divafitness-backend/internal/metrics"
	"github.com/lewisgerrard/divafitness-backend/internal/model"
)

// Analyzer runs the check battery for one domain. Every call recomputes from scratch.
type Analyzer struct {
	Resolver     Resolver
	Domain       string
	DKIMSelector string
	SPFInclude   string
	// FromAddress and SenderHeaders describe what outgoing mail actually carries.
	FromAddress   string
	SenderHeaders []string
	// LookupTimeout bounds each DNS query. Zero means no extra deadline.
	LookupTimeout time.Duration
	Log           *zap.SugaredLogger
	Now           func() time.Time
}

func NewAnalyzer(resolver Resolver, domain, dkimSelector, spfInclude string, log *zap.SugaredLogger) *Analyzer {
	return &Analyzer{
		Resolver:      resolver,
		Domain:        domain,
		DKIMSelector:  dkimSelector,
		SPFInclude:    spfInclude,
		LookupTimeout: 5 * time.Second,
		Log:           logging.OrNop(log).Named("deliverability"),
		Now:           time.Now,
	}
}

// PerformDNSChecks returns SPF, DKIM and DMARC entries in that order, whatever the
// individual lookups do.
func (a *Analyzer) PerformDNSChecks(ctx context.Context) []model.DeliverabilityCheck {
	dnsChecks := []struct {
		typ string
		run func(context.Context) (model.DeliverabilityCheck, error)
	}{
		{model.CheckSPF, a.checkSPF},
		{model.CheckDKIM, a.checkDKIM},
		{model.CheckDMARC, a.checkDMARC},
	}
	out := make([]model.DeliverabilityCheck, 0, len(dnsChecks))
	for _, c := range dnsChecks {
		check := guard(c.typ, func() (model.DeliverabilityCheck, error) {
			lookupCtx, cancel := a.lookupContext(ctx)
			defer cancel()
			return c.run(lookupCtx)
		})
		if check.Status == model.StatusCritical && check.Value != "" {
			a.log().Warnw("DNS check could not be verified", "check", c.typ, "domain", a.Domain, "error", check.Value)
		}
		out = append(out, check)
	}
	return out
}

func (a *Analyzer) lookupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.LookupTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.LookupTimeout)
}

// Checks runs the full battery: DNS checks followed by the static checks.
func (a *Analyzer) Checks(ctx context.Context) []model.DeliverabilityCheck {
	checks := a.PerformDNSChecks(ctx)
	checks = append(checks,
		guard(model.CheckContent, func() (model.DeliverabilityCheck, error) { return contentCheck(), nil }),
		guard(model.CheckAuthHeaders, func() (model.DeliverabilityCheck, error) { return a.authHeadersCheck(), nil }),
		guard(model.CheckDomainVerification, func() (model.DeliverabilityCheck, error) { return a.domainVerificationCheck(), nil }),
	)
	return checks
}

// Analyze never fails; unverifiable checks are reported as critical.
func (a *Analyzer) Analyze(ctx context.Context) model.DeliverabilityReport {
	checks := a.Checks(ctx)
	score := Score(checks)
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	report := model.DeliverabilityReport{
		Domain:               a.Domain,
		Checks:               checks,
		SpamScore:            score,
		DeliverabilityRating: Rating(score),
		Recommendations:      Recommendations(checks),
		CheckedAt:            now().UTC(),
	}

	metrics.DeliverabilitySpamScore.WithLabelValues(a.Domain).Set(float64(score))
	for _, c := range checks {
		metrics.DeliverabilityChecks.WithLabelValues(c.Type, string(c.Status)).Inc()
	}
	a.log().Infow("Deliverability analysis complete",
		"domain", a.Domain,
		"spamScore", score,
		"rating", report.DeliverabilityRating)
	return report
}

func (a *Analyzer) log() *zap.SugaredLogger {
	return logging.OrNop(a.Log)
}
