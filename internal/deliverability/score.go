package deliverability

import "github.com/lewisgerrard/divafitness-backend/internal/model"

const (
	criticalWeight = 30
	warningWeight  = 10
	goodWeight     = -5
)

// Score sums the check weights and clamps to [0,100]. The sum is taken before
// clamping, so the result does not depend on check order.
func Score(checks []model.DeliverabilityCheck) int {
	score := 0
	for _, c := range checks {
		switch c.Status {
		case model.StatusCritical:
			score += criticalWeight
		case model.StatusWarning:
			score += warningWeight
		case model.StatusGood:
			score += goodWeight
		}
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func Rating(score int) string {
	switch {
	case score <= 20:
		return "excellent"
	case score <= 40:
		return "good"
	case score <= 60:
		return "fair"
	case score <= 80:
		return "poor"
	default:
		return "critical"
	}
}

func Summarize(report model.DeliverabilityReport) model.DeliverabilitySummary {
	s := model.DeliverabilitySummary{
		TotalChecks: len(report.Checks),
		SpamScore:   report.SpamScore,
		Rating:      report.DeliverabilityRating,
	}
	for _, c := range report.Checks {
		switch c.Status {
		case model.StatusGood:
			s.Good++
		case model.StatusWarning:
			s.Warnings++
		case model.StatusCritical:
			s.Critical++
		}
	}
	return s
}

func isDNSCheck(t string) bool {
	return t == model.CheckSPF || t == model.CheckDKIM || t == model.CheckDMARC
}

// Recommendations orders fixes: critical DNS, other DNS, domain verification,
// content, then reputation building.
func Recommendations(checks []model.DeliverabilityCheck) []string {
	var critical, dns, verification, content []string
	for _, c := range checks {
		if c.Status == model.StatusGood {
			continue
		}
		switch {
		case isDNSCheck(c.Type) && c.Status == model.StatusCritical:
			critical = append(critical, "URGENT: "+c.Fix)
		case isDNSCheck(c.Type):
			dns = append(dns, c.Fix)
		case c.Type == model.CheckDomainVerification:
			verification = append(verification, c.Fix)
		default:
			content = append(content, c.Fix)
		}
	}
	recs := make([]string, 0, len(checks)+2)
	recs = append(recs, critical...)
	recs = append(recs, dns...)
	recs = append(recs, verification...)
	recs = append(recs, content...)
	recs = append(recs,
		"Warm up sending volume gradually and keep bounce rates below 2%",
		"Monitor DMARC aggregate reports and provider dashboards weekly",
	)
	return recs
}

// NextSteps is an urgent list when score > 50, a maintenance list otherwise.
func NextSteps(report model.DeliverabilityReport) []string {
	if report.SpamScore > 50 {
		steps := []string{"Fix the critical DNS records below before sending more mail"}
		for _, c := range report.Checks {
			if c.Status == model.StatusCritical {
				steps = append(steps, c.Type+": "+c.Fix)
			}
		}
		return append(steps,
			"Re-run this check after DNS changes propagate (up to 48 hours)",
			"Send a test message to a Gmail and an Outlook inbox and inspect the headers")
	}
	steps := []string{
		"Keep SPF, DKIM and DMARC records unchanged when switching providers",
		"Re-run this check monthly",
	}
	if report.SpamScore > 20 {
		steps = append(steps, "Resolve the remaining warnings to reach an excellent rating")
	}
	return steps
}
