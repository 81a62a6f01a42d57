package leads

import (
	"regexp"
	"strings"
)

var (
	emailRE   = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	websiteRE = regexp.MustCompile(`(?i)\b(?:https?://)?(?:www\.)?([a-z0-9\-]+(?:\.[a-z0-9\-]+)*\.[a-z]{2,})(?:/[^\s]*)?`)
	phoneRE   = regexp.MustCompile(`(?:\+?1[\-.\s]?)?(?:\(\d{3}\)|\d{3})[\-.\s]?\d{3}[\-.\s]?\d{4}`)

	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b(?i:i'm|i’m|i am|this is|my name is|name is)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`),
		regexp.MustCompile(`^\s*([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)\s+(?i:from|at|with)\b`),
	}
	companyRE = regexp.MustCompile(`\b(?i:from|at|with|work for|working for|employed by)\s+([A-Z][A-Za-z0-9&'\-]*(?:\s+[A-Za-z0-9&'\-]+)*?)\s*(?:[.,!?;:]|$|\s+(?i:and|in|on|for|email|my|but)\b)`)
)

var freemailDomains = []string{"gmail", "yahoo", "hotmail", "outlook"}

const maxCompanyLength = 50

// Extract pulls best-effort contact fields out of a free-text message. Within
// each field the first match wins. Misses are expected; the result never
// carries Problem or Intent.
func Extract(text string) Info {
	var info Info
	if strings.TrimSpace(text) == "" {
		return info
	}

	if email := emailRE.FindString(text); email != "" {
		info.Email = strings.ToLower(email)
		domain := info.Email[strings.LastIndex(info.Email, "@")+1:]
		if !isFreemail(domain) {
			info.Website = domain
		}
	}
	if info.Website == "" {
		info.Website = findWebsite(text)
	}

	info.Phone = findPhone(text)

	for _, re := range namePatterns {
		if m := re.FindStringSubmatch(text); len(m) > 1 {
			info.Name = strings.TrimSpace(m[1])
			break
		}
	}

	if m := companyRE.FindStringSubmatch(text); len(m) > 1 {
		company := strings.TrimRight(strings.TrimSpace(m[1]), ".,;:!?'\"- ")
		if len(company) > 1 && len(company) < maxCompanyLength {
			info.Company = company
		}
	}

	return info
}

func isFreemail(domain string) bool {
	for _, d := range freemailDomains {
		if strings.Contains(domain, d) {
			return true
		}
	}
	return false
}

// findWebsite returns the first domain-shaped token that is not part of an
// email address, stripped of scheme, www. prefix and path.
func findWebsite(text string) string {
	for _, loc := range websiteRE.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && text[start-1] == '@' {
			continue
		}
		if end < len(text) && text[end] == '@' {
			continue
		}
		return strings.TrimSuffix(strings.ToLower(text[loc[2]:loc[3]]), "/")
	}
	return ""
}

// findPhone returns the first US-shaped number not embedded in a longer digit run.
func findPhone(text string) string {
	for _, loc := range phoneRE.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && isDigit(text[start-1]) {
			continue
		}
		if end < len(text) && isDigit(text[end]) {
			continue
		}
		return strings.TrimSpace(text[start:end])
	}
	return ""
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
