// Package languagetool is a client for LanguageTool-compatible grammar
// checking APIs. Requests are form-encoded POSTs limited to a configured
// rate; any transport failure or non-2xx response is reported as a
// domain.DependencyError so callers can apply their fallback policy.
package languagetool
