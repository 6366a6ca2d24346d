package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/trust-engine/internal/observability"
	"github.com/hashicorp/go-retryablehttp"
)

// Sample is what the classifier oracle inspects.
type Sample struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Verdict is the classifier's answer.
type Verdict struct {
	Safe     bool   `json:"safe"`
	Category string `json:"category,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Classifier is the opaque scoring oracle.
type Classifier interface {
	Classify(ctx context.Context, sample Sample) (Verdict, error)
}

// ClassifyFailOpen calls c under a hard timeout. Any failure yields a safe
// verdict together with the error, so callers can log it and move on.
func ClassifyFailOpen(ctx context.Context, c Classifier, sample Sample, timeout time.Duration) (Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	verdict, err := c.Classify(ctx, sample)
	observability.ClassifierLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", ErrClassifierTimeout, err)
		}
		observability.ClassifierRequests.WithLabelValues("fail_open").Inc()
		return Verdict{Safe: true}, err
	}
	if verdict.Safe {
		observability.ClassifierRequests.WithLabelValues("safe").Inc()
	} else {
		observability.ClassifierRequests.WithLabelValues("violation").Inc()
	}
	return verdict, nil
}

// HTTPClassifier posts samples to a remote classification service.
type HTTPClassifier struct {
	client *http.Client
	url    string
	token  string
}

// NewHTTPClassifier builds a client that retries connection errors and 5xx
// responses. The caller's context bounds the total time spent.
func NewHTTPClassifier(url, token string) *HTTPClassifier {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 1 * time.Second
	retryClient.Logger = slog.Default()
	return &HTTPClassifier{
		client: retryClient.StandardClient(),
		url:    url,
		token:  token,
	}
}

func (h *HTTPClassifier) Classify(ctx context.Context, sample Sample) (Verdict, error) {
	body, err := json.Marshal(sample)
	if err != nil {
		return Verdict{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	res, err := h.client.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("classifier request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("classifier request failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to read classifier response: %w", err)
	}

	var verdict Verdict
	if err := json.Unmarshal(respBytes, &verdict); err != nil {
		return Verdict{}, fmt.Errorf("failed to parse classifier response: %w", err)
	}
	return verdict, nil
}

var BannedWords = []string{
	"fuck", "fucking", "fucker", "shit", "shitty", "bullshit",
	"ass", "asshole", "bastard", "bitch", "cunt",
	"nigger", "nigga", "chink", "spic", "kike", "faggot", "fag",
	"retard", "retarded", "tranny",
	"porn", "porno", "nude", "nudes",
	"spam", "scam", "scammer", "phishing", "malware",
}

// KeywordClassifier is the in-process text filter. It pre-screens content on
// creation and stands in for the remote oracle when none is configured.
// Images are not inspected.
type KeywordClassifier struct {
	bannedWordRegexps []*regexp.Regexp
	urlPattern        *regexp.Regexp
	emailPattern      *regexp.Regexp
	phonePattern      *regexp.Regexp
	allCapsPattern    *regexp.Regexp
	once              sync.Once
}

func NewKeywordClassifier() *KeywordClassifier {
	kc := &KeywordClassifier{}
	kc.compile()
	return kc
}

func (kc *KeywordClassifier) compile() {
	kc.once.Do(func() {
		kc.bannedWordRegexps = make([]*regexp.Regexp, 0, len(BannedWords))
		for _, word := range BannedWords {
			re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`)
			if err == nil {
				kc.bannedWordRegexps = append(kc.bannedWordRegexps, re)
			}
		}

		kc.urlPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+\.\S+)`)
		kc.emailPattern = regexp.MustCompile(`(?i)\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
		kc.phonePattern = regexp.MustCompile(`\d{3}[-.\s]?\d{3}[-.\s]?\d{4}|\(\d{3}\)\s*\d{3}[-.\s]?\d{4}`)
		kc.allCapsPattern = regexp.MustCompile(`[A-Z]{5,}`)
	})
}

// Filter returns whether text is clean and, if not, a machine-readable reason.
func (kc *KeywordClassifier) Filter(text string) (bool, string) {
	if text == "" {
		return true, ""
	}
	for _, re := range kc.bannedWordRegexps {
		if re.MatchString(text) {
			return false, "inappropriate_language"
		}
	}
	if kc.urlPattern.MatchString(text) {
		return false, "url_not_allowed"
	}
	if kc.emailPattern.MatchString(text) || kc.phonePattern.MatchString(text) {
		return false, "contact_info_not_allowed"
	}
	if hasRepeatedRun(text, 4) {
		return false, "spam_detected"
	}
	if len(kc.allCapsPattern.FindAllString(text, -1)) > 2 {
		return false, "excessive_caps"
	}
	return true, ""
}

func (kc *KeywordClassifier) Classify(_ context.Context, sample Sample) (Verdict, error) {
	clean, reason := kc.Filter(sample.Text)
	if clean {
		return Verdict{Safe: true}, nil
	}
	return Verdict{Safe: false, Category: reason, Reason: RejectionMessage(reason)}, nil
}

// RejectionMessage maps a filter reason to a message the author can act on.
func RejectionMessage(reason string) string {
	messages := map[string]string{
		"inappropriate_language":   "Your content contains inappropriate language.",
		"url_not_allowed":          "URLs and web links are not allowed.",
		"contact_info_not_allowed": "Contact information is not allowed.",
		"spam_detected":            "Your content appears to be spam.",
		"excessive_caps":           "Please avoid using excessive capital letters.",
	}
	if msg, ok := messages[reason]; ok {
		return msg
	}
	return "Your content does not meet our content guidelines."
}

// hasRepeatedRun reports whether any letter or !?. repeats n or more times in
// a row, case-insensitively. Go's regexp has no backreferences.
func hasRepeatedRun(text string, n int) bool {
	run := 0
	var prev rune
	for _, r := range text {
		lr := r
		if lr >= 'A' && lr <= 'Z' {
			lr += 'a' - 'A'
		}
		repeatable := (lr >= 'a' && lr <= 'z') || lr == '!' || lr == '?' || lr == '.'
		if repeatable && lr == prev {
			run++
		} else {
			run = 1
		}
		prev = lr
		if repeatable && run >= n {
			return true
		}
	}
	return false
}
