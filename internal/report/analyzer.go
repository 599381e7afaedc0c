package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"healthmate/internal/llm"
	"healthmate/internal/metrics"
	"healthmate/internal/shared"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const agentReport = "ReportAnalysis"

// maxContentBytes bounds how much of a fetched file is sent to the model.
const maxContentBytes = 12000

// maxFetchBytes bounds how much of a response body is read. HTML is read up
// to this size before markup is stripped.
const maxFetchBytes = 1 << 20

const systemPrompt = `You are a medical report assistant. Explain the report to a patient in plain, non-technical language.

Structure the answer as:
1. A short overview of what the report is.
2. Key findings, noting any values outside the usual range.
3. Suggested questions to ask a doctor.

Do not diagnose. End by recommending the patient review the results with their healthcare provider.`

var (
	// ErrMissingFileName is returned when the request does not name a file.
	ErrMissingFileName = errors.New("fileName is required")
	// ErrURLNotAllowed is returned for a fileUrl outside the reports location.
	ErrURLNotAllowed = errors.New("fileUrl is not under the reports location")
)

// AnalyzeRequest names the uploaded report and, optionally, where to read it.
type AnalyzeRequest struct {
	FileName string
	FileURL  string
}

// Analyzer turns an uploaded report into a plain-language summary.
type Analyzer struct {
	textGen    llm.TextGenerator
	baseURL    *url.URL
	httpClient *http.Client
	recorder   shared.MetaRecorder
	logger     *zap.Logger
}

// NewAnalyzer creates a new Analyzer. Files are only fetched from URLs under
// reportsBaseURL; an empty base disables fetching. recorder may be nil.
func NewAnalyzer(textGen llm.TextGenerator, reportsBaseURL string, recorder shared.MetaRecorder, logger *zap.Logger) *Analyzer {
	if recorder == nil {
		recorder = shared.NopRecorder{}
	}
	a := &Analyzer{
		textGen:  textGen,
		recorder: recorder,
		logger:   logger,
	}
	if reportsBaseURL != "" {
		if u, err := url.Parse(reportsBaseURL); err == nil && u.Host != "" {
			a.baseURL = u
		} else {
			logger.Warn("ignoring invalid reports base URL", zap.String("url", reportsBaseURL))
		}
	}
	a.httpClient = &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("stopped after 5 redirects")
			}
			if !a.allowed(req.URL) {
				return ErrURLNotAllowed
			}
			return nil
		},
	}
	return a
}

// allowed reports whether u has the base URL's scheme and host and sits under
// its path.
func (a *Analyzer) allowed(u *url.URL) bool {
	if a.baseURL == nil || u == nil {
		return false
	}
	if !strings.EqualFold(u.Scheme, a.baseURL.Scheme) || !strings.EqualFold(u.Host, a.baseURL.Host) {
		return false
	}
	if u.User != nil {
		return false
	}
	prefix := a.baseURL.Path
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(u.Path, prefix)
	}
	return u.Path == prefix || strings.HasPrefix(u.Path, prefix+"/")
}

// Analyze fetches the report when a URL is given and asks the model for a summary.
func (a *Analyzer) Analyze(ctx context.Context, req AnalyzeRequest) (string, error) {
	if strings.TrimSpace(req.FileName) == "" {
		return "", ErrMissingFileName
	}

	user := fmt.Sprintf("Report file: %s", req.FileName)
	if req.FileURL != "" {
		content, err := a.fetchContent(ctx, req.FileURL)
		if err != nil {
			return "", fmt.Errorf("failed to fetch report: %w", err)
		}
		user += "\n\nReport content:\n" + content
	} else {
		user += "\n\nThe file content is not available. Describe what this kind of report usually contains and how to read it."
	}

	start := time.Now()
	resp, err := a.textGen.GenerateContent(ctx, llm.Prompt(systemPrompt, user))
	latency := time.Since(start)
	metrics.ObserveCompletion(agentReport, latency.Seconds(), err)
	if err != nil {
		return "", err
	}
	if recErr := a.recorder.RecordMeta(shared.AgentMeta{AgentName: agentReport, Usage: resp.Usage, Latency: latency}); recErr != nil {
		a.logger.Warn("failed to record usage", zap.String("agent", agentReport), zap.Error(recErr))
	}

	return strings.TrimSpace(resp.Content), nil
}

func (a *Analyzer) fetchContent(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if !a.allowed(u) || strings.Contains(u.Path, "..") {
		a.logger.Warn("report fetch rejected", zap.String("url", rawURL))
		return "", ErrURLNotAllowed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxFetchBytes)

	var text string
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		doc, err := goquery.NewDocumentFromReader(body)
		if err != nil {
			return "", err
		}
		doc.Find("script, style, nav, footer, iframe, noscript").Remove()
		text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	} else {
		raw, err := io.ReadAll(io.LimitReader(body, maxContentBytes))
		if err != nil {
			return "", err
		}
		text = string(raw)
	}

	return truncate(text, maxContentBytes), nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
