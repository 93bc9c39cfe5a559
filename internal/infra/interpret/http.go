package interpret

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/plano-ai/plano/internal/domain"
	"github.com/plano-ai/plano/internal/infra/metrics"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 60 * time.Second

	interpretPath = "/api/v1/interpret-plan"
	analyzePath   = "/api/v1/analyze-meal"
)

// HTTPClient talks to the remote interpretation service.
type HTTPClient struct {
	BaseURL    string
	HTTPClient *http.Client
	// Token is sent as a bearer token when set.
	Token string
	// Limiter throttles outbound calls. Nil means unlimited.
	Limiter *rate.Limiter
}

// NewLimiter allows perMinute calls per minute with a burst of one.
// Zero or negative disables limiting.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// InterpretPlan uploads the document as multipart field "file".
func (c *HTTPClient) InterpretPlan(ctx context.Context, doc domain.Document) (domain.RawDietPlan, error) {
	body, err := c.post(ctx, "interpret_plan", interpretPath, func(w *multipart.Writer) error {
		return writeFile(w, "file", doc.Name, doc.MIMEType, "application/pdf", doc.Data)
	})
	if err != nil {
		return domain.RawDietPlan{}, err
	}
	plan, err := DecodePlan(body)
	if err != nil {
		metrics.ServiceErrors.WithLabelValues(BackendHTTP, "interpret_plan").Inc()
		return domain.RawDietPlan{}, err
	}
	return plan, nil
}

// AnalyzeMeal uploads the photos with the day label, meal name and planned
// meal JSON.
func (c *HTTPClient) AnalyzeMeal(ctx context.Context, req domain.AnalysisRequest) (domain.MealAnalysis, error) {
	if len(req.Photos) == 0 {
		return domain.MealAnalysis{}, domain.ErrNoPhotos
	}
	body, err := c.post(ctx, "analyze_meal", analyzePath, func(w *multipart.Writer) error {
		for i, p := range req.Photos {
			name := p.Name
			if name == "" {
				name = fmt.Sprintf("photo-%d", i)
			}
			if err := writeFile(w, "photos", name, p.MIMEType, "image/jpeg", p.Data); err != nil {
				return err
			}
		}
		fields := [][2]string{
			{"day_label", req.DayLabel},
			{"meal_name", req.Meal.Name},
			{"meal_plan_json", PlannedMealJSON(req.Meal)},
		}
		for _, f := range fields {
			if err := w.WriteField(f[0], f[1]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.MealAnalysis{}, err
	}
	a, err := DecodeAnalysis(body)
	if err != nil {
		metrics.ServiceErrors.WithLabelValues(BackendHTTP, "analyze_meal").Inc()
		return domain.MealAnalysis{}, err
	}
	return a, nil
}

func (c *HTTPClient) post(ctx context.Context, op, path string, fill func(*multipart.Writer) error) ([]byte, error) {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := fill(mw); err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrServiceUnavailable, op, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "plano/1.0")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	metrics.ServiceLatency.WithLabelValues(BackendHTTP, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ServiceErrors.WithLabelValues(BackendHTTP, op).Inc()
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrServiceUnavailable, op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ServiceErrors.WithLabelValues(BackendHTTP, op).Inc()
		return nil, fmt.Errorf("%w: read %s response: %v", domain.ErrServiceUnavailable, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ServiceErrors.WithLabelValues(BackendHTTP, op).Inc()
		return nil, &StatusError{Op: op, Code: resp.StatusCode}
	}
	return body, nil
}

func writeFile(w *multipart.Writer, field, name, mimeType, fallback string, data []byte) error {
	if mimeType == "" {
		mimeType = fallback
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}
