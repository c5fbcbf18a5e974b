package shopping

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/dealscout/sourcing/pkg/errors"
)

// checkResponseStatus converts a non-2xx upstream response into a typed
// error so the fan-out layer can distinguish spent quotas and rate limits
// from plain failures. The body is sampled, not drained, to keep error
// messages bounded.
func checkResponseStatus(provider string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	sample, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(sample)))
	message := fmt.Sprintf("%s api request failed", provider)

	switch resp.StatusCode {
	case http.StatusPaymentRequired:
		return apperrors.NewQuotaExhaustedError(message, cause)
	case http.StatusTooManyRequests:
		return apperrors.NewRateLimitedError(message, cause)
	default:
		return apperrors.NewExternalError(message, cause)
	}
}
