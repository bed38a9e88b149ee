package providers

import (
	"fmt"

	"github.com/tidwall/gjson"

	llmerrors "github.com/ahrav/go-appraise/internal/llm/errors"
	"github.com/ahrav/go-appraise/internal/llm/transport"
)

// snippetLimit bounds the response excerpt stored on parse errors.
const snippetLimit = 512

// textAt returns the string at a gjson path of a vendor response body.
func textAt(vendor transport.Vendor, body []byte, path string) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", &llmerrors.ParseError{
			Message: fmt.Sprintf("%s response is not valid JSON", vendor),
			Snippet: snippet(body),
		}
	}

	res := gjson.GetBytes(body, path)
	if !res.Exists() || res.Type != gjson.String {
		return "", &llmerrors.ParseError{
			Message: fmt.Sprintf("%s response has no text at %s", vendor, path),
			Snippet: snippet(body),
			Err:     llmerrors.ErrEmptyResponse,
		}
	}
	return res.String(), nil
}

func snippet(body []byte) string {
	if len(body) > snippetLimit {
		return string(body[:snippetLimit])
	}
	return string(body)
}
