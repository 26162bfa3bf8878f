package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultFetchTimeout = 10 * time.Second
	maxPayloadBytes     = 4 << 20
)

var (
	// ErrFetchFailed indicates the legacy payload could not be retrieved.
	ErrFetchFailed = errors.New("importer: payload fetch failed")
	// ErrUnsupportedFormat indicates a payload file with an unknown extension.
	ErrUnsupportedFormat = errors.New("importer: unsupported payload format")
)

// Payload is the legacy profile. Sections stay raw so each one can fail on its own.
type Payload struct {
	Settings   json.RawMessage `json:"settings"`
	CustomKeys json.RawMessage `json:"customKeys"`
	Remappings json.RawMessage `json:"remappings"`
}

// PayloadSource retrieves the legacy payload of a user.
type PayloadSource interface {
	Fetch(ctx context.Context, userID string) (Payload, error)
}

// HTTPSource fetches payloads with GET <BaseURL>/<userID>.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPSource builds an HTTPSource with a bounded client timeout.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

// Fetch implements PayloadSource. Any transport error or non-2xx status is a fetch failure.
func (s *HTTPSource) Fetch(ctx context.Context, userID string) (Payload, error) {
	if strings.TrimSpace(s.BaseURL) == "" {
		return Payload{}, fmt.Errorf("%w: base url is not configured", ErrFetchFailed)
	}
	endpoint := s.BaseURL + "/" + url.PathEscape(userID)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	request.Header.Set("Accept", "application/json")

	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	response, err := client.Do(request)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return Payload{}, fmt.Errorf("%w: status %d", ErrFetchFailed, response.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(response.Body, maxPayloadBytes))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	payload, err := decodeJSONPayload(body)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return payload, nil
}

// StaticSource serves one payload for every user. It backs the CLI import command.
type StaticSource struct {
	payload Payload
}

// NewStaticSource wraps an already decoded payload.
func NewStaticSource(payload Payload) *StaticSource {
	return &StaticSource{payload: payload}
}

// LoadFile reads a JSON or YAML payload file, chosen by extension.
func LoadFile(path string) (*StaticSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload file: %w", err)
	}
	var payload Payload
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		payload, err = decodeJSONPayload(data)
	case ".yaml", ".yml":
		payload, err = decodeYAMLPayload(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("decode payload file: %w", err)
	}
	return NewStaticSource(payload), nil
}

// Fetch implements PayloadSource.
func (s *StaticSource) Fetch(_ context.Context, _ string) (Payload, error) {
	return s.payload, nil
}

func decodeJSONPayload(data []byte) (Payload, error) {
	var payload Payload
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&payload); err != nil {
		return Payload{}, err
	}
	return payload, nil
}

// decodeYAMLPayload converts YAML into the JSON sections the importer validates.
func decodeYAMLPayload(data []byte) (Payload, error) {
	var document map[string]any
	if err := yaml.Unmarshal(data, &document); err != nil {
		return Payload{}, err
	}
	encoded, err := json.Marshal(document)
	if err != nil {
		return Payload{}, err
	}
	return decodeJSONPayload(encoded)
}
