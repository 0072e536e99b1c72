// Package deepgram synthesizes speech through Deepgram's Aura API, over REST
// for whole utterances and over a websocket when audio should start flowing
// before synthesis finishes.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/koscakluka/callflow-core/core/audio"
	"github.com/koscakluka/callflow-core/core/synthesis"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	speakURL  = "https://api.deepgram.com/v1/speak"
	speakHost = "api.deepgram.com"
	speakPath = "/v1/speak"

	DefaultVoice = "aura-2-thalia-en"
)

type Client struct {
	apiKey     string
	voice      string
	encoding   audio.EncodingInfo
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *Client) { c.apiKey = apiKey }
}

func WithVoice(voice string) ClientOption {
	return func(c *Client) {
		if voice != "" {
			c.voice = voice
		}
	}
}

func WithEncodingInfo(encoding audio.EncodingInfo) ClientOption {
	return func(c *Client) {
		if !encoding.IsZero() {
			c.encoding = encoding
		}
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		voice:      DefaultVoice,
		encoding:   audio.GetDefaultEncodingInfo(),
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(client)
	}

	if client.apiKey == "" {
		apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
		if !ok {
			return nil, fmt.Errorf("deepgram api key not found")
		}
		client.apiKey = apiKey
	}

	return client, nil
}

var _ synthesis.StreamingSynthesizer = (*Client)(nil)

func (c *Client) Voice() synthesis.VoiceParams {
	return synthesis.VoiceParams{
		VoiceID:  c.voice,
		ModelID:  c.voice,
		Encoding: c.encoding,
		Params: map[string]string{
			"encoding":    c.encoding.Format.Name(),
			"sample_rate": strconv.Itoa(c.encoding.SampleRate),
		},
	}
}

// Synthesize requests the whole utterance in one REST call.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	body, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, speakURL+"?"+c.queryValues().Encode(), bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	audioBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}
	return audioBytes, nil
}

func (c *Client) queryValues() url.Values {
	values := url.Values{}
	values.Set("model", c.voice)
	values.Set("encoding", c.encoding.Format.Name())
	values.Set("sample_rate", strconv.Itoa(c.encoding.SampleRate))
	values.Set("container", "none")
	return values
}
