package configbuilder

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Personaz1/openclaw-council/internal/config"
	"github.com/Personaz1/openclaw-council/internal/llm"
	llmollama "github.com/Personaz1/openclaw-council/internal/llm/providers/ollama"
	llmopenai "github.com/Personaz1/openclaw-council/internal/llm/providers/openai"
)

// Factory builds a provider client for one call from its config entry and credential.
type Factory struct {
	// Transport is shared by every client the factory builds; nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// NewFactory returns a Factory whose transport trusts the system roots plus caFile.
func NewFactory(caFile string) (*Factory, error) {
	rt, err := NewTransport(caFile)
	if err != nil {
		return nil, err
	}
	return &Factory{Transport: rt}, nil
}

// Build constructs the provider named name.
func (f *Factory) Build(name string, cfg config.ProviderConfig, apiKey string, timeout time.Duration) (llm.Provider, error) {
	var rt http.RoundTripper
	if f != nil {
		rt = f.Transport
	}
	switch cfg.Type {
	case "", "openai":
		return llmopenai.NewProvider(name, cfg.BaseURL, apiKey, timeout, llmopenai.WithTransport(rt)), nil
	case "ollama":
		return llmollama.NewProvider(name, cfg.BaseURL, timeout, llmollama.WithTransport(rt)), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q for provider %s", cfg.Type, name)
	}
}

// NewTransport clones the default transport. When caFile is set its PEM
// certificates are added to the system pool, for hosts whose bundled roots are stale.
func NewTransport(caFile string) (http.RoundTripper, error) {
	base := http.DefaultTransport.(*http.Transport).Clone()
	if caFile == "" {
		return base, nil
	}

	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read ca bundle: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca bundle %s contains no certificates", caFile)
	}
	base.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	return base, nil
}
