package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/phuslu/log"
)

// Provider names registered by NewManager.
const (
	ProviderGemini       = "gemini"
	ProviderGeminiLegacy = "gemini-legacy"
	ProviderDeepSeek     = "deepseek"
)

// Config selects providers per task. Keys are read from the environment when empty.
type Config struct {
	ActiveProvider string                `yaml:"active_provider" json:"active_provider"`
	Tasks          map[string]TaskConfig `yaml:"tasks" json:"tasks"`
	GeminiModel    string                `yaml:"gemini_model" json:"gemini_model"`
	DeepSeekModel  string                `yaml:"deepseek_model" json:"deepseek_model"`
	GeminiAPIKey   string                `yaml:"-" json:"-"`
	DeepSeekAPIKey string                `yaml:"-" json:"-"`
}

// TaskConfig overrides the provider for one task, e.g. "narrative".
type TaskConfig struct {
	Provider    string `yaml:"provider" json:"provider"`
	Description string `yaml:"description" json:"description"`
}

// Manager resolves a Provider for a task.
type Manager struct {
	mu        sync.RWMutex
	config    Config
	providers map[string]Provider
}

func NewManager(config Config) *Manager {
	return &Manager{
		config: config,
		providers: map[string]Provider{
			ProviderGemini:       &GeminiProvider{Model: config.GeminiModel, APIKey: config.GeminiAPIKey},
			ProviderGeminiLegacy: &GeminiLegacyProvider{Model: config.GeminiModel, APIKey: config.GeminiAPIKey},
			ProviderDeepSeek:     &DeepSeekProvider{Model: config.DeepSeekModel, APIKey: config.DeepSeekAPIKey},
		},
	}
}

// Register adds or replaces a named provider.
func (m *Manager) Register(name string, p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = p
}

// GetProvider returns the task override if configured, else the active provider,
// else Gemini.
func (m *Manager) GetProvider(task string) Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if tc, ok := m.config.Tasks[task]; ok && tc.Provider != "" {
		if p, ok := m.providers[tc.Provider]; ok {
			return p
		}
	}
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return p
	}
	return m.providers[ProviderGemini]
}

// GetProviderByName returns nil for an unknown name.
func (m *Manager) GetProviderByName(name string) Provider {
	m.mu.RLock()
	p, ok := m.providers[name]
	m.mu.RUnlock()
	if !ok {
		log.Debug().Str("provider", name).Strs("known", m.Providers()).Msg("[LLM] provider not found")
		return nil
	}
	return p
}

// ExecutePrompt adapts the system prompt for the task's provider and sends the request.
func (m *Manager) ExecutePrompt(ctx context.Context, task, prompt, systemPrompt string, options map[string]interface{}) (string, error) {
	provider := m.GetProvider(task)
	log.Debug().Str("task", task).Str("provider", fmt.Sprintf("%T", provider)).Msg("[LLM] execute prompt")
	return provider.GenerateResponse(ctx, prompt, provider.AdaptInstructions(systemPrompt), options)
}

func (m *Manager) SetGlobalProvider(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[name]; !ok {
		return fmt.Errorf("provider %s not found", name)
	}
	m.config.ActiveProvider = name
	log.Info().Str("provider", name).Msg("[LLM] global provider set")
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ActiveProvider
}

// Providers returns the registered provider names, sorted.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for k := range m.providers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
