package provider

import "fmt"

// factories maps provider identifiers to constructors. Adding a
// provider means registering a new entry here, not extending a branch
// list elsewhere.
var factories = map[string]func(apiKey string) (Provider, error){
	"anthropic": func(k string) (Provider, error) { return NewAnthropicProvider(k) },
	"openai":    func(k string) (Provider, error) { return NewOpenAIProvider(k) },
	"google":    func(k string) (Provider, error) { return NewGoogleProvider(k) },
	"deepseek":  func(k string) (Provider, error) { return NewDeepSeekProvider(k) },
	"mock":      func(string) (Provider, error) { return NewMockProvider(), nil },
}

// New constructs the named provider with the given credential.
func New(name, apiKey string) (Provider, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return factory(apiKey)
}

// Known returns the identifiers of all registered providers.
func Known() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}
