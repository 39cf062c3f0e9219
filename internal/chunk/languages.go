package chunk

import (
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageConfig describes how to find declaration boundaries for one language.
type LanguageConfig struct {
	Name string

	// DeclKinds maps declaration node types to chunk kinds. Nodes of
	// these types at the top level become chunk boundaries; nested
	// occurrences are used when splitting oversized declarations.
	DeclKinds map[string]Kind

	// NameTypes are node types that carry a declaration's name.
	NameTypes map[string]struct{}
}

// LanguageRegistry maps language tags to parse capability. A tag missing
// from the registry means the windowed fallback handles that language.
type LanguageRegistry struct {
	mu      sync.RWMutex
	configs map[string]*LanguageConfig
	parsers map[string]*sitter.Language
}

// NewLanguageRegistry returns a registry with the default languages.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs: make(map[string]*LanguageConfig),
		parsers: make(map[string]*sitter.Language),
	}

	r.registerGo()
	r.registerTypeScript()
	r.registerJavaScript()
	r.registerPython()

	return r
}

// Config returns the language configuration for a tag.
func (r *LanguageRegistry) Config(language string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[language]
	return cfg, ok
}

// TreeSitterLanguage returns the tree-sitter grammar for a tag.
func (r *LanguageRegistry) TreeSitterLanguage(language string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.parsers[language]
	return lang, ok
}

// Register adds a language. Existing entries are replaced.
func (r *LanguageRegistry) Register(cfg *LanguageConfig, lang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	r.parsers[cfg.Name] = lang
}

var defaultNameTypes = map[string]struct{}{
	"identifier":          {},
	"type_identifier":     {},
	"field_identifier":    {},
	"property_identifier": {},
	"name":                {},
}

func (r *LanguageRegistry) registerGo() {
	r.Register(&LanguageConfig{
		Name: "go",
		DeclKinds: map[string]Kind{
			"function_declaration": KindFunction,
			"method_declaration":   KindMethod,
			"type_declaration":     KindType,
			"const_declaration":    KindBlock,
			"var_declaration":      KindBlock,
		},
		NameTypes: defaultNameTypes,
	}, golang.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScript() {
	kinds := map[string]Kind{
		"function_declaration":   KindFunction,
		"method_definition":      KindMethod,
		"class_declaration":      KindClass,
		"interface_declaration":  KindType,
		"type_alias_declaration": KindType,
		"lexical_declaration":    KindBlock,
		"variable_declaration":   KindBlock,
	}

	r.Register(&LanguageConfig{
		Name:      "typescript",
		DeclKinds: kinds,
		NameTypes: defaultNameTypes,
	}, typescript.GetLanguage())

	r.Register(&LanguageConfig{
		Name:      "tsx",
		DeclKinds: kinds,
		NameTypes: defaultNameTypes,
	}, tsx.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	r.Register(&LanguageConfig{
		Name: "javascript",
		DeclKinds: map[string]Kind{
			"function_declaration": KindFunction,
			"method_definition":    KindMethod,
			"class_declaration":    KindClass,
			"lexical_declaration":  KindBlock,
			"variable_declaration": KindBlock,
		},
		NameTypes: defaultNameTypes,
	}, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	r.Register(&LanguageConfig{
		Name: "python",
		DeclKinds: map[string]Kind{
			"function_definition":  KindFunction,
			"class_definition":     KindClass,
			"decorated_definition": KindFunction,
		},
		NameTypes: defaultNameTypes,
	}, python.GetLanguage())
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the process-wide language registry.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}
