package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// PersonaTemplate は固定ペルソナの定義です。
type PersonaTemplate struct {
	Name     string `yaml:"name"`
	Briefing string `yaml:"briefing"`
}

// PromptCatalog はprompts.yamlの構造を定義
type PromptCatalog struct {
	Version      string                     `yaml:"version"`
	Language     string                     `yaml:"language"`
	Personas     map[string]PersonaTemplate `yaml:"personas"`
	Instructions map[string]string          `yaml:"instructions"`
	Constraints  []string                   `yaml:"constraints"`

	templates map[string]*template.Template
}

// 必ず定義されていなければならない指示テンプレート
var requiredInstructions = []string{
	"research", "demographics", "planner", "drafting", "revision",
	"review", "evaluation", "futureEvaluation", "scoring",
}

// LoadPrompts はYAMLからプロンプト定義を読み込みます。pathが空なら埋め込みの既定値を使います。
func LoadPrompts(path string) (*PromptCatalog, error) {
	data := defaultPrompts
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("プロンプト設定ファイルの読み込みに失敗: %w", err)
		}
		data = b
	}
	return ParsePrompts(data)
}

// ParsePrompts はYAMLを解析し、テンプレートを事前にコンパイルします。
func ParsePrompts(data []byte) (*PromptCatalog, error) {
	var catalog PromptCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("YAMLのパースに失敗: %w", err)
	}

	catalog.templates = make(map[string]*template.Template, len(catalog.Instructions))
	for _, name := range requiredInstructions {
		if _, ok := catalog.Instructions[name]; !ok {
			return nil, fmt.Errorf("指示テンプレート %q が定義されていません", name)
		}
	}
	for name, text := range catalog.Instructions {
		tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("指示テンプレート %q の解析に失敗: %w", name, err)
		}
		catalog.templates[name] = tmpl
	}
	return &catalog, nil
}

// Persona は固定ペルソナを返します。未定義の場合は名前だけのペルソナになります。
func (c *PromptCatalog) Persona(role string) PersonaTemplate {
	if p, ok := c.Personas[role]; ok {
		p.Briefing = c.withConstraints(p.Briefing)
		return p
	}
	return PersonaTemplate{Name: role, Briefing: c.withConstraints("")}
}

// Render は指示テンプレートにデータを埋め込みます。
func (c *PromptCatalog) Render(name string, data any) (string, error) {
	tmpl, ok := c.templates[name]
	if !ok {
		return "", fmt.Errorf("指示テンプレート %q が見つかりません", name)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("指示テンプレート %q の展開に失敗: %w", name, err)
	}
	return sb.String(), nil
}

// Briefing は参加者固有のブリーフィングに共通の制約を付け足します。
func (c *PromptCatalog) Briefing(briefing string) string {
	return c.withConstraints(briefing)
}

func (c *PromptCatalog) withConstraints(briefing string) string {
	if len(c.Constraints) == 0 {
		return briefing
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(briefing))
	sb.WriteString("\n\n## 制約事項\n")
	for _, constraint := range c.Constraints {
		sb.WriteString(fmt.Sprintf("- %s\n", constraint))
	}
	return sb.String()
}
