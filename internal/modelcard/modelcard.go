// modelcard reads and writes the YAML-frontmatter README.md cards that hub
// spaces are configured with.
package modelcard

import (
	"encoding"
	"errors"
	"fmt"
	"maps"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	_ encoding.TextMarshaler   = (*Card)(nil)
	_ encoding.TextUnmarshaler = (*Card)(nil)
)

// DefaultSDK is the space runtime used when a card does not name one.
const DefaultSDK = "gradio"

// Frontmatter holds the card fields the hub reads to configure a space.
type Frontmatter struct {
	Title      string `yaml:"title"`
	Emoji      string `yaml:"emoji,omitempty"`
	ColorFrom  string `yaml:"colorFrom,omitempty"`
	ColorTo    string `yaml:"colorTo,omitempty"`
	SDK        string `yaml:"sdk"`
	SDKVersion string `yaml:"sdk_version,omitempty"`
	AppFile    string `yaml:"app_file,omitempty"`
	Pinned     bool   `yaml:"pinned"`
	License    string `yaml:"license,omitempty"`
}

// Validate checks the fields the hub requires before a space will start.
func (f Frontmatter) Validate() error {
	if f.Title == "" {
		return errors.New("card needs a title")
	}
	switch f.SDK {
	case "gradio", "streamlit", "docker", "static":
	case "":
		return errors.New("card needs an sdk (gradio, streamlit, docker or static)")
	default:
		return fmt.Errorf("unknown space sdk %q", f.SDK)
	}
	if (f.SDK == "gradio" || f.SDK == "streamlit") && f.AppFile == "" {
		return fmt.Errorf("card needs app_file for the %s sdk", f.SDK)
	}
	return nil
}

// Card is a space README.md: YAML frontmatter plus a Markdown body. Authored
// frontmatter fields outside Frontmatter survive a parse/write round trip.
type Card struct {
	Frontmatter     Frontmatter
	FrontmatterRaw  map[string]any
	FrontmatterNode *yaml.Node
	Body            string
}

// Default returns a starter card for a freshly created space.
func Default(title, appFile string) *Card {
	return &Card{
		Frontmatter: Frontmatter{
			Title:     title,
			Emoji:     "🚀",
			ColorFrom: "indigo",
			ColorTo:   "purple",
			SDK:       DefaultSDK,
			AppFile:   appFile,
		},
		Body: "\n\n# " + title + "\n\nDeployed with mlship.\n",
	}
}

// parseFrontmatter splits YAML frontmatter (delimited by ---) from body.
func parseFrontmatter(content string) (Frontmatter, map[string]any, *yaml.Node, string, error) {
	var fm Frontmatter

	if !strings.HasPrefix(content, "---") {
		// No frontmatter; the whole content is body.
		return fm, nil, nil, content, nil
	}

	// Find the closing ---
	rest := content[3:]
	if strings.HasPrefix(rest, "\r\n") {
		rest = rest[2:]
	} else if strings.HasPrefix(rest, "\n") {
		rest = rest[1:]
	}

	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return fm, nil, nil, content, errors.New("closing frontmatter delimiter not found")
	}

	yamlBlock := rest[:idx]
	body := rest[idx+4:] // skip \n---

	var rawFrontmatter map[string]any
	if err := yaml.Unmarshal([]byte(yamlBlock), &rawFrontmatter); err != nil {
		return fm, nil, nil, content, fmt.Errorf("unmarshalling frontmatter: %w", err)
	}
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return fm, nil, nil, content, fmt.Errorf("unmarshalling frontmatter: %w", err)
	}
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(yamlBlock), &node); err != nil {
		return fm, nil, nil, content, fmt.Errorf("unmarshalling frontmatter: %w", err)
	}

	return fm, rawFrontmatter, &node, body, nil
}

func (c *Card) MarshalText() ([]byte, error) {
	var fmBytes []byte
	var err error
	switch {
	case c.FrontmatterNode != nil:
		// Patch the managed fields into the authored node so everything the
		// author wrote (comments aside) survives.
		updateCardNode(c.FrontmatterNode, "title", c.Frontmatter.Title)
		updateCardNode(c.FrontmatterNode, "sdk", c.Frontmatter.SDK)
		updateCardNode(c.FrontmatterNode, "sdk_version", c.Frontmatter.SDKVersion)
		updateCardNode(c.FrontmatterNode, "app_file", c.Frontmatter.AppFile)
		fmBytes, err = yaml.Marshal(c.FrontmatterNode)
	case c.FrontmatterRaw != nil:
		fmMap := make(map[string]any)
		maps.Copy(fmMap, c.FrontmatterRaw)
		fmMap["title"] = c.Frontmatter.Title
		fmMap["sdk"] = c.Frontmatter.SDK
		if c.Frontmatter.SDKVersion != "" {
			fmMap["sdk_version"] = c.Frontmatter.SDKVersion
		}
		if c.Frontmatter.AppFile != "" {
			fmMap["app_file"] = c.Frontmatter.AppFile
		}
		fmBytes, err = yaml.Marshal(&fmMap)
	default:
		fmBytes, err = yaml.Marshal(&c.Frontmatter)
	}
	if err != nil {
		return nil, fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("---\n")
	buf.Write(fmBytes)
	buf.WriteString("---")
	buf.WriteString(c.Body)
	return []byte(buf.String()), nil
}

func (c *Card) UnmarshalText(text []byte) error {
	raw := string(text)
	if strings.TrimSpace(raw) == "" {
		return errors.New("card is empty")
	}

	fm, rawFrontmatter, node, body, err := parseFrontmatter(raw)
	if err != nil {
		return fmt.Errorf("parsing frontmatter: %w", err)
	}

	c.Frontmatter = fm
	c.FrontmatterRaw = rawFrontmatter
	c.FrontmatterNode = node
	c.Body = body
	return nil
}

// updateCardNode sets key to value inside the frontmatter mapping node. Empty
// values leave the node alone so absent optional keys stay absent.
func updateCardNode(node *yaml.Node, key, value string) {
	if node == nil || value == "" {
		return
	}
	current := node
	if current.Kind == yaml.DocumentNode && len(current.Content) > 0 {
		current = current.Content[0]
	}
	if current.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(current.Content); i += 2 {
		if current.Content[i].Value == key {
			current.Content[i+1].Kind = yaml.ScalarNode
			current.Content[i+1].Tag = "!!str"
			current.Content[i+1].Value = value
			return
		}
	}
	current.Content = append(current.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value},
	)
}
