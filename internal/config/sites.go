package config

import (
	"os"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"gopkg.in/yaml.v3"
)

// SitesFile is the on-disk shape of an allowed-sites override file.
type SitesFile struct {
	Websites []string `yaml:"websites"`
}

// LoadSites reads an allowed-sites YAML file. Returns nil with no error when
// path is empty, letting callers fall back to defaults.
func LoadSites(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "config: read sites file")
	}

	var f SitesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "config: parse sites file")
	}
	if len(f.Websites) == 0 {
		return nil, eris.New("config: sites file lists no websites")
	}
	return f.Websites, nil
}

// NormalizeLanguage maps a BCP 47 tag like "en" or "pt-BR" to its English
// display name for use in prompts. Inputs that are not parseable tags are
// assumed to already be language names and returned unchanged.
func NormalizeLanguage(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return lang
}
