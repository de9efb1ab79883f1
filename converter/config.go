package converter

import (
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v2"
)

type TextureConfig struct {
	Scale           float32 `yaml:"scale"`
	ResolutionLimit int     `yaml:"resolutionLimit"`
	ReCompress      bool    `yaml:"reCompress"`
}

// Config is the optional conversion settings file.
type Config struct {
	NoFlipV bool          `yaml:"noFlipV"`
	Texture TextureConfig `yaml:"texture"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &conf, nil
}

func (c *Config) ExportOption() *FBXToExportOption {
	return &FBXToExportOption{NoFlipV: c.NoFlipV}
}

func (c *Config) GLTFOption() *GLTFExportOption {
	return &GLTFExportOption{
		TextureScale:           c.Texture.Scale,
		TextureResolutionLimit: c.Texture.ResolutionLimit,
		TextureReCompress:      c.Texture.ReCompress,
	}
}
