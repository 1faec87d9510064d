package data

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rustyeddy/papertrader/market"
	"gopkg.in/yaml.v3"
)

// AssetsFile is the optional asset metadata file kept next to the data.
const AssetsFile = "assets.yaml"

type assetsDoc struct {
	Assets []yaml.Node `yaml:"assets"`
}

// loadAssets reads dir/assets.yaml. A missing file yields an empty map. Fields
// an entry leaves out keep the values of base(symbol).
func loadAssets(dir string, base func(string) market.Asset) (map[string]market.Asset, error) {
	out := make(map[string]market.Asset)

	path := filepath.Join(dir, AssetsFile)
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	var doc assetsDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	for i := range doc.Assets {
		var head struct {
			Symbol string `yaml:"symbol"`
		}
		if err := doc.Assets[i].Decode(&head); err != nil {
			return nil, fmt.Errorf("parse %s: asset %d: %w", path, i, err)
		}
		symbol := market.NormalizeSymbol(head.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("parse %s: asset %d: symbol required", path, i)
		}

		a := base(symbol)
		if err := doc.Assets[i].Decode(&a); err != nil {
			return nil, fmt.Errorf("parse %s: asset %s: %w", path, symbol, err)
		}
		a.Symbol = symbol
		if a.ID == "" {
			a.ID = market.AssetID(symbol)
		}
		out[symbol] = a
	}
	return out, nil
}
