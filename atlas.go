package mapview

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"sync"
)

// IconAtlas holds marker icons packed into one or more page textures,
// described by TexturePacker JSON.
type IconAtlas struct {
	// Pages contains the atlas page textures indexed by page number.
	Pages   []*Texture
	regions map[string]iconRegion
}

type iconRegion struct {
	page int
	rect Rect
}

// Icon returns the page texture and source rectangle of the named icon.
// Unknown names log at debug level and return a 1x1 magenta placeholder.
func (a *IconAtlas) Icon(name string) (*Texture, Rect) {
	if r, ok := a.regions[name]; ok && r.page < len(a.Pages) {
		return a.Pages[r.page], r.rect
	}
	Logger().Debug("atlas icon not found, using magenta placeholder", "name", name)
	tex := magentaTexture()
	return tex, tex.Bounds()
}

// Has reports whether the atlas contains name.
func (a *IconAtlas) Has(name string) bool {
	_, ok := a.regions[name]
	return ok
}

// Len returns the number of icons.
func (a *IconAtlas) Len() int { return len(a.regions) }

// MarkerOptions returns marker options drawing the named icon.
func (a *IconAtlas) MarkerOptions(name string, items []MarkerItem) MarkerLayerOptions {
	tex, r := a.Icon(name)
	return MarkerLayerOptions{Items: items, Icon: tex, IconRegion: r}
}

var (
	magentaOnce sync.Once
	magentaTex  *Texture
)

func magentaTexture() *Texture {
	magentaOnce.Do(func() {
		img := image.NewRGBA(image.Rect(0, 0, 1, 1))
		img.Set(0, 0, color.RGBA{R: 255, G: 0, B: 255, A: 255})
		magentaTex = NewTexture(img)
	})
	return magentaTex
}

// LoadIconAtlas parses TexturePacker JSON data and associates the given
// page textures. Both the hash format (single "frames" object) and the
// array format ("textures" array with per-page frame lists) are supported.
func LoadIconAtlas(jsonData []byte, pages []*Texture) (*IconAtlas, error) {
	// Top-level keys tell the formats apart.
	var top struct {
		Frames   json.RawMessage `json:"frames"`
		Textures json.RawMessage `json:"textures"`
	}
	if err := json.Unmarshal(jsonData, &top); err != nil {
		return nil, fmt.Errorf("mapview: parse atlas JSON: %w", err)
	}

	atlas := &IconAtlas{
		Pages:   pages,
		regions: make(map[string]iconRegion),
	}

	switch {
	case top.Textures != nil:
		var textures []jsonTexturePage
		if err := json.Unmarshal(top.Textures, &textures); err != nil {
			return nil, fmt.Errorf("mapview: parse atlas textures array: %w", err)
		}
		for i, tex := range textures {
			for name, f := range tex.Frames {
				atlas.regions[name] = frameToRegion(f, i)
			}
		}
	case top.Frames != nil:
		var frames map[string]jsonFrame
		if err := json.Unmarshal(top.Frames, &frames); err != nil {
			return nil, fmt.Errorf("mapview: parse atlas frames: %w", err)
		}
		for name, f := range frames {
			atlas.regions[name] = frameToRegion(f, 0)
		}
	default:
		return nil, fmt.Errorf("mapview: atlas JSON has neither \"frames\" nor \"textures\" key")
	}
	return atlas, nil
}

// --- JSON structure types ---

type jsonRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type jsonFrame struct {
	Frame   jsonRect `json:"frame"`
	Rotated bool     `json:"rotated"`
}

type jsonTexturePage struct {
	Image  string               `json:"image"`
	Frames map[string]jsonFrame `json:"frames"`
}

// frameToRegion converts a packed frame. Rotated frames occupy a w/h
// swapped rectangle in the page; they are drawn in packed orientation.
func frameToRegion(f jsonFrame, page int) iconRegion {
	w, h := f.Frame.W, f.Frame.H
	if f.Rotated {
		w, h = h, w
	}
	return iconRegion{
		page: page,
		rect: Rect{X: float64(f.Frame.X), Y: float64(f.Frame.Y), Width: float64(w), Height: float64(h)},
	}
}
