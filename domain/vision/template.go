package vision

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Kind is the semantic tag of a reference template. It decides which game
// states a template is tested in.
type Kind int

const (
	// KindBite marks the cue that the fishing minigame has started (the
	// bite indicator / classic fish icon).
	KindBite Kind = iota
	// KindOverlay marks the minigame window itself; its presence means a
	// round is in progress.
	KindOverlay
	// KindFish marks a catchable fish or item as it appears in the
	// inventory strip.
	KindFish
)

func (k Kind) String() string {
	switch k {
	case KindBite:
		return "bite"
	case KindOverlay:
		return "overlay"
	case KindFish:
		return "fish"
	default:
		return "unknown"
	}
}

// Template is a named reference image pattern with a detection threshold.
// Templates are immutable after construction and safe to share across
// sessions; the scaled-plane cache is internally synchronized.
type Template struct {
	Name      string
	Kind      Kind
	Threshold float64
	// MultiScale enables a scale sweep for cues whose on-screen size
	// varies with the game window size (the classic bite indicator).
	MultiScale bool

	index int
	base  *templatePlane
	// meanColor is the average RGB over the cropped pattern. NCC matches
	// on grayscale only, so fish sprites differing only in hue need this
	// to resolve to the right template.
	meanColor [3]float64

	mu     sync.Mutex
	scaled map[int]*templatePlane // keyed by int(factor*1000)
}

// NewTemplate builds a template from a decoded image. borderCrop pixels are
// trimmed from every edge so matching focuses on the pattern center.
func NewTemplate(name string, kind Kind, img image.Image, threshold float64, borderCrop int) (*Template, error) {
	plane := newTemplatePlane(img, borderCrop)
	if plane == nil {
		return nil, fmt.Errorf("vision: template %q too small after %dpx border crop", name, borderCrop)
	}
	return &Template{
		Name:      name,
		Kind:      kind,
		Threshold: threshold,
		base:      plane,
		meanColor: meanColorOf(img, borderCrop),
		scaled:    map[int]*templatePlane{},
	}, nil
}

func meanColorOf(img image.Image, borderCrop int) [3]float64 {
	b := img.Bounds()
	b = image.Rect(b.Min.X+borderCrop, b.Min.Y+borderCrop, b.Max.X-borderCrop, b.Max.Y-borderCrop)
	var sum [3]float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			sum[0] += float64(r >> 8)
			sum[1] += float64(g >> 8)
			sum[2] += float64(bl >> 8)
		}
	}
	n := float64(b.Dx() * b.Dy())
	return [3]float64{sum[0] / n, sum[1] / n, sum[2] / n}
}

// Size returns the matched pattern dimensions after border cropping.
func (t *Template) Size() (w, h int) { return t.base.w, t.base.h }

func (t *Template) planeAt(factor float64) *templatePlane {
	if factor == 1.0 {
		return t.base
	}
	key := int(factor * 1000)
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.scaled[key]; ok {
		return p
	}
	p := t.base.rescale(factor)
	t.scaled[key] = p
	return p
}

// Library is an ordered, immutable set of templates. Declaration order is
// significant: it breaks confidence ties deterministically.
type Library struct {
	templates []*Template
}

// NewLibrary builds a library preserving the given declaration order.
func NewLibrary(templates ...*Template) *Library {
	lib := &Library{}
	for _, t := range templates {
		lib.add(t)
	}
	return lib
}

func (l *Library) add(t *Template) {
	t.index = len(l.templates)
	l.templates = append(l.templates, t)
}

// Len reports the number of templates in the library.
func (l *Library) Len() int { return len(l.templates) }

func (l *Library) byName(name string) *Template {
	for _, t := range l.templates {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// OfKind returns the templates tagged with any of the given kinds, in
// declaration order.
func (l *Library) OfKind(kinds ...Kind) []*Template {
	var out []*Template
	for _, t := range l.templates {
		for _, k := range kinds {
			if t.Kind == k {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

// LoadOptions configures library loading from an assets directory.
type LoadOptions struct {
	// Threshold is applied to every template whose kind has no entry in
	// KindThresholds.
	Threshold float64
	// KindThresholds overrides Threshold per template kind. Zero entries
	// are ignored.
	KindThresholds map[Kind]float64
	// BorderCrop pixels are trimmed from each template edge.
	BorderCrop int
}

func (o LoadOptions) thresholdFor(kind Kind) float64 {
	if v := o.KindThresholds[kind]; v > 0 {
		return v
	}
	return o.Threshold
}

// LoadLibrary reads every recognized reference image under dir. The file
// name encodes the semantic tag, following the asset naming the game
// community uses:
//
//	classic_fish.*  or bite_*.*   -> KindBite (classic cue is multi-scale)
//	minigame_*.* or overlay_*.*   -> KindOverlay
//	*_living.* or *_item.*        -> KindFish
//
// Files in dir are visited in lexical order, which fixes the declaration
// order used for tie-breaking. Unrecognized files are skipped.
func LoadLibrary(dir string, opts LoadOptions) (*Library, error) {
	lib := &Library{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name, kind, multiScale, ok := classifyAssetName(d.Name())
		if !ok {
			return nil
		}
		img, err := decodeImageFile(path)
		if err != nil {
			return fmt.Errorf("vision: decode %s: %w", path, err)
		}
		t, err := NewTemplate(name, kind, img, opts.thresholdFor(kind), opts.BorderCrop)
		if err != nil {
			return err
		}
		t.MultiScale = multiScale
		lib.add(t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if lib.Len() == 0 {
		return nil, fmt.Errorf("vision: no usable templates in %s", dir)
	}
	return lib, nil
}

func classifyAssetName(file string) (name string, kind Kind, multiScale, ok bool) {
	ext := strings.ToLower(filepath.Ext(file))
	if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
		return "", 0, false, false
	}
	name = strings.TrimSuffix(file, filepath.Ext(file))
	switch {
	case name == "classic_fish":
		return name, KindBite, true, true
	case strings.HasPrefix(name, "bite_"):
		return name, KindBite, false, true
	case strings.HasPrefix(name, "minigame_") || strings.HasPrefix(name, "overlay_"):
		return name, KindOverlay, false, true
	case strings.HasSuffix(name, "_living") || strings.HasSuffix(name, "_item"):
		return name, KindFish, false, true
	}
	return "", 0, false, false
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return png.Decode(f)
	default:
		return jpeg.Decode(f)
	}
}
