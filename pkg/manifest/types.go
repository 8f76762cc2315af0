// Package manifest loads, validates and normalizes template manifests.
//
// A manifest is the declarative manifest.json at the root of an extracted
// template directory. Loading lifts it into a Document (raw, presence-aware
// form), validation checks structure field by field in a fixed order, and
// normalization produces a RuntimeSpec: defaults applied, every referenced
// path absolute. ValidateAssets is the early-fail gate that confirms all
// referenced files exist before rendering starts.
package manifest

// Document is the parsed declarative form of manifest.json.
//
// Required fields are pointers so that "absent" and "zero" stay
// distinguishable for validation; unknown fields in the JSON are ignored
// for forward compatibility.
type Document struct {
	ManifestVersion *int         `json:"manifestVersion"`
	TemplateCode    *string      `json:"templateCode"`
	VersionSemver   *string      `json:"versionSemver"`
	Output          *OutputDecl  `json:"output"`
	Assets          *AssetsDecl  `json:"assets"`
	Compose         *ComposeDecl `json:"compose"`
}

// OutputDecl declares the output canvas.
type OutputDecl struct {
	Width  *int    `json:"width"`
	Height *int    `json:"height"`
	Format *string `json:"format"`
}

// AssetsDecl declares where assets live inside the template directory.
type AssetsDecl struct {
	BasePath *string `json:"basePath"`
	Rules    *string `json:"rules"`
}

// ComposeDecl declares the layers to composite.
type ComposeDecl struct {
	Background *string       `json:"background"`
	Photos     []PhotoDecl   `json:"photos"`
	Stickers   []StickerDecl `json:"stickers"`
}

// PhotoDecl places the user photo on the canvas.
type PhotoDecl struct {
	ID     *string `json:"id"`
	Source *string `json:"source"`
	X      *int    `json:"x"`
	Y      *int    `json:"y"`
	W      *int    `json:"w"`
	H      *int    `json:"h"`
	Fit    *string `json:"fit"`
	Z      *int    `json:"z"`
}

// StickerDecl places a template asset on the canvas.
type StickerDecl struct {
	ID      *string  `json:"id"`
	Src     *string  `json:"src"`
	X       *int     `json:"x"`
	Y       *int     `json:"y"`
	W       *int     `json:"w"`
	H       *int     `json:"h"`
	Rotate  *float64 `json:"rotate"`
	Opacity *float64 `json:"opacity"`
	Z       *int     `json:"z"`
}

// Defaults applied during normalization.
const (
	DefaultBasePath = "assets"
	DefaultFormat   = "png"
	DefaultFit      = FitCover
)

// Photo source values.
const (
	SourceRaw    = "raw"
	SourceCutout = "cutout"
)

// Fit modes.
const (
	FitCover   = "cover"
	FitContain = "contain"
)

// RuntimeSpec is the normalized manifest: defaults applied, all paths
// absolute. A RuntimeSpec returned by the loader references only paths that
// existed at validation time.
type RuntimeSpec struct {
	ManifestVersion int        `json:"manifestVersion"`
	TemplateCode    string     `json:"templateCode"`
	VersionSemver   string     `json:"versionSemver"`
	Output          Output     `json:"output"`
	Background      Background `json:"background"`
	Photos          []Photo    `json:"photos"`
	Stickers        []Sticker  `json:"stickers"`
}

// Output is the canvas declaration with defaults applied.
type Output struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// Background is the absolute background asset path.
type Background struct {
	Path string `json:"path"`
}

// Photo is a normalized photo placement.
type Photo struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	W      int    `json:"w"`
	H      int    `json:"h"`
	Fit    string `json:"fit"`
	Z      int    `json:"z"`
}

// Sticker is a normalized sticker placement with an absolute asset path.
type Sticker struct {
	ID      string  `json:"id"`
	Path    string  `json:"path"`
	X       int     `json:"x"`
	Y       int     `json:"y"`
	W       int     `json:"w"`
	H       int     `json:"h"`
	Rotate  float64 `json:"rotate"`
	Opacity float64 `json:"opacity"`
	Z       int     `json:"z"`
}
