package manifest

import (
	"fmt"

	"image-pipeline/pkg/errdefs"
)

// Validate checks the document structure in declaration order and stops at
// the first violation. Every failure is MANIFEST_INVALID with the offending
// field in the error detail.
func Validate(doc *Document) error {
	if doc.ManifestVersion == nil {
		return invalid("manifestVersion", "missing required field")
	}
	if *doc.ManifestVersion != 1 {
		return invalid("manifestVersion", fmt.Sprintf("unsupported value %d, want 1", *doc.ManifestVersion))
	}

	if doc.TemplateCode == nil || *doc.TemplateCode == "" {
		return invalid("templateCode", "must be a non-empty string")
	}
	if doc.VersionSemver == nil || *doc.VersionSemver == "" {
		return invalid("versionSemver", "must be a non-empty string")
	}

	if doc.Output == nil {
		return invalid("output", "missing required field")
	}
	if doc.Output.Width == nil || *doc.Output.Width <= 0 {
		return invalid("output.width", "must be a positive integer")
	}
	if doc.Output.Height == nil || *doc.Output.Height <= 0 {
		return invalid("output.height", "must be a positive integer")
	}
	if doc.Output.Format != nil {
		switch *doc.Output.Format {
		case "png", "jpg", "jpeg":
		default:
			return invalid("output.format", fmt.Sprintf("unsupported format %q, want png, jpg or jpeg", *doc.Output.Format))
		}
	}

	if doc.Compose == nil {
		return invalid("compose", "missing required field")
	}
	if doc.Compose.Background == nil || *doc.Compose.Background == "" {
		return invalid("compose.background", "must be a non-empty string")
	}

	if len(doc.Compose.Photos) == 0 {
		return invalid("compose.photos", "must declare at least one photo")
	}
	for i, photo := range doc.Compose.Photos {
		if err := validatePhoto(i, photo); err != nil {
			return err
		}
	}
	for i, sticker := range doc.Compose.Stickers {
		if err := validateSticker(i, sticker); err != nil {
			return err
		}
	}
	return nil
}

func validatePhoto(i int, p PhotoDecl) error {
	field := func(name string) string { return fmt.Sprintf("compose.photos[%d].%s", i, name) }

	if p.ID == nil || *p.ID == "" {
		return invalid(field("id"), "must be a non-empty string")
	}
	if p.Source == nil {
		return invalid(field("source"), "missing required field")
	}
	if s := *p.Source; s != SourceRaw && s != SourceCutout {
		return invalid(field("source"), fmt.Sprintf("unsupported source %q, want raw or cutout", s))
	}
	if p.X == nil {
		return invalid(field("x"), "missing required field")
	}
	if p.Y == nil {
		return invalid(field("y"), "missing required field")
	}
	if p.W == nil || *p.W <= 0 {
		return invalid(field("w"), "must be a positive integer")
	}
	if p.H == nil || *p.H <= 0 {
		return invalid(field("h"), "must be a positive integer")
	}
	if p.Fit != nil {
		if f := *p.Fit; f != FitCover && f != FitContain {
			return invalid(field("fit"), fmt.Sprintf("unsupported fit %q, want cover or contain", f))
		}
	}
	return nil
}

func validateSticker(i int, s StickerDecl) error {
	field := func(name string) string { return fmt.Sprintf("compose.stickers[%d].%s", i, name) }

	if s.ID == nil || *s.ID == "" {
		return invalid(field("id"), "must be a non-empty string")
	}
	if s.Src == nil || *s.Src == "" {
		return invalid(field("src"), "must be a non-empty string")
	}
	if s.X == nil {
		return invalid(field("x"), "missing required field")
	}
	if s.Y == nil {
		return invalid(field("y"), "missing required field")
	}
	if s.W == nil || *s.W <= 0 {
		return invalid(field("w"), "must be a positive integer")
	}
	if s.H == nil || *s.H <= 0 {
		return invalid(field("h"), "must be a positive integer")
	}
	if s.Opacity != nil {
		if o := *s.Opacity; o < 0 || o > 1 {
			return invalid(field("opacity"), "must be between 0.0 and 1.0")
		}
	}
	return nil
}

func invalid(field, message string) error {
	return errdefs.Newf(errdefs.ManifestInvalid, "%s: %s", field, message).
		WithDetail("field", field)
}
