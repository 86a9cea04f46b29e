package document

// Patch is a partial element update. Nil fields are left unchanged.
type Patch struct {
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
	Style    *Style   `json:"style,omitempty"`
	Text     *string  `json:"text,omitempty"`
	FontSize *float64 `json:"fontSize,omitempty"`
}

// MovesGeometry reports whether applying the patch can change where an
// element's ports are.
func (p Patch) MovesGeometry() bool {
	return p.X != nil || p.Y != nil || p.Width != nil || p.Height != nil || p.Rotation != nil
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return !p.MovesGeometry() && p.Style == nil && p.Text == nil && p.FontSize == nil
}

// Apply returns a copy of el with the patch applied. Text and font size are
// ignored for kinds that do not carry them.
func (p Patch) Apply(el Element) Element {
	b := el.Header()
	if p.X != nil {
		b.X = *p.X
	}
	if p.Y != nil {
		b.Y = *p.Y
	}
	if p.Width != nil {
		b.Width = *p.Width
	}
	if p.Height != nil {
		b.Height = *p.Height
	}
	if p.Rotation != nil {
		b.Rotation = *p.Rotation
	}
	if p.Style != nil {
		b.Style = *p.Style
	}
	out := Clone(el).withBase(b)
	if p.Text != nil {
		out = WithText(out, *p.Text)
	}
	if p.FontSize != nil {
		switch e := out.(type) {
		case Text:
			e.FontSize = *p.FontSize
			out = e
		case Sticky:
			e.FontSize = *p.FontSize
			out = e
		}
	}
	return out
}

// Move builds a patch that sets the top-left corner.
func Move(x, y float64) Patch {
	return Patch{X: &x, Y: &y}
}

// Resize builds a patch that sets the size.
func Resize(w, h float64) Patch {
	return Patch{Width: &w, Height: &h}
}

// SetText builds a patch that replaces the text.
func SetText(text string) Patch {
	return Patch{Text: &text}
}

// EdgePatch is a partial edge update. Endpoints are fixed once committed.
type EdgePatch struct {
	Mode  *RoutingMode `json:"mode,omitempty"`
	Style *EdgeStyle   `json:"style,omitempty"`
	Label *string      `json:"label,omitempty"`
}
