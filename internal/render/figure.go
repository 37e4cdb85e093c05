package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Whole-diagnostic figure size.
const (
	FigureWidth  = 12 * vg.Inch
	FigureHeight = 9 * vg.Inch
)

// Formats lists the supported output_file_type values.
var Formats = []string{"png", "svg", "pdf", "jpg", "jpeg", "eps", "tif", "tiff"}

// Figure is the whole-diagnostic layout. The top half holds the time series
// on the left and, on the right, the climatology above the two profile
// axes. The bottom half holds up to six maps in two rows of three, filled
// column by column. Nil panels are drawn as empty placeholders.
type Figure struct {
	TimeSeries  *plot.Plot
	Climatology *plot.Plot
	Profile     *plot.Plot // Above SplitDepth.
	ProfileDeep *plot.Plot
	Maps        []*plot.Plot
}

// ParseFormat validates an output_file_type.
func ParseFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output file type %q (want one of %s)", format, strings.Join(Formats, ", "))
}

// Save renders the figure to path. The image format follows the extension.
func (f *Figure) Save(path string, w, h vg.Length) error {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	c, err := draw.NewFormattedCanvas(w, h, format)
	if err != nil {
		return fmt.Errorf("failed to create %s canvas: %w", format, err)
	}
	f.Draw(draw.New(c))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:mnd
		return fmt.Errorf("failed to create plot directory: %w", err)
	}
	out, err := os.Create(path) //nolint:gosec
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := c.WriteTo(out); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return out.Close()
}

// Draw lays the panels out on dc.
func (f *Figure) Draw(dc draw.Canvas) {
	size := dc.Rectangle.Size()
	halfW, halfH := size.X/2, size.Y/2

	top := draw.Crop(dc, 0, 0, halfH, 0)
	bottom := draw.Crop(dc, 0, 0, 0, -halfH)

	left := draw.Crop(top, 0, -halfW, 0, 0)
	right := draw.Crop(top, halfW, 0, 0, 0)
	orBlank(f.TimeSeries).Draw(left)

	climH := right.Rectangle.Size().Y / 2
	orBlank(f.Climatology).Draw(draw.Crop(right, 0, 0, climH+vg.Millimeter, 0))
	tiles := draw.Tiles{Rows: 2, Cols: 1, PadX: vg.Millimeter}
	stack := [][]*plot.Plot{{orBlank(f.Profile)}, {orBlank(f.ProfileDeep)}}
	drawAligned(stack, tiles, draw.Crop(right, 0, 0, 0, -climH-vg.Millimeter))

	maps := make([][]*plot.Plot, 2)
	for r := range maps {
		maps[r] = make([]*plot.Plot, 3)
	}
	for i := 0; i < 6; i++ {
		var p *plot.Plot
		if i < len(f.Maps) {
			p = f.Maps[i]
		}
		maps[i%2][i/2] = orBlank(p)
	}
	tiles = draw.Tiles{Rows: 2, Cols: 3, PadX: 2 * vg.Millimeter, PadY: 2 * vg.Millimeter}
	drawAligned(maps, tiles, bottom)
}

func drawAligned(plots [][]*plot.Plot, tiles draw.Tiles, dc draw.Canvas) {
	canvases := plot.Align(plots, tiles, dc)
	for r := range plots {
		for c := range plots[r] {
			plots[r][c].Draw(canvases[r][c])
		}
	}
}

func orBlank(p *plot.Plot) *plot.Plot {
	if p != nil {
		return p
	}
	blank := plot.New()
	blank.HideAxes()
	return blank
}
