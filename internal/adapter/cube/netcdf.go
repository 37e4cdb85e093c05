package cube

import (
	"fmt"
	"math"
	"strings"

	"github.com/fhs/go-netcdf/netcdf"

	"go.ngs.io/climate-diag/internal/cftime"
)

// Values at or above this magnitude are treated as missing even without a
// _FillValue attribute (CMOR writes 1e20).
const fillThreshold = 1e19

// Loader loads one variable of a preprocessed file as a cube.
type Loader interface {
	Load(path, shortName string) (*Cube, error)
}

// NetCDFLoader reads cubes from NetCDF files.
type NetCDFLoader struct{}

// NewNetCDFLoader creates a NetCDF cube loader.
func NewNetCDFLoader() *NetCDFLoader {
	return &NetCDFLoader{}
}

// Load reads the variable named shortName and its coordinate axes.
//
//nolint:gosec // G304: paths come from the preprocessor metadata.
func (l *NetCDFLoader) Load(path, shortName string) (*Cube, error) {
	nc, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("failed to open NetCDF file %s: %w", path, err)
	}
	defer func() { _ = nc.Close() }()

	dataNames := []string{shortName, strings.ToLower(shortName)}
	var dataVar netcdf.Var
	found := false
	for _, name := range dataNames {
		if v, err := nc.Var(name); err == nil {
			dataVar = v
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("data variable not found in %s (tried: %v)", path, dataNames)
	}

	dims, err := dataVar.Dims()
	if err != nil {
		return nil, fmt.Errorf("failed to get dimensions: %w", err)
	}

	c := &Cube{
		Name:  shortName,
		Units: readStringAttr(dataVar, "units"),
	}
	for _, d := range dims {
		name, err := d.Name()
		if err != nil {
			return nil, fmt.Errorf("failed to get dimension name: %w", err)
		}
		n, err := d.Len()
		if err != nil {
			return nil, fmt.Errorf("failed to get length of %s: %w", name, err)
		}
		c.Dims = append(c.Dims, name)
		c.Shape = append(c.Shape, int(n))
	}

	c.Data, err = readFloat64Var(dataVar)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", shortName, err)
	}
	applyPacking(dataVar, c.Data)

	for _, name := range c.Dims {
		role := RoleOf(name)
		if role == RoleOther {
			continue
		}
		v, err := nc.Var(name)
		if err != nil {
			// Dimension without a coordinate variable.
			continue
		}
		values, err := readFloat64Var(v)
		if err != nil {
			return nil, fmt.Errorf("failed to read coordinate %s: %w", name, err)
		}
		switch role {
		case RoleTime:
			if err := c.setTime(v, values); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		case RoleDepth:
			c.Depth = depthMeters(v, values)
		case RoleLat:
			c.Lat = values
		case RoleLon:
			c.Lon = values
		case RoleOther:
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cube in %s: %w", path, err)
	}
	return c, nil
}

func (c *Cube) setTime(v netcdf.Var, raw []float64) error {
	c.RawTime = raw
	c.TimeUnits = readStringAttr(v, "units")
	c.Calendar = readStringAttr(v, "calendar")
	units, err := cftime.ParseUnits(c.TimeUnits, c.Calendar)
	if err != nil {
		return fmt.Errorf("failed to parse time units: %w", err)
	}
	c.Time = make([]float64, len(raw))
	for i, t := range raw {
		c.Time[i] = units.DecimalYear(t)
	}
	return nil
}

// depthMeters converts a vertical axis to positive-down meters.
func depthMeters(v netcdf.Var, values []float64) []float64 {
	out := make([]float64, len(values))
	scale := 1.0
	switch strings.ToLower(readStringAttr(v, "units")) {
	case "cm", "centimeters":
		scale = 0.01
	case "km":
		scale = 1000
	}
	sign := 1.0
	if strings.ToLower(readStringAttr(v, "positive")) == "up" {
		sign = -1
	}
	for i, z := range values {
		out[i] = sign * z * scale
	}
	return out
}

// applyPacking masks fill values and applies scale_factor / add_offset.
func applyPacking(v netcdf.Var, data []float64) {
	fill, hasFill := getFillValue(v)
	scale, hasScale := getFloatAttr(v, "scale_factor")
	offset, hasOffset := getFloatAttr(v, "add_offset")
	for i, x := range data {
		if (hasFill && x == fill) || math.Abs(x) >= fillThreshold {
			data[i] = math.NaN()
			continue
		}
		if hasScale {
			x *= scale
		}
		if hasOffset {
			x += offset
		}
		data[i] = x
	}
}

// getFillValue returns the _FillValue or missing_value attribute if present as float64.
func getFillValue(v netcdf.Var) (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		if fv, ok := getFloatAttr(v, name); ok {
			return fv, true
		}
	}
	return 0, false
}

// getFloatAttr reads a numeric scalar attribute whatever its stored type.
func getFloatAttr(v netcdf.Var, name string) (float64, bool) {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return 0, false
	}
	buf64 := make([]float64, n)
	if err := a.ReadFloat64s(buf64); err == nil {
		return buf64[0], true
	}
	buf32 := make([]float32, n)
	if err := a.ReadFloat32s(buf32); err == nil {
		return float64(buf32[0]), true
	}
	bufi := make([]int32, n)
	if err := a.ReadInt32s(bufi); err == nil {
		return float64(bufi[0]), true
	}
	bufs := make([]int16, n)
	if err := a.ReadInt16s(bufs); err == nil {
		return float64(bufs[0]), true
	}
	return 0, false
}

// readStringAttr reads a text attribute, returning "" when absent.
func readStringAttr(v netcdf.Var, name string) string {
	a := v.Attr(name)
	n, err := a.Len()
	if err != nil || n == 0 {
		return ""
	}
	buf := make([]byte, n)
	if err := a.ReadBytes(buf); err != nil {
		return ""
	}
	return strings.TrimRight(string(buf), "\x00 ")
}

// readFloat64Var reads a variable of any supported numeric type into a flat
// float64 slice.
func readFloat64Var(v netcdf.Var) ([]float64, error) {
	n, err := v.Len()
	if err != nil {
		return nil, fmt.Errorf("failed to get variable length: %w", err)
	}

	t, err := v.Type()
	if err != nil {
		return nil, fmt.Errorf("failed to get var type: %w", err)
	}

	switch t {
	case netcdf.DOUBLE:
		data := make([]float64, n)
		if err := v.ReadFloat64s(data); err != nil {
			return nil, err
		}
		return data, nil
	case netcdf.FLOAT:
		tmp := make([]float32, n)
		if err := v.ReadFloat32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.INT:
		tmp := make([]int32, n)
		if err := v.ReadInt32s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.SHORT:
		tmp := make([]int16, n)
		if err := v.ReadInt16s(tmp); err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i, val := range tmp {
			out[i] = float64(val)
		}
		return out, nil
	case netcdf.BYTE, netcdf.CHAR, netcdf.UBYTE, netcdf.USHORT, netcdf.UINT, netcdf.INT64, netcdf.UINT64, netcdf.STRING:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	default:
		return nil, fmt.Errorf("unsupported var type: %v", t)
	}
}

// WriteCube writes c to path as a NetCDF-4 file: one coordinate variable per
// known axis and the data variable named after the cube.
func WriteCube(path string, c *Cube) error {
	if err := c.Validate(); err != nil {
		return err
	}

	ds, err := netcdf.CreateFile(path, netcdf.CLOBBER|netcdf.NETCDF4)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = ds.Close() }()

	dims := make([]netcdf.Dim, len(c.Dims))
	for i, name := range c.Dims {
		d, err := ds.AddDim(name, uint64(c.Shape[i]))
		if err != nil {
			return fmt.Errorf("failed to add dimension %s: %w", name, err)
		}
		dims[i] = d
	}

	type coordVar struct {
		v      netcdf.Var
		values []float64
	}
	var coords []coordVar
	for i, name := range c.Dims {
		role := RoleOf(name)
		values := c.axisValues(role)
		if role == RoleTime && c.RawTime != nil {
			values = c.RawTime
		}
		if values == nil {
			continue
		}
		v, err := ds.AddVar(name, netcdf.DOUBLE, []netcdf.Dim{dims[i]})
		if err != nil {
			return fmt.Errorf("failed to add coordinate %s: %w", name, err)
		}
		if role == RoleTime {
			if err := writeStringAttr(v, "units", c.TimeUnits); err != nil {
				return err
			}
			if err := writeStringAttr(v, "calendar", c.Calendar); err != nil {
				return err
			}
		}
		if role == RoleDepth {
			if err := writeStringAttr(v, "units", "m"); err != nil {
				return err
			}
			if err := writeStringAttr(v, "positive", "down"); err != nil {
				return err
			}
		}
		coords = append(coords, coordVar{v: v, values: values})
	}

	dataVar, err := ds.AddVar(c.Name, netcdf.DOUBLE, dims)
	if err != nil {
		return fmt.Errorf("failed to add variable %s: %w", c.Name, err)
	}
	if err := writeStringAttr(dataVar, "units", c.Units); err != nil {
		return err
	}
	if err := dataVar.Attr("_FillValue").WriteFloat64s([]float64{1e20}); err != nil {
		return fmt.Errorf("failed to write _FillValue: %w", err)
	}

	if err := ds.EndDef(); err != nil {
		return fmt.Errorf("failed to end define mode: %w", err)
	}

	for _, cv := range coords {
		if err := cv.v.WriteFloat64s(cv.values); err != nil {
			return fmt.Errorf("failed to write coordinate: %w", err)
		}
	}

	out := make([]float64, len(c.Data))
	for i, x := range c.Data {
		if math.IsNaN(x) {
			x = 1e20
		}
		out[i] = x
	}
	if err := dataVar.WriteFloat64s(out); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.Name, err)
	}
	return nil
}

func writeStringAttr(v netcdf.Var, name, value string) error {
	if value == "" {
		return nil
	}
	if err := v.Attr(name).WriteBytes([]byte(value)); err != nil {
		return fmt.Errorf("failed to write attribute %s: %w", name, err)
	}
	return nil
}
